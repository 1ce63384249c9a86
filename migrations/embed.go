// Package migrations holds the goose SQL migrations for both datasets.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
