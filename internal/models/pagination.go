package models

import "math"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// MaxOffset bounds (Number-1)*Limit; beyond it every page is empty anyway.
	MaxOffset = math.MaxInt32
)

type Page struct {
	Number int
	Limit  int
}

// NewPage clamps limit to [1, MaxPageLimit], defaulting to DefaultPageLimit,
// and page to [1, MaxOffset/limit+1] so Offset never overflows.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if maxNumber := MaxOffset/limit + 1; number > maxNumber {
		number = maxNumber
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Page: p.Number, Limit: p.Limit, Total: total, Pages: pages}
}

// PageResult is one page of items plus its pagination envelope.
type PageResult[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}
