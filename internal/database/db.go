package database

import (
	"errors"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SlotConstraint is the partial unique index guarding active bookings.
const SlotConstraint = "appointments_active_slot_key"

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if pgErr.ConstraintName == SlotConstraint {
				return models.ErrSlotTaken
			}
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		case "23514": // check_violation
			return models.ErrBadRequest
		}
	}

	return err
}
