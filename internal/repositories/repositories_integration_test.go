//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/testutil/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftAt(date time.Time, slot, email string) *models.AppointmentDraft {
	return &models.AppointmentDraft{
		FirstName:  "Ada",
		LastName:   "Obi",
		Email:      email,
		Phone:      "08012345678",
		Gender:     models.GenderFemale,
		Department: models.DeptPaediatric,
		Date:       date,
		Time:       slot,
		Reason:     "Routine check-up for my child",
	}
}

func TestAppointmentRepository_Integration(t *testing.T) {
	tdb := pgtest.Start(t)
	repo := NewAppointmentRepository(tdb.DB)
	ctx := context.Background()
	date := time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC)

	t.Run("concurrent bookings of one slot admit exactly one", func(t *testing.T) {
		tdb.Truncate(t)

		var wg sync.WaitGroup
		var booked, taken atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.Create(ctx, draftAt(date, "09:00 AM", fmt.Sprintf("p%d@example.com", i)))
				if err == nil {
					booked.Add(1)
				} else if errors.Is(err, models.ErrSlotTaken) {
					taken.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), booked.Load())
		assert.Equal(t, int32(9), taken.Load())

		n, err := repo.CountActiveInSlot(ctx, date, "09:00 AM")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("cancelling frees the slot", func(t *testing.T) {
		tdb.Truncate(t)

		first, err := repo.Create(ctx, draftAt(date, "10:00 AM", "first@example.com"))
		require.NoError(t, err)

		_, err = repo.Create(ctx, draftAt(date, "10:00 AM", "second@example.com"))
		require.ErrorIs(t, err, models.ErrSlotTaken)

		_, err = repo.UpdateStatus(ctx, first.ID, models.StatusPending, models.StatusCancelled, nil)
		require.NoError(t, err)

		_, err = repo.Create(ctx, draftAt(date, "10:00 AM", "second@example.com"))
		assert.NoError(t, err)
	})

	t.Run("status update is conditional on the current status", func(t *testing.T) {
		tdb.Truncate(t)

		appt, err := repo.Create(ctx, draftAt(date, "11:00 AM", "cond@example.com"))
		require.NoError(t, err)

		_, err = repo.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, models.StatusCompleted, nil)
		assert.ErrorIs(t, err, models.ErrNotFound)

		notes := "arrived early"
		updated, err := repo.UpdateStatus(ctx, appt.ID, models.StatusPending, models.StatusConfirmed, &notes)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, updated.Status)
		assert.Equal(t, "arrived early", updated.Notes)
	})

	t.Run("list paginates and filters", func(t *testing.T) {
		tdb.Truncate(t)

		slots := []string{"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM", "11:00 AM"}
		for i, slot := range slots {
			_, err := repo.Create(ctx, draftAt(date, slot, fmt.Sprintf("l%d@example.com", i)))
			require.NoError(t, err)
		}

		items, total, err := repo.List(ctx, models.AppointmentFilter{SortBy: "appointmentTime"}, models.NewPage(2, 2))
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, items, 2)
		assert.Equal(t, "10:00 AM", items[0].Time)

		items, total, err = repo.List(ctx, models.AppointmentFilter{Department: models.DeptEmergency}, models.NewPage(1, 10))
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, items)
	})

	t.Run("delete missing appointment", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete(ctx, "00000000-0000-0000-0000-000000000000"), models.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "not-a-uuid"), models.ErrNotFound)
	})
}

func TestAdminRepository_Integration(t *testing.T) {
	tdb := pgtest.Start(t)
	repo := NewAdminRepository(tdb.DB)
	ctx := context.Background()

	create := func(t *testing.T, username, email string) *models.Admin {
		t.Helper()
		a, err := repo.Create(ctx, &models.Admin{
			Username:          username,
			Email:             email,
			PasswordHash:      "$2a$12$placeholderplaceholderplaceholderplaceholderpl",
			FirstName:         "Test",
			LastName:          "Admin",
			Role:              models.RoleAdmin,
			IsActive:          true,
			PasswordChangedAt: time.Now().UTC().Truncate(time.Second),
		})
		require.NoError(t, err)
		return a
	}

	t.Run("email uniqueness ignores case", func(t *testing.T) {
		tdb.Truncate(t)
		create(t, "first", "Dup@Example.com")

		_, err := repo.Create(ctx, &models.Admin{
			Username: "second", Email: "dup@example.com", PasswordHash: "x",
			Role: models.RoleAdmin, IsActive: true, PasswordChangedAt: time.Now(),
		})
		assert.ErrorIs(t, err, models.ErrConflict)

		found, err := repo.GetByIdentifier(ctx, "DUP@example.com")
		require.NoError(t, err)
		assert.Equal(t, "first", found.Username)
	})

	t.Run("identifier with at sign matches email only", func(t *testing.T) {
		tdb.Truncate(t)
		create(t, "legacy@ward", "legacy@example.com")
		owner := create(t, "owner", "legacy@ward")

		found, err := repo.GetByIdentifier(ctx, " Legacy@Ward ")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, found.ID)

		found, err = repo.GetByIdentifier(ctx, "owner")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, found.ID)

		_, err = repo.GetByIdentifier(ctx, "OWNER")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("lockout compare-and-set rejects stale state", func(t *testing.T) {
		tdb.Truncate(t)
		a := create(t, "locky", "locky@example.com")

		until := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Microsecond)
		ok, err := repo.CompareAndSetLockout(ctx, a.ID, models.LockoutState{}, models.LockoutState{FailedAttempts: 1})
		require.NoError(t, err)
		assert.True(t, ok)

		// Stale prev: another attempt already moved the counter to 1
		ok, err = repo.CompareAndSetLockout(ctx, a.ID, models.LockoutState{}, models.LockoutState{FailedAttempts: 1})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.CompareAndSetLockout(ctx, a.ID, models.LockoutState{FailedAttempts: 1}, models.LockoutState{FailedAttempts: 2, LockedUntil: &until})
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Lockout.FailedAttempts)
		require.NotNil(t, stored.Lockout.LockedUntil)
		assert.WithinDuration(t, until, *stored.Lockout.LockedUntil, time.Second)

		require.NoError(t, repo.RecordLogin(ctx, a.ID, time.Now()))
		stored, err = repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.Lockout.FailedAttempts)
		assert.Nil(t, stored.Lockout.LockedUntil)
	})

	t.Run("expired reset tokens are cleared", func(t *testing.T) {
		tdb.Truncate(t)
		a := create(t, "reset", "reset@example.com")
		now := time.Now()

		require.NoError(t, repo.SetPasswordReset(ctx, a.ID, "digest", now.Add(-time.Minute)))
		_, err := repo.GetByResetHash(ctx, "digest", now)
		assert.ErrorIs(t, err, models.ErrNotFound)

		n, err := repo.ClearExpiredResets(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}
