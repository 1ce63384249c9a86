package services

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
)

// SlotStore is the persistence the slot checker relies on.
type SlotStore interface {
	CountActiveInSlot(ctx context.Context, date time.Time, timeLabel string) (int, error)
	ActiveSlots(ctx context.Context, date time.Time) ([]string, error)
	Create(ctx context.Context, d *models.AppointmentDraft) (*models.Appointment, error)
}

// SlotChecker guards the one-active-booking-per-slot rule. The pre-check gives
// a friendly error; the store's unique index decides races.
type SlotChecker struct {
	store SlotStore
	loc   *time.Location
	now   func() time.Time
}

func NewSlotChecker(store SlotStore, loc *time.Location) *SlotChecker {
	if loc == nil {
		loc = time.Local
	}
	return &SlotChecker{store: store, loc: loc, now: time.Now}
}

func (c *SlotChecker) WithClock(now func() time.Time) *SlotChecker {
	c.now = now
	return c
}

// CalendarDate strips t to its calendar date as a UTC midnight.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the current calendar date in the checker's location.
func (c *SlotChecker) Today() time.Time {
	return CalendarDate(c.now().In(c.loc))
}

// Validate checks the time label and that date is today or later.
func (c *SlotChecker) Validate(date time.Time, timeLabel string) error {
	if !models.ValidTimeSlot(timeLabel) {
		ve := models.NewValidationError()
		ve.Add("appointmentTime", "must be one of the scheduled time slots")
		return ve
	}
	if CalendarDate(date).Before(c.Today()) {
		return models.ErrSlotInPast
	}
	return nil
}

func (c *SlotChecker) IsSlotFree(ctx context.Context, date time.Time, timeLabel string) (bool, error) {
	n, err := c.store.CountActiveInSlot(ctx, CalendarDate(date), timeLabel)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Reserve stores draft as a pending appointment or returns models.ErrSlotTaken.
func (c *SlotChecker) Reserve(ctx context.Context, draft *models.AppointmentDraft) (*models.Appointment, error) {
	if err := c.Validate(draft.Date, draft.Time); err != nil {
		return nil, err
	}
	draft.Date = CalendarDate(draft.Date)

	free, err := c.IsSlotFree(ctx, draft.Date, draft.Time)
	if err != nil {
		return nil, fmt.Errorf("check slot: %w", err)
	}
	if !free {
		return nil, models.ErrSlotTaken
	}

	appt, err := c.store.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// Availability lists the free time labels on date in display order.
func (c *SlotChecker) Availability(ctx context.Context, date time.Time) ([]string, error) {
	date = CalendarDate(date)
	if date.Before(c.Today()) {
		return nil, models.ErrSlotInPast
	}

	taken, err := c.store.ActiveSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	held := make(map[string]bool, len(taken))
	for _, t := range taken {
		held[t] = true
	}

	free := make([]string, 0, len(models.TimeSlots))
	for _, label := range models.TimeSlots {
		if !held[label] {
			free = append(free, label)
		}
	}
	return free, nil
}
