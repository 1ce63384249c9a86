package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/notify"
	"github.com/BradenHooton/carepoint/internal/observability"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

const (
	dashboardRecent    = 5
	dashboardPeakHours = 5
)

// AppointmentStore defines persistence for appointments beyond slot reservation
type AppointmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, f models.AppointmentFilter, page models.Page) ([]models.Appointment, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error)
	UpdateNotes(ctx context.Context, id, notes string) (*models.Appointment, error)
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context, today time.Time) (total, pending, onDate int, err error)
	Recent(ctx context.Context, n int) ([]models.Appointment, error)
	PeakHours(ctx context.Context, n int) ([]models.PeakHour, error)
}

// AppointmentService runs the booking lifecycle and queues patient and staff email.
type AppointmentService struct {
	store       AppointmentStore
	slots       *SlotChecker
	dispatcher  notify.Dispatcher
	staffEmail  string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAppointmentService(
	store AppointmentStore,
	slots *SlotChecker,
	dispatcher notify.Dispatcher,
	staffEmail string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AppointmentService {
	return &AppointmentService{
		store:       store,
		slots:       slots,
		dispatcher:  dispatcher,
		staffEmail:  staffEmail,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Create books a slot and queues the confirmation and staff alert. Queueing
// failures are logged and reported, never returned.
func (s *AppointmentService) Create(ctx context.Context, draft *models.AppointmentDraft) (*models.BookingReceipt, error) {
	ve := models.NewValidationError()
	if !draft.Department.Valid() {
		ve.Add("department", "must be a known department")
	}
	switch draft.Gender {
	case models.GenderMale, models.GenderFemale, models.GenderOther, models.GenderPreferNotToSay:
	default:
		ve.Add("gender", "must be male, female, other or prefer-not-to-say")
	}
	if err := ve.ErrOrNil(); err != nil {
		return nil, err
	}

	appt, err := s.slots.Reserve(ctx, draft)
	if err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			s.logger.Info("slot already booked",
				slog.String("date", draft.Date.Format(models.DateLayout)),
				slog.String("time", draft.Time))
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		slog.String("appointment_id", appt.ID),
		slog.String("department", string(appt.Department)),
		slog.String("email", pkglogger.SanitizedEmail(appt.Email)))

	data := appointmentData(appt)
	s.enqueue(ctx, notify.NewMessage(notify.KindAppointmentConfirmation, appt.Email, data))
	if s.staffEmail != "" {
		s.enqueue(ctx, notify.NewMessage(notify.KindAppointmentAlert, s.staffEmail, data))
	}

	return &models.BookingReceipt{
		AppointmentID: appt.ID,
		Date:          appt.Date.Format(models.DateLayout),
		Time:          appt.Time,
		Department:    appt.Department,
	}, nil
}

func (s *AppointmentService) Availability(ctx context.Context, date time.Time) ([]string, error) {
	return s.slots.Availability(ctx, date)
}

func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	return s.store.GetByID(ctx, id)
}

func (s *AppointmentService) List(ctx context.Context, f models.AppointmentFilter, page models.Page) (*models.PageResult[models.Appointment], error) {
	items, total, err := s.store.List(ctx, f, page)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return &models.PageResult[models.Appointment]{Items: items, Pagination: models.NewPagination(page, total)}, nil
}

// Transition applies a status change and/or notes. Status changes follow
// models.AppointmentStatus.CanTransitionTo and are compare-and-set on the
// previous status, so of two concurrent transitions only one succeeds.
// Repeating a non-terminal status is a notes update; any status on a
// terminal appointment is rejected.
func (s *AppointmentService) Transition(ctx context.Context, actor *models.Principal, id string, u models.AppointmentUpdate) (*models.Appointment, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Status != nil && *u.Status == current.Status && current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s is final", models.ErrInvalidTransition, current.Status)
	}
	if u.Status == nil || *u.Status == current.Status {
		if u.Notes == nil {
			return current, nil
		}
		return s.store.UpdateNotes(ctx, id, *u.Notes)
	}

	next := *u.Status
	if !next.Valid() || !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, current.Status, next)
	}

	updated, err := s.store.UpdateStatus(ctx, id, current.Status, next, u.Notes)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The row moved on or disappeared between the read and the update.
			if _, gerr := s.store.GetByID(ctx, id); errors.Is(gerr, models.ErrNotFound) {
				return nil, models.ErrNotFound
			}
			return nil, fmt.Errorf("%w: status changed concurrently", models.ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.auditLogger.LogAccountAction(ctx, "appointment_status_changed", actor.AccountID, id, map[string]string{
		"from": string(current.Status),
		"to":   string(next),
	})

	if next == models.StatusConfirmed || next == models.StatusCancelled {
		data := appointmentData(updated)
		data["status"] = string(next)
		data["notes"] = updated.Notes
		s.enqueue(ctx, notify.NewMessage(notify.KindAppointmentStatus, updated.Email, data))
	}
	return updated, nil
}

func (s *AppointmentService) Delete(ctx context.Context, actor *models.Principal, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.auditLogger.LogAccountAction(ctx, "appointment_deleted", actor.AccountID, id, nil)
	return nil
}

func (s *AppointmentService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	total, pending, today, err := s.store.Counts(ctx, s.slots.Today())
	if err != nil {
		return nil, err
	}
	recent, err := s.store.Recent(ctx, dashboardRecent)
	if err != nil {
		return nil, err
	}
	peaks, err := s.store.PeakHours(ctx, dashboardPeakHours)
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		TotalAppointments:   total,
		PendingAppointments: pending,
		TodayAppointments:   today,
		RecentAppointments:  recent,
		PeakHours:           peaks,
	}, nil
}

func (s *AppointmentService) enqueue(ctx context.Context, msg notify.Message) {
	if err := s.dispatcher.Enqueue(ctx, msg); err != nil {
		s.logger.Error("failed to enqueue notification",
			slog.String("kind", string(msg.Kind)),
			slog.String("id", msg.ID),
			slog.Any("error", err))
		observability.CaptureError(ctx, err, map[string]string{"component": "notify", "kind": string(msg.Kind)})
	}
}

func appointmentData(a *models.Appointment) map[string]string {
	return map[string]string{
		"appointmentId": a.ID,
		"name":          a.PatientName(),
		"email":         a.Email,
		"phone":         a.Phone,
		"date":          a.Date.Format(models.DateLayout),
		"time":          a.Time,
		"department":    string(a.Department),
		"doctor":        a.Doctor,
		"reason":        a.Reason,
	}
}
