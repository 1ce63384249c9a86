package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testActor = &models.Principal{AccountID: "8f14e45f-ceea-467f-a8f4-000000000001", Username: "frontdesk", Role: models.RoleAdmin}

func newTestAppointmentService(store *MockAppointmentStore, dispatcher *MockDispatcher) *AppointmentService {
	return NewAppointmentService(store, newTestSlotChecker(store), dispatcher, "reception@hospital.org", testLogger(), testAuditLogger())
}

func statusPtr(s models.AppointmentStatus) *models.AppointmentStatus { return &s }

func strPtr(s string) *string { return &s }

func TestAppointmentService_Create(t *testing.T) {
	store := NewMockAppointmentStore()
	dispatcher := &MockDispatcher{}
	svc := newTestAppointmentService(store, dispatcher)

	receipt, err := svc.Create(context.Background(), testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.AppointmentID)
	assert.Equal(t, "2025-03-10", receipt.Date)
	assert.Equal(t, "09:00", receipt.Time)
	assert.Equal(t, models.DeptPaediatric, receipt.Department)

	assert.Equal(t, []notify.Kind{notify.KindAppointmentConfirmation, notify.KindAppointmentAlert}, dispatcher.Kinds())
	assert.Equal(t, "adaeze@example.com", dispatcher.Messages[0].To)
	assert.Equal(t, "reception@hospital.org", dispatcher.Messages[1].To)
	assert.Equal(t, "Adaeze Okafor", dispatcher.Messages[0].Data["name"])
}

func TestAppointmentService_Create_Validation(t *testing.T) {
	svc := newTestAppointmentService(NewMockAppointmentStore(), &MockDispatcher{})

	draft := testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00")
	draft.Department = "cardiology"
	draft.Gender = "unknown"

	_, err := svc.Create(context.Background(), draft)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "department")
	assert.Contains(t, ve.Fields, "gender")
}

func TestAppointmentService_Create_SlotTakenSendsNothing(t *testing.T) {
	store := NewMockAppointmentStore()
	dispatcher := &MockDispatcher{}
	svc := newTestAppointmentService(store, dispatcher)
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), testDraft(date, "09:00"))
	require.NoError(t, err)
	dispatcher.Messages = nil

	_, err = svc.Create(context.Background(), testDraft(date, "09:00"))
	assert.ErrorIs(t, err, models.ErrSlotTaken)
	assert.Empty(t, dispatcher.Messages)
}

func TestAppointmentService_Create_QueueFailureNotReturned(t *testing.T) {
	dispatcher := &MockDispatcher{EnqueueFunc: func(ctx context.Context, msg notify.Message) error {
		return notify.ErrQueueFull
	}}
	svc := newTestAppointmentService(NewMockAppointmentStore(), dispatcher)

	receipt, err := svc.Create(context.Background(), testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "12:00"))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.AppointmentID)
	assert.Len(t, dispatcher.Messages, 2)
}

func TestAppointmentService_TransitionMatrix(t *testing.T) {
	all := models.AppointmentStatuses
	allowed := map[models.AppointmentStatus][]models.AppointmentStatus{
		models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
		models.StatusConfirmed: {models.StatusCompleted, models.StatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			// Repeating a non-terminal status leaves it unchanged
			want := from == to && !from.IsTerminal()
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				store := NewMockAppointmentStore()
				svc := newTestAppointmentService(store, &MockDispatcher{})
				ctx := context.Background()

				appt, err := store.Create(ctx, testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
				require.NoError(t, err)
				store.items[appt.ID].Status = from

				updated, err := svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Status: statusPtr(to)})
				if want {
					require.NoError(t, err)
					assert.Equal(t, to, updated.Status)
					return
				}
				assert.ErrorIs(t, err, models.ErrInvalidTransition)
				stored, _ := store.GetByID(ctx, appt.ID)
				assert.Equal(t, from, stored.Status)
			})
		}
	}
}

func TestAppointmentService_Transition_Notifications(t *testing.T) {
	store := NewMockAppointmentStore()
	dispatcher := &MockDispatcher{}
	svc := newTestAppointmentService(store, dispatcher)
	ctx := context.Background()

	appt, err := store.Create(ctx, testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
	require.NoError(t, err)

	_, err = svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Status: statusPtr(models.StatusConfirmed), Notes: strPtr("Bring referral letter")})
	require.NoError(t, err)
	require.Len(t, dispatcher.Messages, 1)
	msg := dispatcher.Messages[0]
	assert.Equal(t, notify.KindAppointmentStatus, msg.Kind)
	assert.Equal(t, "confirmed", msg.Data["status"])
	assert.Equal(t, "Bring referral letter", msg.Data["notes"])

	// Completion is not emailed.
	_, err = svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Status: statusPtr(models.StatusCompleted)})
	require.NoError(t, err)
	assert.Len(t, dispatcher.Messages, 1)
}

func TestAppointmentService_Transition_RepeatTerminalStatusRejected(t *testing.T) {
	store := NewMockAppointmentStore()
	svc := newTestAppointmentService(store, &MockDispatcher{})
	ctx := context.Background()

	appt, err := store.Create(ctx, testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
	require.NoError(t, err)
	store.items[appt.ID].Status = models.StatusCompleted
	store.items[appt.ID].Notes = "seen"

	_, err = svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Status: statusPtr(models.StatusCompleted), Notes: strPtr("again")})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, _ := store.GetByID(ctx, appt.ID)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, "seen", stored.Notes)
}

func TestAppointmentService_Transition_NotesOnly(t *testing.T) {
	store := NewMockAppointmentStore()
	dispatcher := &MockDispatcher{}
	svc := newTestAppointmentService(store, dispatcher)
	ctx := context.Background()

	appt, err := store.Create(ctx, testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
	require.NoError(t, err)

	updated, err := svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Notes: strPtr("Called to confirm")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
	assert.Equal(t, "Called to confirm", updated.Notes)

	// Same status with notes is a notes update, not a transition.
	updated, err = svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Status: statusPtr(models.StatusPending), Notes: strPtr("Second call")})
	require.NoError(t, err)
	assert.Equal(t, "Second call", updated.Notes)
	assert.Empty(t, dispatcher.Messages)
}

func TestAppointmentService_Transition_ConcurrentChange(t *testing.T) {
	store := NewMockAppointmentStore()
	svc := newTestAppointmentService(store, &MockDispatcher{})
	ctx := context.Background()

	appt, err := store.Create(ctx, testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
	require.NoError(t, err)

	// Another admin cancels between our read and our update.
	store.UpdateStatusFunc = func(ctx context.Context, id string, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error) {
		store.mu.Lock()
		store.items[id].Status = models.StatusCancelled
		store.mu.Unlock()
		return nil, models.ErrNotFound
	}

	_, err = svc.Transition(ctx, testActor, appt.ID, models.AppointmentUpdate{Status: statusPtr(models.StatusConfirmed)})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAppointmentService_Transition_NotFound(t *testing.T) {
	svc := newTestAppointmentService(NewMockAppointmentStore(), &MockDispatcher{})
	_, err := svc.Transition(context.Background(), testActor, "missing", models.AppointmentUpdate{Status: statusPtr(models.StatusConfirmed)})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppointmentService_Delete(t *testing.T) {
	store := NewMockAppointmentStore()
	svc := newTestAppointmentService(store, &MockDispatcher{})
	ctx := context.Background()

	appt, err := store.Create(ctx, testDraft(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:00"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, testActor, appt.ID))
	assert.ErrorIs(t, svc.Delete(ctx, testActor, appt.ID), models.ErrNotFound)
}

func TestAppointmentService_Dashboard(t *testing.T) {
	store := NewMockAppointmentStore()
	svc := newTestAppointmentService(store, &MockDispatcher{})
	ctx := context.Background()
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	for i, slot := range []string{"09:00", "10:00", "11:00"} {
		appt, err := svc.Create(ctx, testDraft(today.AddDate(0, 0, i%2), slot))
		require.NoError(t, err)
		if i == 0 {
			_, err = svc.Transition(ctx, testActor, appt.AppointmentID, models.AppointmentUpdate{Status: statusPtr(models.StatusConfirmed)})
			require.NoError(t, err)
		}
	}

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAppointments)
	assert.Equal(t, 2, stats.PendingAppointments)
	assert.Equal(t, 2, stats.TodayAppointments)
	assert.Len(t, stats.RecentAppointments, 3)
	assert.NotNil(t, stats.PeakHours)
}
