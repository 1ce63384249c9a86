package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/notify"
	pkgauth "github.com/BradenHooton/carepoint/pkg/auth"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

func testHasher(t *testing.T) *pkgauth.Hasher {
	t.Helper()
	h, err := pkgauth.NewHasher(pkgauth.Bcrypt, 4)
	require.NoError(t, err)
	return h
}

// NewTestAdmin creates an active admin whose password is password.
func NewTestAdmin(t *testing.T, password string) *models.Admin {
	t.Helper()
	hash, err := testHasher(t).Hash(password)
	require.NoError(t, err)
	return &models.Admin{
		ID:                "8f14e45f-ceea-467f-a8f4-000000000001",
		Username:          "frontdesk",
		Email:             "frontdesk@hospital.org",
		PasswordHash:      hash,
		FirstName:         "Front",
		LastName:          "Desk",
		Role:              models.RoleAdmin,
		IsActive:          true,
		PasswordChangedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// MockAdminStore implements AdminStore and AdminDirectory for testing. Without
// a Func override, methods operate on Admin, a single stored account.
type MockAdminStore struct {
	mu    sync.Mutex
	Admin *models.Admin

	GetByIDFunc              func(ctx context.Context, id string) (*models.Admin, error)
	GetByIdentifierFunc      func(ctx context.Context, identifier string) (*models.Admin, error)
	CompareAndSetLockoutFunc func(ctx context.Context, id string, prev, next models.LockoutState) (bool, error)
	CreateFunc               func(ctx context.Context, a *models.Admin) (*models.Admin, error)
	UpdateRoleStatusFunc     func(ctx context.Context, id string, role *models.Role, isActive *bool) (*models.Admin, error)

	LockoutWrites int
	ResetHash     string
	ResetExpires  time.Time
}

func (m *MockAdminStore) snapshot() *models.Admin {
	if m.Admin == nil {
		return nil
	}
	c := *m.Admin
	return &c
}

func (m *MockAdminStore) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Admin == nil || m.Admin.ID != id {
		return nil, models.ErrNotFound
	}
	return m.snapshot(), nil
}

func (m *MockAdminStore) GetByIdentifier(ctx context.Context, identifier string) (*models.Admin, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Admin == nil || (m.Admin.Username != identifier && m.Admin.Email != identifier) {
		return nil, models.ErrNotFound
	}
	return m.snapshot(), nil
}

func (m *MockAdminStore) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Admin == nil || m.Admin.Email != email {
		return nil, models.ErrNotFound
	}
	return m.snapshot(), nil
}

func (m *MockAdminStore) List(ctx context.Context, page models.Page) ([]*models.Admin, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Admin == nil {
		return []*models.Admin{}, 0, nil
	}
	return []*models.Admin{m.snapshot()}, 1, nil
}

func (m *MockAdminStore) Create(ctx context.Context, a *models.Admin) (*models.Admin, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, a)
	}
	a.ID = "8f14e45f-ceea-467f-a8f4-000000000002"
	return a, nil
}

func (m *MockAdminStore) UpdateProfile(ctx context.Context, id, firstName, lastName, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Admin.FirstName, m.Admin.LastName, m.Admin.Email = firstName, lastName, email
	return m.snapshot(), nil
}

func (m *MockAdminStore) UpdateRoleStatus(ctx context.Context, id string, role *models.Role, isActive *bool) (*models.Admin, error) {
	if m.UpdateRoleStatusFunc != nil {
		return m.UpdateRoleStatusFunc(ctx, id, role, isActive)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Admin == nil || m.Admin.ID != id {
		return nil, models.ErrNotFound
	}
	if role != nil {
		m.Admin.Role = *role
	}
	if isActive != nil {
		m.Admin.IsActive = *isActive
	}
	return m.snapshot(), nil
}

func (m *MockAdminStore) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Admin.PasswordHash = hash
	m.Admin.PasswordChangedAt = changedAt
	m.Admin.Lockout = models.LockoutState{}
	m.ResetHash = ""
	return nil
}

func sameLockout(a, b models.LockoutState) bool {
	if a.FailedAttempts != b.FailedAttempts {
		return false
	}
	if a.LockedUntil == nil || b.LockedUntil == nil {
		return a.LockedUntil == nil && b.LockedUntil == nil
	}
	return a.LockedUntil.Equal(*b.LockedUntil)
}

func (m *MockAdminStore) CompareAndSetLockout(ctx context.Context, id string, prev, next models.LockoutState) (bool, error) {
	if m.CompareAndSetLockoutFunc != nil {
		return m.CompareAndSetLockoutFunc(ctx, id, prev, next)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !sameLockout(m.Admin.Lockout, prev) {
		return false, nil
	}
	m.Admin.Lockout = next
	m.LockoutWrites++
	return true, nil
}

func (m *MockAdminStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Admin.Lockout = models.LockoutState{}
	m.Admin.LastLoginAt = &at
	return nil
}

func (m *MockAdminStore) SetMFA(ctx context.Context, id, sealedSecret string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Admin.MFASecret = sealedSecret
	m.Admin.MFAEnabled = enabled
	return nil
}

func (m *MockAdminStore) SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetHash, m.ResetExpires = tokenHash, expiresAt
	return nil
}

func (m *MockAdminStore) GetByResetHash(ctx context.Context, tokenHash string, now time.Time) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetHash == "" || m.ResetHash != tokenHash || !m.ResetExpires.After(now) {
		return nil, models.ErrNotFound
	}
	return m.snapshot(), nil
}

// MockDispatcher implements notify.Dispatcher for testing
type MockDispatcher struct {
	EnqueueFunc func(ctx context.Context, msg notify.Message) error

	mu       sync.Mutex
	Messages []notify.Message
}

func (m *MockDispatcher) Enqueue(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, msg)
	m.mu.Unlock()
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, msg)
	}
	return nil
}

func (m *MockDispatcher) Kinds() []notify.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]notify.Kind, 0, len(m.Messages))
	for _, msg := range m.Messages {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

// MockAppointmentStore implements SlotStore and AppointmentStore in memory.
// The slot check in Create mirrors the partial unique index.
type MockAppointmentStore struct {
	mu    sync.Mutex
	items map[string]*models.Appointment
	seq   int

	CountActiveInSlotFunc func(ctx context.Context, date time.Time, timeLabel string) (int, error)
	UpdateStatusFunc      func(ctx context.Context, id string, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error)
}

func NewMockAppointmentStore() *MockAppointmentStore {
	return &MockAppointmentStore{items: make(map[string]*models.Appointment)}
}

func (m *MockAppointmentStore) activeIn(date time.Time, timeLabel string) int {
	n := 0
	for _, a := range m.items {
		if a.Date.Equal(date) && a.Time == timeLabel && a.Status.Active() {
			n++
		}
	}
	return n
}

func (m *MockAppointmentStore) CountActiveInSlot(ctx context.Context, date time.Time, timeLabel string) (int, error) {
	if m.CountActiveInSlotFunc != nil {
		return m.CountActiveInSlotFunc(ctx, date, timeLabel)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeIn(date, timeLabel), nil
}

func (m *MockAppointmentStore) ActiveSlots(ctx context.Context, date time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.items {
		if a.Date.Equal(date) && a.Status.Active() {
			out = append(out, a.Time)
		}
	}
	return out, nil
}

func (m *MockAppointmentStore) Create(ctx context.Context, d *models.AppointmentDraft) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeIn(d.Date, d.Time) > 0 {
		return nil, models.ErrSlotTaken
	}
	m.seq++
	a := &models.Appointment{
		ID:         fmt.Sprintf("appt-%d", m.seq),
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Email:      d.Email,
		Phone:      d.Phone,
		Gender:     d.Gender,
		Department: d.Department,
		Date:       d.Date,
		Time:       d.Time,
		Reason:     d.Reason,
		Status:     models.StatusPending,
		CreatedAt:  time.Now(),
	}
	m.items[a.ID] = a
	c := *a
	return &c, nil
}

func (m *MockAppointmentStore) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (m *MockAppointmentStore) List(ctx context.Context, f models.AppointmentFilter, page models.Page) ([]models.Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Appointment, 0)
	for _, a := range m.items {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *MockAppointmentStore) UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, from, to, notes)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.Status != from {
		return nil, models.ErrNotFound
	}
	a.Status = to
	if notes != nil {
		a.Notes = *notes
	}
	c := *a
	return &c, nil
}

func (m *MockAppointmentStore) UpdateNotes(ctx context.Context, id, notes string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	a.Notes = notes
	c := *a
	return &c, nil
}

func (m *MockAppointmentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *MockAppointmentStore) Counts(ctx context.Context, today time.Time) (total, pending, onDate int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		total++
		if a.Status == models.StatusPending {
			pending++
		}
		if a.Date.Equal(today) {
			onDate++
		}
	}
	return total, pending, onDate, nil
}

func (m *MockAppointmentStore) Recent(ctx context.Context, n int) ([]models.Appointment, error) {
	items, _, _ := m.List(ctx, models.AppointmentFilter{}, models.NewPage(1, n))
	if len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func (m *MockAppointmentStore) PeakHours(ctx context.Context, n int) ([]models.PeakHour, error) {
	return []models.PeakHour{}, nil
}

// MockContactStore implements ContactStore for testing
type MockContactStore struct {
	CreateFunc func(ctx context.Context, c *models.Contact) (*models.Contact, error)
	ListFunc   func(ctx context.Context, status models.ContactStatus, page models.Page) ([]models.Contact, int, error)
	UpdateFunc func(ctx context.Context, id string, u models.ContactUpdate, now time.Time) (*models.Contact, error)
}

func (m *MockContactStore) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	c.ID = "contact-1"
	c.Status = models.ContactNew
	c.Priority = models.PriorityMedium
	return c, nil
}

func (m *MockContactStore) List(ctx context.Context, status models.ContactStatus, page models.Page) ([]models.Contact, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, status, page)
	}
	return []models.Contact{}, 0, nil
}

func (m *MockContactStore) Update(ctx context.Context, id string, u models.ContactUpdate, now time.Time) (*models.Contact, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, u, now)
	}
	return nil, models.ErrNotFound
}

// MockReviewStore implements ReviewStore for testing
type MockReviewStore struct {
	CreateFunc func(ctx context.Context, r *models.Review) (*models.Review, error)
	ListFunc   func(ctx context.Context, page models.Page) ([]models.Review, int, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *MockReviewStore) Create(ctx context.Context, r *models.Review) (*models.Review, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	r.ID = "review-1"
	return r, nil
}

func (m *MockReviewStore) List(ctx context.Context, page models.Page) ([]models.Review, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, page)
	}
	return []models.Review{}, 0, nil
}

func (m *MockReviewStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}
