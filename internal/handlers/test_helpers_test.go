package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/services"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccountID = "8f14e45f-ceea-467f-a8f4-000000000001"

func testResponder() *ErrorResponder {
	return NewErrorResponder(slog.New(slog.NewTextHandler(io.Discard, nil)), true)
}

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithPrincipal attaches an authenticated caller to req
func WithPrincipal(req *http.Request, role models.Role) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), &models.Principal{
		AccountID: testAccountID,
		Username:  "frontdesk",
		Role:      role,
		IssuedAt:  time.Now(),
	}))
}

// WithURLParam sets a chi route parameter on req
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertSuccessResponse checks status and decodes the data envelope into target
func AssertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode response JSON")
	assert.True(t, resp.Success)
	if target != nil {
		require.NoError(t, json.Unmarshal(resp.Data, target))
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	ProfileFunc        func(ctx context.Context, accountID string) (*models.Admin, error)
	UpdateProfileFunc  func(ctx context.Context, accountID string, u services.ProfileUpdate) (*models.Admin, error)
	ChangePasswordFunc func(ctx context.Context, accountID, currentPassword, newPassword, ip string) (*services.LoginResult, error)
	ForgotPasswordFunc func(ctx context.Context, email string) error
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string) error
	SetupMFAFunc       func(ctx context.Context, accountID string) (*auth.Enrollment, error)
	EnableMFAFunc      func(ctx context.Context, accountID, code string) error
	DisableMFAFunc     func(ctx context.Context, accountID, password, code string) error
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, in)
}

func (m *MockAuthService) Profile(ctx context.Context, accountID string) (*models.Admin, error) {
	if m.ProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ProfileFunc(ctx, accountID)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, accountID string, u services.ProfileUpdate) (*models.Admin, error) {
	if m.UpdateProfileFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateProfileFunc(ctx, accountID, u)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, ip string) (*services.LoginResult, error) {
	if m.ChangePasswordFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.ChangePasswordFunc(ctx, accountID, currentPassword, newPassword, ip)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrResetTokenInvalid
	}
	return m.ResetPasswordFunc(ctx, token, newPassword)
}

func (m *MockAuthService) SetupMFA(ctx context.Context, accountID string) (*auth.Enrollment, error) {
	if m.SetupMFAFunc == nil {
		return nil, models.ErrMFANotConfigured
	}
	return m.SetupMFAFunc(ctx, accountID)
}

func (m *MockAuthService) EnableMFA(ctx context.Context, accountID, code string) error {
	if m.EnableMFAFunc == nil {
		return nil
	}
	return m.EnableMFAFunc(ctx, accountID, code)
}

func (m *MockAuthService) DisableMFA(ctx context.Context, accountID, password, code string) error {
	if m.DisableMFAFunc == nil {
		return nil
	}
	return m.DisableMFAFunc(ctx, accountID, password, code)
}

// MockAppointmentService implements AppointmentServiceInterface for testing
type MockAppointmentService struct {
	CreateFunc       func(ctx context.Context, draft *models.AppointmentDraft) (*models.BookingReceipt, error)
	AvailabilityFunc func(ctx context.Context, date time.Time) ([]string, error)
	GetFunc          func(ctx context.Context, id string) (*models.Appointment, error)
	ListFunc         func(ctx context.Context, f models.AppointmentFilter, page models.Page) (*models.PageResult[models.Appointment], error)
	TransitionFunc   func(ctx context.Context, actor *models.Principal, id string, u models.AppointmentUpdate) (*models.Appointment, error)
	DeleteFunc       func(ctx context.Context, actor *models.Principal, id string) error
	DashboardFunc    func(ctx context.Context) (*models.DashboardStats, error)
}

func (m *MockAppointmentService) Create(ctx context.Context, draft *models.AppointmentDraft) (*models.BookingReceipt, error) {
	return m.CreateFunc(ctx, draft)
}

func (m *MockAppointmentService) Availability(ctx context.Context, date time.Time) ([]string, error) {
	return m.AvailabilityFunc(ctx, date)
}

func (m *MockAppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, id)
}

func (m *MockAppointmentService) List(ctx context.Context, f models.AppointmentFilter, page models.Page) (*models.PageResult[models.Appointment], error) {
	return m.ListFunc(ctx, f, page)
}

func (m *MockAppointmentService) Transition(ctx context.Context, actor *models.Principal, id string, u models.AppointmentUpdate) (*models.Appointment, error) {
	return m.TransitionFunc(ctx, actor, id, u)
}

func (m *MockAppointmentService) Delete(ctx context.Context, actor *models.Principal, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, actor, id)
}

func (m *MockAppointmentService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	return m.DashboardFunc(ctx)
}

// MockContentService implements ContentServiceInterface for testing
type MockContentService struct {
	SubmitContactFunc func(ctx context.Context, c *models.Contact) (*models.Contact, error)
	ListContactsFunc  func(ctx context.Context, status models.ContactStatus, page models.Page) (*models.PageResult[models.Contact], error)
	UpdateContactFunc func(ctx context.Context, actor *models.Principal, id string, u models.ContactUpdate) (*models.Contact, error)
	SubmitReviewFunc  func(ctx context.Context, r *models.Review) (*models.Review, error)
	ListReviewsFunc   func(ctx context.Context, page models.Page) (*models.PageResult[models.Review], error)
	DeleteReviewFunc  func(ctx context.Context, actor *models.Principal, id string) error
}

func (m *MockContentService) SubmitContact(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	return m.SubmitContactFunc(ctx, c)
}

func (m *MockContentService) ListContacts(ctx context.Context, status models.ContactStatus, page models.Page) (*models.PageResult[models.Contact], error) {
	return m.ListContactsFunc(ctx, status, page)
}

func (m *MockContentService) UpdateContact(ctx context.Context, actor *models.Principal, id string, u models.ContactUpdate) (*models.Contact, error) {
	return m.UpdateContactFunc(ctx, actor, id, u)
}

func (m *MockContentService) SubmitReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	return m.SubmitReviewFunc(ctx, r)
}

func (m *MockContentService) ListReviews(ctx context.Context, page models.Page) (*models.PageResult[models.Review], error) {
	return m.ListReviewsFunc(ctx, page)
}

func (m *MockContentService) DeleteReview(ctx context.Context, actor *models.Principal, id string) error {
	return m.DeleteReviewFunc(ctx, actor, id)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	ListFunc       func(ctx context.Context, page models.Page) (*models.PageResult[models.AdminSummary], error)
	CreateFunc     func(ctx context.Context, actor *models.Principal, in services.NewAdminInput) (*models.Admin, error)
	UpdateFunc     func(ctx context.Context, actor *models.Principal, id string, role *models.Role, isActive *bool) (*models.Admin, error)
	DeactivateFunc func(ctx context.Context, actor *models.Principal, id string) error
}

func (m *MockAdminService) List(ctx context.Context, page models.Page) (*models.PageResult[models.AdminSummary], error) {
	return m.ListFunc(ctx, page)
}

func (m *MockAdminService) Create(ctx context.Context, actor *models.Principal, in services.NewAdminInput) (*models.Admin, error) {
	return m.CreateFunc(ctx, actor, in)
}

func (m *MockAdminService) Update(ctx context.Context, actor *models.Principal, id string, role *models.Role, isActive *bool) (*models.Admin, error) {
	return m.UpdateFunc(ctx, actor, id, role, isActive)
}

func (m *MockAdminService) Deactivate(ctx context.Context, actor *models.Principal, id string) error {
	return m.DeactivateFunc(ctx, actor, id)
}
