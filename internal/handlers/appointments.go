package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AppointmentServiceInterface defines the booking operations used by the handler
type AppointmentServiceInterface interface {
	Create(ctx context.Context, draft *models.AppointmentDraft) (*models.BookingReceipt, error)
	Availability(ctx context.Context, date time.Time) ([]string, error)
	Get(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, f models.AppointmentFilter, page models.Page) (*models.PageResult[models.Appointment], error)
	Transition(ctx context.Context, actor *models.Principal, id string, u models.AppointmentUpdate) (*models.Appointment, error)
	Delete(ctx context.Context, actor *models.Principal, id string) error
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

type AppointmentHandler struct {
	service AppointmentServiceInterface
	errors  *ErrorResponder
}

func NewAppointmentHandler(service AppointmentServiceInterface, errors *ErrorResponder) *AppointmentHandler {
	return &AppointmentHandler{service: service, errors: errors}
}

// CreateAppointmentRequest is the public booking form.
type CreateAppointmentRequest struct {
	FirstName       string `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName        string `json:"lastName" validate:"required,min=2,max=50,personname"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Phone           string `json:"phone" validate:"required,phone"`
	Gender          string `json:"gender" validate:"required,oneof=male female other prefer-not-to-say"`
	DateOfBirth     string `json:"dateOfBirth" validate:"omitempty,isodate"`
	Address         string `json:"address" validate:"omitempty,max=200"`
	Insurance       string `json:"insurance" validate:"omitempty,max=100"`
	Doctor          string `json:"doctor" validate:"omitempty,max=100"`
	Department      string `json:"department" validate:"required,department"`
	AppointmentDate string `json:"appointmentDate" validate:"required,isodate"`
	AppointmentTime string `json:"appointmentTime" validate:"required,timeslot"`
	Reason          string `json:"reason" validate:"required,min=10,max=500"`
}

// UpdateAppointmentRequest changes status and/or notes. Omitted fields are left alone.
type UpdateAppointmentRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Notes  *string `json:"notes" validate:"omitempty,max=1000"`
}

// AvailabilityResponse lists free time slots for a date.
type AvailabilityResponse struct {
	Date      string   `json:"date"`
	Available []string `json:"available"`
}

func (req CreateAppointmentRequest) draft() *models.AppointmentDraft {
	// Dates have already passed the isodate check.
	date, _ := time.Parse(models.DateLayout, req.AppointmentDate)
	d := &models.AppointmentDraft{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      strings.TrimSpace(req.Phone),
		Gender:     models.Gender(req.Gender),
		Address:    strings.TrimSpace(req.Address),
		Insurance:  strings.TrimSpace(req.Insurance),
		Doctor:     strings.TrimSpace(req.Doctor),
		Department: models.Department(req.Department),
		Date:       date,
		Time:       req.AppointmentTime,
		Reason:     strings.TrimSpace(req.Reason),
	}
	if req.DateOfBirth != "" {
		dob, _ := time.Parse(models.DateLayout, req.DateOfBirth)
		d.DateOfBirth = &dob
	}
	return d
}

// Create handles public appointment booking
// @Summary Book an appointment
// @Accept json
// @Produce json
// @Success 201 {object} models.BookingReceipt
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /appointments [post]
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	receipt, err := h.service.Create(r.Context(), req.draft())
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, "Appointment booked successfully. A confirmation email is on its way.", receipt)
}

func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	date, err := time.Parse(models.DateLayout, raw)
	if err != nil {
		pkghttp.WriteValidationError(w, map[string]string{"date": "must be a date in YYYY-MM-DD format"})
		return
	}

	free, err := h.service.Availability(r.Context(), date)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", AvailabilityResponse{Date: raw, Available: free})
}

// List handles the admin appointment list with filters, sorting and pagination.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseAppointmentFilter(r)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	page := models.NewPage(pkghttp.QueryInt(r, "page", 1), pkghttp.QueryInt(r, "limit", models.DefaultPageLimit))

	result, err := h.service.List(r.Context(), f, page)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", result)
}

func parseAppointmentFilter(r *http.Request) (models.AppointmentFilter, error) {
	q := r.URL.Query()
	ve := models.NewValidationError()
	f := models.AppointmentFilter{
		Search: strings.TrimSpace(q.Get("search")),
		SortBy: q.Get("sortBy"),
	}

	if s := q.Get("status"); s != "" {
		f.Status = models.AppointmentStatus(s)
		if !f.Status.Valid() {
			ve.Add("status", "must be one of: pending, confirmed, completed, cancelled")
		}
	}
	if d := q.Get("department"); d != "" {
		f.Department = models.Department(d)
		if !f.Department.Valid() {
			ve.Add("department", "must be a known department")
		}
	}
	for key, dst := range map[string]**time.Time{"dateFrom": &f.DateFrom, "dateTo": &f.DateTo} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(models.DateLayout, v)
		if err != nil {
			ve.Add(key, "must be a date in YYYY-MM-DD format")
			continue
		}
		*dst = &t
	}
	switch strings.ToLower(q.Get("sortOrder")) {
	case "", "desc":
		f.SortDesc = true
	case "asc":
	default:
		ve.Add("sortOrder", "must be asc or desc")
	}

	return f, ve.ErrOrNil()
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", appt)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateAppointmentRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if req.Status == nil && req.Notes == nil {
		pkghttp.WriteBadRequest(w, "Nothing to update")
		return
	}

	u := models.AppointmentUpdate{Notes: req.Notes}
	if req.Status != nil {
		s := models.AppointmentStatus(*req.Status)
		u.Status = &s
	}

	appt, err := h.service.Transition(r.Context(), principal, chi.URLParam(r, "id"), u)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Appointment updated", appt)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Appointment deleted", nil)
}

func (h *AppointmentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", stats)
}
