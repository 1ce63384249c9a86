package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ContentServiceInterface covers contact-form intake and reviews
type ContentServiceInterface interface {
	SubmitContact(ctx context.Context, c *models.Contact) (*models.Contact, error)
	ListContacts(ctx context.Context, status models.ContactStatus, page models.Page) (*models.PageResult[models.Contact], error)
	UpdateContact(ctx context.Context, actor *models.Principal, id string, u models.ContactUpdate) (*models.Contact, error)
	SubmitReview(ctx context.Context, r *models.Review) (*models.Review, error)
	ListReviews(ctx context.Context, page models.Page) (*models.PageResult[models.Review], error)
	DeleteReview(ctx context.Context, actor *models.Principal, id string) error
}

type ContentHandler struct {
	service ContentServiceInterface
	errors  *ErrorResponder
}

func NewContentHandler(service ContentServiceInterface, errors *ErrorResponder) *ContentHandler {
	return &ContentHandler{service: service, errors: errors}
}

type ContactRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50,personname"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
	Subject   string `json:"subject" validate:"required,oneof=general-inquiry appointment billing medical-records feedback other"`
	Message   string `json:"message" validate:"required,min=10,max=1000"`
}

type UpdateContactRequest struct {
	Status     *string `json:"status" validate:"omitempty,oneof=new in-progress resolved closed"`
	Priority   *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo *string `json:"assignedTo" validate:"omitempty,uuid"`
	Response   *string `json:"response" validate:"omitempty,max=2000"`
}

type ReviewRequest struct {
	PatientName string `json:"patientName" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Rating      *int   `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment     string `json:"comment" validate:"required,max=10000"`
}

func (h *ContentHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	_, err := h.service.SubmitContact(r.Context(), &models.Contact{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Subject:   models.ContactSubject(req.Subject),
		Message:   strings.TrimSpace(req.Message),
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, "Thank you for contacting us. We will get back to you shortly.", nil)
}

func (h *ContentHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	status := models.ContactStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.ContactNew, models.ContactInProgress, models.ContactResolved, models.ContactClosed:
	default:
		pkghttp.WriteValidationError(w, map[string]string{"status": "must be one of: new, in-progress, resolved, closed"})
		return
	}
	page := models.NewPage(pkghttp.QueryInt(r, "page", 1), pkghttp.QueryInt(r, "limit", models.DefaultPageLimit))

	result, err := h.service.ListContacts(r.Context(), status, page)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", result)
}

func (h *ContentHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateContactRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	var u models.ContactUpdate
	if req.Status != nil {
		s := models.ContactStatus(*req.Status)
		u.Status = &s
	}
	if req.Priority != nil {
		p := models.ContactPriority(*req.Priority)
		u.Priority = &p
	}
	u.AssignedTo = req.AssignedTo
	u.Response = req.Response

	contact, err := h.service.UpdateContact(r.Context(), principal, chi.URLParam(r, "id"), u)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Contact updated", contact)
}

func (h *ContentHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	_, err := h.service.SubmitReview(r.Context(), &models.Review{
		PatientName: strings.TrimSpace(req.PatientName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Rating:      req.Rating,
		Comment:     strings.TrimSpace(req.Comment),
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, "Thank you for your review", nil)
}

func (h *ContentHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	page := models.NewPage(pkghttp.QueryInt(r, "page", 1), pkghttp.QueryInt(r, "limit", models.DefaultPageLimit))

	result, err := h.service.ListReviews(r.Context(), page)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", result)
}

func (h *ContentHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.DeleteReview(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Review deleted", nil)
}
