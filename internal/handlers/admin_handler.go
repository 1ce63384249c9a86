package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/services"
	pkghttp "github.com/BradenHooton/carepoint/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the admin-account management contract.
type AdminServiceInterface interface {
	List(ctx context.Context, page models.Page) (*models.PageResult[models.AdminSummary], error)
	Create(ctx context.Context, actor *models.Principal, in services.NewAdminInput) (*models.Admin, error)
	Update(ctx context.Context, actor *models.Principal, id string, role *models.Role, isActive *bool) (*models.Admin, error)
	Deactivate(ctx context.Context, actor *models.Principal, id string) error
}

// AdminHandler handles super-admin account management.
type AdminHandler struct {
	service AdminServiceInterface
	errors  *ErrorResponder
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, errors *ErrorResponder) *AdminHandler {
	return &AdminHandler{service: service, errors: errors}
}

type CreateAdminRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50,username"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"firstName" validate:"required,max=100,personname"`
	LastName  string `json:"lastName" validate:"required,max=100,personname"`
	Role      string `json:"role" validate:"omitempty,oneof=admin super-admin staff"`
}

type UpdateAdminRequest struct {
	Role     *string `json:"role" validate:"omitempty,oneof=admin super-admin staff"`
	IsActive *bool   `json:"isActive"`
}

// List handles GET /admin/admins
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page := models.NewPage(pkghttp.QueryInt(r, "page", 1), pkghttp.QueryInt(r, "limit", models.DefaultPageLimit))

	result, err := h.service.List(r.Context(), page)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "", result)
}

// Create handles POST /admin/admins
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateAdminRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	admin, err := h.service.Create(r.Context(), principal, services.NewAdminInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.Role(req.Role),
	})
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusCreated, "Admin created", admin.Summary())
}

// Update handles PUT /admin/admins/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req UpdateAdminRequest
	if err := pkghttp.DecodeJSON(r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	if req.Role == nil && req.IsActive == nil {
		pkghttp.WriteBadRequest(w, "Nothing to update")
		return
	}

	var role *models.Role
	if req.Role != nil {
		v := models.Role(*req.Role)
		role = &v
	}

	admin, err := h.service.Update(r.Context(), principal, chi.URLParam(r, "id"), role, req.IsActive)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Admin updated", admin.Summary())
}

// Deactivate handles DELETE /admin/admins/{id}; accounts are never hard-deleted.
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Deactivate(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Admin deactivated", nil)
}
