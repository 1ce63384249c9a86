package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	pkgauth "github.com/BradenHooton/carepoint/pkg/auth"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

// AdminDirectory is the subset of AdminRepository used for account management.
type AdminDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Admin, error)
	List(ctx context.Context, page models.Page) ([]*models.Admin, int, error)
	Create(ctx context.Context, a *models.Admin) (*models.Admin, error)
	UpdateRoleStatus(ctx context.Context, id string, role *models.Role, isActive *bool) (*models.Admin, error)
}

// AdminService manages back-office accounts. Handlers restrict it to super-admins.
type AdminService struct {
	repo        AdminDirectory
	hasher      *pkgauth.Hasher
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAdminService(repo AdminDirectory, hasher *pkgauth.Hasher, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AdminService {
	return &AdminService{
		repo:        repo,
		hasher:      hasher,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// NewAdminInput describes an account to create.
type NewAdminInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

func (s *AdminService) List(ctx context.Context, page models.Page) (*models.PageResult[models.AdminSummary], error) {
	admins, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	items := make([]models.AdminSummary, 0, len(admins))
	for _, a := range admins {
		items = append(items, a.Summary())
	}
	return &models.PageResult[models.AdminSummary]{Items: items, Pagination: models.NewPagination(page, total)}, nil
}

func (s *AdminService) Create(ctx context.Context, actor *models.Principal, in NewAdminInput) (*models.Admin, error) {
	if in.Role == "" {
		in.Role = models.RoleAdmin
	}
	// Login treats an identifier containing @ as an email address
	if strings.Contains(in.Username, "@") {
		ve := models.NewValidationError()
		ve.Add("username", "must not contain @")
		return nil, ve
	}
	if !in.Role.Valid() {
		ve := models.NewValidationError()
		ve.Add("role", "must be one of admin, super-admin, staff")
		return nil, ve
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		ve := models.NewValidationError()
		ve.Add("password", err.Error())
		return nil, ve
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, &models.Admin{
		Username:          strings.TrimSpace(in.Username),
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Role:              in.Role,
		IsActive:          true,
		PasswordChangedAt: auth.PasswordChangedAt(s.now()),
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	s.auditLogger.LogAccountAction(ctx, "admin_created", actor.AccountID, created.ID, map[string]string{"role": string(created.Role)})
	s.logger.Info("admin created", slog.String("admin_id", created.ID), slog.String("role", string(created.Role)))
	return created, nil
}

// Update changes role and/or active state. Super-admins cannot demote or
// deactivate themselves.
func (s *AdminService) Update(ctx context.Context, actor *models.Principal, id string, role *models.Role, isActive *bool) (*models.Admin, error) {
	if role != nil && !role.Valid() {
		ve := models.NewValidationError()
		ve.Add("role", "must be one of admin, super-admin, staff")
		return nil, ve
	}
	if actor.AccountID == id {
		if isActive != nil && !*isActive {
			return nil, models.ErrSelfDeactivation
		}
		if role != nil && *role != actor.Role {
			return nil, models.ErrForbidden
		}
	}

	updated, err := s.repo.UpdateRoleStatus(ctx, id, role, isActive)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("update admin: %w", err)
	}

	meta := map[string]string{}
	if role != nil {
		meta["role"] = string(*role)
	}
	if isActive != nil {
		meta["is_active"] = strconv.FormatBool(*isActive)
	}
	s.auditLogger.LogAccountAction(ctx, "admin_updated", actor.AccountID, id, meta)
	return updated, nil
}

// Deactivate is the soft delete for admin accounts.
func (s *AdminService) Deactivate(ctx context.Context, actor *models.Principal, id string) error {
	inactive := false
	_, err := s.Update(ctx, actor, id, nil, &inactive)
	return err
}
