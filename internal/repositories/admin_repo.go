package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/carepoint/internal/database"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(db *database.DB) *AdminRepository {
	return &AdminRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

const adminColumns = `id, username, email, password_hash, first_name, last_name, role, is_active,
	failed_login_attempts, locked_until, last_login_at, password_changed_at,
	mfa_enabled, mfa_secret, created_at, updated_at`

// scanAdminRow handles nullable fields and populates an Admin from a database row
func scanAdminRow(scanner rowScanner) (*models.Admin, error) {
	var a models.Admin
	var role string
	var mfaSecret *string

	err := scanner.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &role, &a.IsActive,
		&a.Lockout.FailedAttempts, &a.Lockout.LockedUntil, &a.LastLoginAt, &a.PasswordChangedAt,
		&a.MFAEnabled, &mfaSecret, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	a.Role = models.Role(role)
	if mfaSecret != nil {
		a.MFASecret = *mfaSecret
	}
	return &a, nil
}

func scanAdminRows(rows pgx.Rows) ([]*models.Admin, error) {
	defer rows.Close()

	admins := make([]*models.Admin, 0)
	for rows.Next() {
		a, err := scanAdminRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return admins, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`
	return scanAdminRow(r.pool.QueryRow(ctx, query, id))
}

// GetByIdentifier looks up by email, case-insensitively, when identifier
// contains @ and by exact username otherwise.
func (r *AdminRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Admin, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return r.GetByEmail(ctx, identifier)
	}
	query := `SELECT ` + adminColumns + ` FROM admins WHERE username = $1`
	return scanAdminRow(r.pool.QueryRow(ctx, query, identifier))
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE lower(email) = lower($1)`
	return scanAdminRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AdminRepository) List(ctx context.Context, page models.Page) ([]*models.Admin, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count admins: %w", err)
	}

	query := `SELECT ` + adminColumns + ` FROM admins ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query admins: %w", err)
	}

	admins, err := scanAdminRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return admins, total, nil
}

func (r *AdminRepository) Create(ctx context.Context, a *models.Admin) (*models.Admin, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Role == "" {
		a.Role = models.RoleAdmin
	}

	query := `
		INSERT INTO admins (id, username, email, password_hash, first_name, last_name, role, is_active, password_changed_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9)
		RETURNING ` + adminColumns

	return scanAdminRow(r.pool.QueryRow(ctx, query,
		a.ID, a.Username, a.Email, a.PasswordHash, a.FirstName, a.LastName,
		string(a.Role), a.IsActive, a.PasswordChangedAt,
	))
}

func (r *AdminRepository) UpdateProfile(ctx context.Context, id, firstName, lastName, email string) (*models.Admin, error) {
	query := `
		UPDATE admins SET first_name = $2, last_name = $3, email = lower($4), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + adminColumns
	return scanAdminRow(r.pool.QueryRow(ctx, query, id, firstName, lastName, email))
}

// UpdateRoleStatus changes role and/or active flag; nil leaves the column unchanged.
func (r *AdminRepository) UpdateRoleStatus(ctx context.Context, id string, role *models.Role, isActive *bool) (*models.Admin, error) {
	var roleArg *string
	if role != nil {
		s := string(*role)
		roleArg = &s
	}

	query := `
		UPDATE admins SET
			role = COALESCE($2, role),
			is_active = COALESCE($3, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + adminColumns
	return scanAdminRow(r.pool.QueryRow(ctx, query, id, roleArg, isActive))
}

// UpdatePassword stores a new hash and clears any outstanding reset token.
func (r *AdminRepository) UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error {
	query := `
		UPDATE admins SET password_hash = $2, password_changed_at = $3,
			password_reset_hash = NULL, password_reset_expires_at = NULL,
			failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, hash, changedAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CompareAndSetLockout writes next only if the stored state still equals prev.
// A false result means a concurrent attempt changed the counter first.
func (r *AdminRepository) CompareAndSetLockout(ctx context.Context, id string, prev, next models.LockoutState) (bool, error) {
	query := `
		UPDATE admins SET failed_login_attempts = $4, locked_until = $5, updated_at = NOW()
		WHERE id = $1 AND failed_login_attempts = $2 AND locked_until IS NOT DISTINCT FROM $3
	`
	tag, err := r.pool.Exec(ctx, query, id, prev.FailedAttempts, prev.LockedUntil, next.FailedAttempts, next.LockedUntil)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordLogin resets the lockout counter and stamps the login time.
func (r *AdminRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE admins SET failed_login_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, at)
	return database.MapPostgresError(err)
}

// SetMFA stores a sealed secret and the enabled flag. An empty secret clears it.
func (r *AdminRepository) SetMFA(ctx context.Context, id, sealedSecret string, enabled bool) error {
	var secret *string
	if sealedSecret != "" {
		secret = &sealedSecret
	}
	query := `UPDATE admins SET mfa_secret = $2, mfa_enabled = $3, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, secret, enabled)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *AdminRepository) SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `UPDATE admins SET password_reset_hash = $2, password_reset_expires_at = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	return database.MapPostgresError(err)
}

// GetByResetHash returns the active account holding an unexpired reset token.
func (r *AdminRepository) GetByResetHash(ctx context.Context, tokenHash string, now time.Time) (*models.Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins
		WHERE password_reset_hash = $1 AND password_reset_expires_at > $2 AND is_active`
	return scanAdminRow(r.pool.QueryRow(ctx, query, tokenHash, now))
}

// ClearExpiredResets drops reset tokens past their expiry and returns how many were cleared.
func (r *AdminRepository) ClearExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE admins SET password_reset_hash = NULL, password_reset_expires_at = NULL
		WHERE password_reset_expires_at IS NOT NULL AND password_reset_expires_at <= $1
	`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
