package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/carepoint/internal/database"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContactRepository stores contact-form messages in the content dataset.
type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(db *database.DB) *ContactRepository {
	return &ContactRepository{pool: db.Pool}
}

const contactColumns = `id, first_name, last_name, email, phone, subject, message, status, priority,
	assigned_to, response, responded_at, created_at, updated_at`

func scanContactRow(scanner rowScanner) (*models.Contact, error) {
	var c models.Contact
	var subject, status, priority string

	err := scanner.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &subject, &c.Message, &status, &priority,
		&c.AssignedTo, &c.Response, &c.RespondedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	c.Subject = models.ContactSubject(subject)
	c.Status = models.ContactStatus(status)
	c.Priority = models.ContactPriority(priority)
	return &c, nil
}

func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (id, first_name, last_name, email, phone, subject, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + contactColumns
	return scanContactRow(r.pool.QueryRow(ctx, query,
		uuid.New().String(), c.FirstName, c.LastName, c.Email, c.Phone, string(c.Subject), c.Message,
	))
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*models.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	return scanContactRow(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
}

// List returns contacts newest first, optionally restricted to one status.
func (r *ContactRepository) List(ctx context.Context, status models.ContactStatus, page models.Page) ([]models.Contact, int, error) {
	var statusArg *string
	if status != "" {
		s := string(status)
		statusArg = &s
	}

	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE ($1::text IS NULL OR status = $1)`, statusArg).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, statusArg, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	items := make([]models.Contact, 0)
	for rows.Next() {
		c, err := scanContactRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan contact: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, total, nil
}

// Update applies the non-nil fields of u. Setting a response stamps responded_at.
func (r *ContactRepository) Update(ctx context.Context, id string, u models.ContactUpdate, now time.Time) (*models.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	var status, priority *string
	if u.Status != nil {
		s := string(*u.Status)
		status = &s
	}
	if u.Priority != nil {
		p := string(*u.Priority)
		priority = &p
	}
	var respondedAt *time.Time
	if u.Response != nil {
		respondedAt = &now
	}

	query := `
		UPDATE contacts SET
			status = COALESCE($2, status),
			priority = COALESCE($3, priority),
			assigned_to = COALESCE($4::uuid, assigned_to),
			response = COALESCE($5, response),
			responded_at = COALESCE($6, responded_at),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + contactColumns
	return scanContactRow(r.pool.QueryRow(ctx, query, id, status, priority, u.AssignedTo, u.Response, respondedAt))
}

