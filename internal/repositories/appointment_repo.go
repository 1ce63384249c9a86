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

type AppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepository(db *database.DB) *AppointmentRepository {
	return &AppointmentRepository{pool: db.Pool}
}

const appointmentColumns = `id, first_name, last_name, email, phone, gender, date_of_birth, address,
	insurance, doctor, department, appointment_date, appointment_time, reason, status, notes,
	created_at, updated_at`

// appointmentSortColumns whitelists sortable fields by their API name.
var appointmentSortColumns = map[string]string{
	"appointmentDate": "appointment_date",
	"appointmentTime": "appointment_time",
	"createdAt":       "created_at",
	"status":          "status",
	"department":      "department",
	"lastName":        "last_name",
}

// ValidAppointmentSort reports whether field can be passed as AppointmentFilter.SortBy.
func ValidAppointmentSort(field string) bool {
	_, ok := appointmentSortColumns[field]
	return ok
}

func scanAppointmentRow(scanner rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	var gender, department, status string

	err := scanner.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &gender, &a.DateOfBirth, &a.Address,
		&a.Insurance, &a.Doctor, &department, &a.Date, &a.Time, &a.Reason, &status, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	a.Gender = models.Gender(gender)
	a.Department = models.Department(department)
	a.Status = models.AppointmentStatus(status)
	return &a, nil
}

func scanAppointmentRows(rows pgx.Rows) ([]models.Appointment, error) {
	defer rows.Close()

	out := make([]models.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointmentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// CountActiveInSlot counts pending or confirmed bookings for date and time.
func (r *AppointmentRepository) CountActiveInSlot(ctx context.Context, date time.Time, timeLabel string) (int, error) {
	var n int
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE appointment_date = $1 AND appointment_time = $2 AND status IN ('pending', 'confirmed')
	`
	if err := r.pool.QueryRow(ctx, query, date, timeLabel).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count slot bookings: %w", err)
	}
	return n, nil
}

// ActiveSlots lists the time labels already held on date.
func (r *AppointmentRepository) ActiveSlots(ctx context.Context, date time.Time) ([]string, error) {
	query := `
		SELECT appointment_time FROM appointments
		WHERE appointment_date = $1 AND status IN ('pending', 'confirmed')
	`
	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Create inserts a pending appointment. A concurrent booking of the same slot
// surfaces as models.ErrSlotTaken from the partial unique index.
func (r *AppointmentRepository) Create(ctx context.Context, d *models.AppointmentDraft) (*models.Appointment, error) {
	query := `
		INSERT INTO appointments (id, first_name, last_name, email, phone, gender, date_of_birth, address,
			insurance, doctor, department, appointment_date, appointment_time, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 'pending')
		RETURNING ` + appointmentColumns

	return scanAppointmentRow(r.pool.QueryRow(ctx, query,
		uuid.New().String(), d.FirstName, d.LastName, d.Email, d.Phone, string(d.Gender), d.DateOfBirth,
		d.Address, d.Insurance, d.Doctor, string(d.Department), d.Date, d.Time, d.Reason,
	))
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return scanAppointmentRow(r.pool.QueryRow(ctx, query, id))
}

// buildAppointmentWhere renders filter as a WHERE clause with positional args.
func buildAppointmentWhere(f models.AppointmentFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Department != "" {
		add("department = $%d", string(f.Department))
	}
	if f.DateFrom != nil {
		add("appointment_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("appointment_date <= $%d", *f.DateTo)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)", n, n, n))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func appointmentOrderBy(f models.AppointmentFilter) string {
	col, ok := appointmentSortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
}

func (r *AppointmentRepository) List(ctx context.Context, f models.AppointmentFilter, page models.Page) ([]models.Appointment, int, error) {
	where, args := buildAppointmentWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	args = append(args, page.Limit, page.Offset())
	query := `SELECT ` + appointmentColumns + ` FROM appointments` + where + appointmentOrderBy(f) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query appointments: %w", err)
	}
	items, err := scanAppointmentRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateStatus moves id from status `from` to `to` only if it is still in `from`.
// It returns models.ErrNotFound when no row matched.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error) {
	query := `
		UPDATE appointments SET status = $3, notes = COALESCE($4, notes), updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns
	return scanAppointmentRow(r.pool.QueryRow(ctx, query, id, string(from), string(to), notes))
}

func (r *AppointmentRepository) UpdateNotes(ctx context.Context, id, notes string) (*models.Appointment, error) {
	query := `UPDATE appointments SET notes = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + appointmentColumns
	return scanAppointmentRow(r.pool.QueryRow(ctx, query, id, notes))
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Counts returns the total, pending and on-date booking counts.
func (r *AppointmentRepository) Counts(ctx context.Context, today time.Time) (total, pending, onDate int, err error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE appointment_date = $1)
		FROM appointments
	`
	if err = r.pool.QueryRow(ctx, query, today).Scan(&total, &pending, &onDate); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return total, pending, onDate, nil
}

func (r *AppointmentRepository) Recent(ctx context.Context, n int) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent appointments: %w", err)
	}
	return scanAppointmentRows(rows)
}

// PeakHours returns the n busiest time labels across all bookings.
func (r *AppointmentRepository) PeakHours(ctx context.Context, n int) ([]models.PeakHour, error) {
	query := `
		SELECT appointment_time, COUNT(*) AS c FROM appointments
		GROUP BY appointment_time ORDER BY c DESC, appointment_time ASC LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query peak hours: %w", err)
	}
	defer rows.Close()

	out := make([]models.PeakHour, 0, n)
	for rows.Next() {
		var p models.PeakHour
		if err := rows.Scan(&p.Time, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan peak hour: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
