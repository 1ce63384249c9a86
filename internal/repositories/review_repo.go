package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/carepoint/internal/database"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewRepository stores patient reviews in the content dataset.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(db *database.DB) *ReviewRepository {
	return &ReviewRepository{pool: db.Pool}
}

const reviewColumns = `id, patient_name, email, rating, comment, created_at`

func scanReviewRow(scanner rowScanner) (*models.Review, error) {
	var rv models.Review
	var rating *int16
	if err := scanner.Scan(&rv.ID, &rv.PatientName, &rv.Email, &rating, &rv.Comment, &rv.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	if rating != nil {
		n := int(*rating)
		rv.Rating = &n
	}
	return &rv, nil
}

func (r *ReviewRepository) Create(ctx context.Context, rv *models.Review) (*models.Review, error) {
	query := `
		INSERT INTO reviews (id, patient_name, email, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + reviewColumns
	return scanReviewRow(r.pool.QueryRow(ctx, query, uuid.New().String(), rv.PatientName, rv.Email, rv.Rating, rv.Comment))
}

func (r *ReviewRepository) List(ctx context.Context, page models.Page) ([]models.Review, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	query := `SELECT ` + reviewColumns + ` FROM reviews ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	items := make([]models.Review, 0)
	for rows.Next() {
		rv, err := scanReviewRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		items = append(items, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, total, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
