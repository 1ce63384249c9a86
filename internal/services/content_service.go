package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/notify"
	"github.com/BradenHooton/carepoint/internal/observability"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
	"github.com/google/uuid"
)

type ContactStore interface {
	Create(ctx context.Context, c *models.Contact) (*models.Contact, error)
	List(ctx context.Context, status models.ContactStatus, page models.Page) ([]models.Contact, int, error)
	Update(ctx context.Context, id string, u models.ContactUpdate, now time.Time) (*models.Contact, error)
}

type ReviewStore interface {
	Create(ctx context.Context, r *models.Review) (*models.Review, error)
	List(ctx context.Context, page models.Page) ([]models.Review, int, error)
	Delete(ctx context.Context, id string) error
}

// ContentService handles the public contact form and patient reviews.
type ContentService struct {
	contacts    ContactStore
	reviews     ReviewStore
	dispatcher  notify.Dispatcher
	staffEmail  string
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewContentService(
	contacts ContactStore,
	reviews ReviewStore,
	dispatcher notify.Dispatcher,
	staffEmail string,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *ContentService {
	return &ContentService{
		contacts:    contacts,
		reviews:     reviews,
		dispatcher:  dispatcher,
		staffEmail:  staffEmail,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

func (s *ContentService) SubmitContact(ctx context.Context, c *models.Contact) (*models.Contact, error) {
	created, err := s.contacts.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store contact: %w", err)
	}

	data := map[string]string{
		"name":    created.FirstName + " " + created.LastName,
		"email":   created.Email,
		"phone":   created.Phone,
		"subject": string(created.Subject),
		"message": created.Message,
	}
	s.enqueue(ctx, notify.NewMessage(notify.KindContactReceipt, created.Email, data))
	if s.staffEmail != "" {
		s.enqueue(ctx, notify.NewMessage(notify.KindContactAlert, s.staffEmail, data))
	}
	return created, nil
}

func (s *ContentService) ListContacts(ctx context.Context, status models.ContactStatus, page models.Page) (*models.PageResult[models.Contact], error) {
	items, total, err := s.contacts.List(ctx, status, page)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return &models.PageResult[models.Contact]{Items: items, Pagination: models.NewPagination(page, total)}, nil
}

func (s *ContentService) UpdateContact(ctx context.Context, actor *models.Principal, id string, u models.ContactUpdate) (*models.Contact, error) {
	if u.AssignedTo != nil {
		if _, err := uuid.Parse(*u.AssignedTo); err != nil {
			ve := models.NewValidationError()
			ve.Add("assignedTo", "must be an admin id")
			return nil, ve
		}
	}

	updated, err := s.contacts.Update(ctx, id, u, s.now())
	if err != nil {
		return nil, err
	}
	s.auditLogger.LogAccountAction(ctx, "contact_updated", actor.AccountID, id, map[string]string{"status": string(updated.Status)})
	return updated, nil
}

func (s *ContentService) SubmitReview(ctx context.Context, r *models.Review) (*models.Review, error) {
	created, err := s.reviews.Create(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("store review: %w", err)
	}

	if s.staffEmail != "" {
		data := map[string]string{
			"name":    created.PatientName,
			"email":   created.Email,
			"comment": created.Comment,
		}
		if created.Rating != nil {
			data["rating"] = strconv.Itoa(*created.Rating)
		}
		s.enqueue(ctx, notify.NewMessage(notify.KindReviewAlert, s.staffEmail, data))
	}
	return created, nil
}

func (s *ContentService) ListReviews(ctx context.Context, page models.Page) (*models.PageResult[models.Review], error) {
	items, total, err := s.reviews.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return &models.PageResult[models.Review]{Items: items, Pagination: models.NewPagination(page, total)}, nil
}

func (s *ContentService) DeleteReview(ctx context.Context, actor *models.Principal, id string) error {
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	s.auditLogger.LogAccountAction(ctx, "review_deleted", actor.AccountID, id, nil)
	return nil
}

func (s *ContentService) enqueue(ctx context.Context, msg notify.Message) {
	if err := s.dispatcher.Enqueue(ctx, msg); err != nil {
		s.logger.Error("failed to enqueue notification",
			slog.String("kind", string(msg.Kind)),
			slog.String("id", msg.ID),
			slog.Any("error", err))
		observability.CaptureError(ctx, err, map[string]string{"component": "notify", "kind": string(msg.Kind)})
	}
}
