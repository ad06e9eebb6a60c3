package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/internal/products"
	dbpkg "github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

// ReviewDTO is the transport shape of a review.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput captures a new review submission.
type CreateInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ListPage is a cursor page of reviews.
type ListPage struct {
	Items      []ReviewDTO `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// Service manages review submissions and listings.
type Service struct {
	repo     *Repository
	products *products.Repository
	logg     *logger.Logger
}

func NewService(repo *Repository, productsRepo *products.Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, products: productsRepo, logg: logg}
}

// Create stores one review per (user, product). The unique index is the
// arbiter; a duplicate insert surfaces as a conflict without any pre-check.
func (s *Service) Create(ctx context.Context, userID, productID uuid.UUID, input CreateInput) (*ReviewDTO, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.New(apperrors.CodeValidation, "rating out of range").
			WithDetails(map[string]string{"rating": "must be between 1 and 5"})
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
	}
	if err := s.repo.Insert(ctx, review); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_reviews_user_product") {
			return nil, apperrors.New(apperrors.CodeConflict, "you have already reviewed this product")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "storing review")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": productID.String(),
		"rating":     input.Rating,
	}), "review created")

	return toDTO(review), nil
}

// ListForProduct returns reviews for one product, newest first.
func (s *Service) ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListForProduct(ctx, productID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing reviews")
	}

	page := &ListPage{Items: make([]ReviewDTO, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		page.Items = append(page.Items, *toDTO(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func toDTO(r *models.Review) *ReviewDTO {
	return &ReviewDTO{
		ID:        r.ID,
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
}
