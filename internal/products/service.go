package products

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

// Service serves the read-only catalog surface.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// List returns a cursor page of catalog products.
func (s *Service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*ListPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filter, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing products")
	}

	page := &ListPage{Items: make([]ProductDTO, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		page.Items = append(page.Items, toDTO(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// Get returns one product with its review aggregates.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ProductDetailDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}

	rating, err := s.repo.Rating(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "aggregating rating")
	}

	return &ProductDetailDTO{
		ProductDTO:    toDTO(product),
		AverageRating: math.Round(rating.Average*10) / 10,
		ReviewsCount:  rating.Count,
	}, nil
}
