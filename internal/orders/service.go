package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/pkg/enums"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

// Service is the read surface over a user's orders.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// List returns a cursor page of the user's orders.
func (s *Service) List(ctx context.Context, userID uuid.UUID, statusFilter string, params pagination.Params) (*ListPage, error) {
	var status *enums.OrderStatus
	if statusFilter != "" {
		parsed, err := enums.ParseOrderStatus(statusFilter)
		if err != nil {
			return nil, apperrors.New(apperrors.CodeValidation, "invalid status filter").
				WithDetails(map[string]string{"status": "unknown order status"})
		}
		status = &parsed
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, userID, status, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing orders")
	}

	page := &ListPage{Items: make([]OrderDTO, 0, len(rows))}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i := range rows {
		page.Items = append(page.Items, *ToDTO(&rows[i]))
	}
	if hasMore {
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// Get returns one of the user's orders.
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.Get(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading order")
	}
	return ToDTO(order), nil
}
