package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/internal/products"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
)

// Service manages the per-user cart.
type Service struct {
	client   *db.Client
	repo     *Repository
	products *products.Repository
	logg     *logger.Logger
}

func NewService(client *db.Client, repo *Repository, productsRepo *products.Repository, logg *logger.Logger) *Service {
	return &Service{
		client:   client,
		repo:     repo,
		products: productsRepo,
		logg:     logg,
	}
}

// Fetch returns the cart view. A user without a cart row simply has an empty
// cart; the row is created lazily on the first add.
func (s *Service) Fetch(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCartDTO(), nil
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading cart")
	}
	return buildCartDTO(cart.Items), nil
}

// AddItem puts a product into the cart, bumping the quantity when the line
// already exists.
func (s *Service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid quantity").
			WithDetails(map[string]string{"quantity": "must be at least 1"})
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading product")
	}
	if !product.InStock {
		return nil, apperrors.New(apperrors.CodeConflict, "product is out of stock")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreateForUser(ctx, userID)
		if err != nil {
			return err
		}
		return repo.UpsertItem(ctx, cart.ID, productID, quantity)
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "adding cart item")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": productID.String(),
		"quantity":   quantity,
	}), "cart item added")

	return s.Fetch(ctx, userID)
}

// UpdateItem overwrites the quantity of an existing line.
func (s *Service) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid quantity").
			WithDetails(map[string]string{"quantity": "must be at least 1"})
	}

	cart, err := s.requireCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.SetItemQuantity(ctx, cart.ID, productID, quantity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "updating cart item")
	}
	if rows == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "item not in cart")
	}

	return s.Fetch(ctx, userID)
}

// RemoveItem drops one line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*CartDTO, error) {
	cart, err := s.requireCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.DeleteItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "removing cart item")
	}
	if rows == 0 {
		return nil, apperrors.New(apperrors.CodeNotFound, "item not in cart")
	}

	return s.Fetch(ctx, userID)
}

// Clear empties the cart. Clearing an absent cart is a no-op.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "loading cart")
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "clearing cart")
	}
	return nil
}

func (s *Service) requireCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "item not in cart")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading cart")
	}
	return cart, nil
}
