package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
)

// Repository persists carts and their items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByUser loads the user's cart with items and product snapshots.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByUserForUpdate locks the cart row for the duration of the caller's
// transaction so concurrent checkouts serialize per user. The lock clause is
// skipped on sqlite, which has no row locks; its writer lock covers tests.
func (r *Repository) FindByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var cart models.Cart
	if err := query.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreateForUser returns the user's cart, creating it lazily. The unique
// index on user_id arbitrates concurrent creates.
func (r *Repository) GetOrCreateForUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	fresh := models.Cart{UserID: userID}
	if createErr := r.db.WithContext(ctx).Create(&fresh).Error; createErr != nil {
		if dbpkg.IsUniqueViolation(createErr, "ux_carts_user") {
			if retryErr := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; retryErr != nil {
				return nil, retryErr
			}
			return &cart, nil
		}
		return nil, createErr
	}
	return &fresh, nil
}

// ListItems loads the cart's items with product snapshots.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// UpsertItem inserts the line or bumps its quantity when the product is
// already in the cart, in a single statement against the composite unique
// index.
func (r *Repository) UpsertItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	item := models.CartItem{
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity": gorm.Expr("cart_items.quantity + ?", quantity),
			}),
		}).
		Create(&item).Error
}

// SetItemQuantity overwrites the quantity of an existing line. Returns the
// affected row count so callers can distinguish a missing line.
func (r *Repository) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, quantity int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Update("quantity", quantity)
	return result.RowsAffected, result.Error
}

// DeleteItem removes one line from the cart.
func (r *Repository) DeleteItem(ctx context.Context, cartID, productID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// ClearItems deletes every line in the cart.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}
