package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

// ListFilter narrows the catalog listing.
type ListFilter struct {
	CategorySlug string
	Search       string
}

// Repository reads the product catalog.
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

// FindByID loads a single product with its category.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns a cursor page of products, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter, limit int, cursor *pagination.Cursor) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Preload("Category").
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(limit)

	if filter.CategorySlug != "" {
		query = query.
			Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", filter.CategorySlug)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(products.title) LIKE ? OR LOWER(products.description) LIKE ?", pattern, pattern)
	}
	if cursor != nil {
		query = query.Where(
			"products.created_at < ? OR (products.created_at = ? AND products.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RatingSummary aggregates review ratings for one product.
type RatingSummary struct {
	Average float64
	Count   int64
}

// Rating computes the average rating and review count for a product.
func (r *Repository) Rating(ctx context.Context, productID uuid.UUID) (*RatingSummary, error) {
	var summary struct {
		Average *float64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	out := &RatingSummary{Count: summary.Count}
	if summary.Average != nil {
		out.Average = *summary.Average
	}
	return out, nil
}
