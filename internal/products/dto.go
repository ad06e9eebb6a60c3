package products

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
)

// CategoryDTO is the catalog category shape returned to clients.
type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ProductDTO is a single catalog entry.
type ProductDTO struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    *CategoryDTO    `json:"category,omitempty"`
	Attributes  json.RawMessage `json:"attributes"`
	InStock     bool            `json:"in_stock"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProductDetailDTO adds review aggregates to the catalog entry.
type ProductDetailDTO struct {
	ProductDTO
	AverageRating float64 `json:"average_rating"`
	ReviewsCount  int64   `json:"reviews_count"`
}

// ListPage is a cursor page of products.
type ListPage struct {
	Items      []ProductDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toDTO(p *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Attributes:  p.Attributes,
		InStock:     p.InStock,
		CreatedAt:   p.CreatedAt,
	}
	if p.Category != nil {
		dto.Category = &CategoryDTO{ID: p.Category.ID, Name: p.Category.Name, Slug: p.Category.Slug}
	}
	return dto
}
