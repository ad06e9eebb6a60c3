package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
)

// ItemDTO is one cart line with its derived line total.
type ItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	InStock   bool            `json:"in_stock"`
}

// CartDTO is the full cart view. Totals are computed from live product
// prices on every read, never stored.
type CartDTO struct {
	Items      []ItemDTO       `json:"items"`
	ItemsCount int             `json:"items_count"`
	Total      decimal.Decimal `json:"total"`
}

func emptyCartDTO() *CartDTO {
	return &CartDTO{Items: []ItemDTO{}, Total: decimal.Zero}
}

func buildCartDTO(items []models.CartItem) *CartDTO {
	dto := emptyCartDTO()
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		lineTotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		dto.Items = append(dto.Items, ItemDTO{
			ProductID: item.ProductID,
			Title:     item.Product.Title,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
			LineTotal: lineTotal,
			InStock:   item.Product.InStock,
		})
		dto.ItemsCount += item.Quantity
		dto.Total = dto.Total.Add(lineTotal)
	}
	return dto
}
