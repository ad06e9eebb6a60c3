package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
)

// ItemDTO is one snapshot line of an order.
type ItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"order_number"`
	Status          enums.OrderStatus `json:"status"`
	ShippingAddress string            `json:"shipping_address"`
	Notes           string            `json:"notes,omitempty"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	ShippingFee     decimal.Decimal   `json:"shipping_fee"`
	Total           decimal.Decimal   `json:"total"`
	TrackingNumber  string            `json:"tracking_number,omitempty"`
	Items           []ItemDTO         `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ListPage is a cursor page of orders.
type ListPage struct {
	Items      []OrderDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO maps a persisted order into its transport shape.
func ToDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Subtotal:        order.Subtotal,
		ShippingFee:     order.ShippingFee,
		Total:           order.Total,
		TrackingNumber:  order.TrackingNumber,
		Items:           make([]ItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
	}
	for _, item := range order.Items {
		line := ItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Subtotal(),
		}
		if item.Product != nil {
			line.Title = item.Product.Title
		}
		dto.Items = append(dto.Items, line)
	}
	return dto
}
