package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ulugbekov/savdo-backend/pkg/enums"
)

// Order is an immutable price snapshot produced by checkout. Total always
// equals subtotal plus shipping fee, fixed at creation time.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index:ix_orders_user"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	Notes           string            `gorm:"column:notes;not null;default:''"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(10,2);not null"`
	ShippingFee     decimal.Decimal   `gorm:"column:shipping_fee;type:numeric(10,2);not null"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(10,2);not null"`
	TrackingNumber  string            `gorm:"column:tracking_number;not null;default:''"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots one cart line at checkout; Price is copied from the
// product at that instant and never re-read from the catalog.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:ix_order_items_order"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Subtotal returns the snapshot line total.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
