package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/internal/cart"
	"github.com/ulugbekov/savdo-backend/internal/orders"
	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/outbox/payloads"
)

// maxNumberAttempts bounds order number regeneration on unique collisions.
const maxNumberAttempts = 5

// Input is what the client supplies at checkout. An empty shipping address
// falls back to the profile default.
type Input struct {
	ShippingAddress string `json:"shipping_address" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=2000"`
}

// Service converts a cart into an immutable order in one transaction.
type Service struct {
	client      *db.Client
	carts       *cart.Repository
	orders      *orders.Repository
	users       *users.Repository
	events      outbox.Publisher
	logg        *logger.Logger
	shippingFee decimal.Decimal
	now         func() time.Time
	newNumber   func(time.Time) string
}

func NewService(
	client *db.Client,
	carts *cart.Repository,
	ordersRepo *orders.Repository,
	usersRepo *users.Repository,
	events outbox.Publisher,
	cfg *config.Config,
	logg *logger.Logger,
) (*Service, error) {
	fee, err := decimal.NewFromString(cfg.Order.ShippingFee)
	if err != nil {
		return nil, fmt.Errorf("parsing shipping fee %q: %w", cfg.Order.ShippingFee, err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("shipping fee cannot be negative")
	}

	return &Service{
		client:      client,
		carts:       carts,
		orders:      ordersRepo,
		users:       usersRepo,
		events:      events,
		logg:        logg,
		shippingFee: fee,
		now:         time.Now,
		newNumber:   newOrderNumber,
	}, nil
}

// Execute turns the user's cart into an order. Everything happens in one
// transaction: the cart row is locked, the order and its price snapshots are
// inserted, the cart is emptied, and the notification event is queued. An
// empty cart aborts with a conflict and leaves no writes behind.
func (s *Service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*orders.OrderDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading user")
	}

	address := strings.TrimSpace(input.ShippingAddress)
	if address == "" {
		address = strings.TrimSpace(user.DefaultShippingAddress)
	}
	if address == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "shipping address is required").
			WithDetails(map[string]string{"shipping_address": "provide an address or set a profile default"})
	}

	var order *models.Order
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)

		cartRow, err := carts.FindByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeConflict, "cart is empty")
			}
			return fmt.Errorf("locking cart: %w", err)
		}

		items, err := carts.ListItems(ctx, cartRow.ID)
		if err != nil {
			return fmt.Errorf("loading cart items: %w", err)
		}
		if len(items) == 0 {
			return apperrors.New(apperrors.CodeConflict, "cart is empty")
		}

		subtotal := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			if item.Product == nil {
				return fmt.Errorf("cart item %s references a missing product", item.ID)
			}
			subtotal = subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			orderItems = append(orderItems, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Product.Price,
			})
		}

		order = &models.Order{
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			ShippingAddress: address,
			Notes:           strings.TrimSpace(input.Notes),
			Subtotal:        subtotal,
			ShippingFee:     s.shippingFee,
			Total:           subtotal.Add(s.shippingFee),
			Items:           orderItems,
		}
		if err := s.insertWithNumberRetry(ctx, tx, order); err != nil {
			return err
		}

		if err := carts.ClearItems(ctx, cartRow.ID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Phone:       user.Phone,
			},
			Version: 1,
		})
	})
	if err != nil {
		if typed := apperrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "executing checkout")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Total.String(),
	}), "order created")

	return orders.ToDTO(order), nil
}

// insertWithNumberRetry inserts the order, regenerating the order number when
// the unique index reports a collision. Each attempt runs under a savepoint
// so a failed insert does not poison the enclosing transaction. The number is
// random, so a handful of attempts is plenty; exhausting them means something
// else is wrong.
func (s *Service) insertWithNumberRetry(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		order.OrderNumber = s.newNumber(s.now())
		err := tx.Transaction(func(inner *gorm.DB) error {
			return s.orders.WithTx(inner).Insert(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "ux_orders_order_number") {
			return fmt.Errorf("inserting order: %w", err)
		}
	}
	return fmt.Errorf("could not allocate a unique order number after %d attempts", maxNumberAttempts)
}
