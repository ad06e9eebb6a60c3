package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulugbekov/savdo-backend/internal/testdb"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := testdb.Open(t)
	return NewService(NewRepository(client.DB()), testdb.Logger()), client
}

func seedUser(t *testing.T, client *db.Client, phone string) *models.User {
	t.Helper()
	user := &models.User{Phone: phone, IsActive: true}
	require.NoError(t, client.DB().Create(user).Error)
	return user
}

func seedOrder(t *testing.T, client *db.Client, userID uuid.UUID, number string, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:          userID,
		OrderNumber:     number,
		Status:          status,
		ShippingAddress: "addr",
		Subtotal:        decimal.RequireFromString("10.00"),
		ShippingFee:     decimal.RequireFromString("5.00"),
		Total:           decimal.RequireFromString("15.00"),
		CreatedAt:       createdAt,
	}
	require.NoError(t, client.DB().Create(order).Error)
	return order
}

func TestListPaginatesAndFilters(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client, "+998901111111")
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		status := enums.OrderStatusPending
		if i%2 == 1 {
			status = enums.OrderStatusDelivered
		}
		seedOrder(t, client, user.ID, fmt.Sprintf("ORD-20260830-%08d", i), status, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := svc.List(ctx, user.ID, "", pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt), "newest first")

	rest, err := svc.List(ctx, user.ID, "", pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)

	delivered, err := svc.List(ctx, user.ID, "delivered", pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, delivered.Items, 2)
	for _, item := range delivered.Items {
		assert.Equal(t, enums.OrderStatusDelivered, item.Status)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client, "+998901111111")

	_, err := svc.List(context.Background(), user.ID, "teleported", pagination.Params{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestListScopesToUser(t *testing.T) {
	svc, client := newService(t)
	alice := seedUser(t, client, "+998901111111")
	bob := seedUser(t, client, "+998902222222")

	seedOrder(t, client, alice.ID, "ORD-20260830-AAAAAAAA", enums.OrderStatusPending, time.Now())
	seedOrder(t, client, bob.ID, "ORD-20260830-BBBBBBBB", enums.OrderStatusPending, time.Now())

	page, err := svc.List(context.Background(), alice.ID, "", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "ORD-20260830-AAAAAAAA", page.Items[0].OrderNumber)
}

func TestGetWithItems(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client, "+998901111111")

	category := &models.Category{Name: "Books", Slug: "books"}
	require.NoError(t, client.DB().Create(category).Error)
	product := &models.Product{
		Title:      "Book",
		Price:      decimal.RequireFromString("12.00"),
		CategoryID: category.ID,
		Attributes: []byte(`{}`),
		InStock:    true,
	}
	require.NoError(t, client.DB().Create(product).Error)

	order := seedOrder(t, client, user.ID, "ORD-20260830-CCCCCCCC", enums.OrderStatusPending, time.Now())
	require.NoError(t, client.DB().Create(&models.OrderItem{
		OrderID:   order.ID,
		ProductID: product.ID,
		Quantity:  2,
		Price:     decimal.RequireFromString("10.00"),
	}).Error)

	dto, err := svc.Get(context.Background(), user.ID, order.ID)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, "Book", dto.Items[0].Title)
	assert.True(t, dto.Items[0].Subtotal.Equal(decimal.RequireFromString("20.00")))
}

func TestGetOtherUsersOrderIsNotFound(t *testing.T) {
	svc, client := newService(t)
	alice := seedUser(t, client, "+998901111111")
	bob := seedUser(t, client, "+998902222222")

	order := seedOrder(t, client, alice.ID, "ORD-20260830-DDDDDDDD", enums.OrderStatusPending, time.Now())

	_, err := svc.Get(context.Background(), bob.ID, order.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}
