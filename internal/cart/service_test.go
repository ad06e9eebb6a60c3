package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulugbekov/savdo-backend/internal/products"
	"github.com/ulugbekov/savdo-backend/internal/testdb"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := testdb.Open(t)
	svc := NewService(client, NewRepository(client.DB()), products.NewRepository(client.DB()), testdb.Logger())
	return svc, client
}

func seedUser(t *testing.T, client *db.Client) *models.User {
	t.Helper()
	user := &models.User{Phone: "+998901234567", IsActive: true}
	require.NoError(t, client.DB().Create(user).Error)
	return user
}

func seedProduct(t *testing.T, client *db.Client, title, price string, inStock bool) *models.Product {
	t.Helper()
	category := &models.Category{Name: title, Slug: uuid.NewString()}
	require.NoError(t, client.DB().Create(category).Error)

	product := &models.Product{
		Title:      title,
		Price:      decimal.RequireFromString(price),
		CategoryID: category.ID,
		Attributes: []byte(`{}`),
		InStock:    inStock,
	}
	require.NoError(t, client.DB().Create(product).Error)
	return product
}

func TestFetchWithoutCartIsEmpty(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)

	dto, err := svc.Fetch(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, dto.Items)
	assert.Zero(t, dto.ItemsCount)
	assert.True(t, dto.Total.IsZero())
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)

	dto, err := svc.AddItem(context.Background(), user.ID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, 2, dto.ItemsCount)
	assert.True(t, dto.Total.Equal(decimal.RequireFromString("1000.00")))

	var count int64
	require.NoError(t, client.DB().Model(&models.Cart{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddItemTwiceBumpsQuantity(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)
	dto, err := svc.AddItem(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	require.Len(t, dto.Items, 1, "same product stays one line")
	assert.Equal(t, 4, dto.Items[0].Quantity)
	assert.Equal(t, 4, dto.ItemsCount)
}

func TestAddItemRejectsOutOfStock(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Old Nokia", "10.00", false)

	_, err := svc.AddItem(context.Background(), user.ID, product.ID, 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.As(err).Code())
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)

	_, err := svc.AddItem(context.Background(), user.ID, uuid.New(), 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestAddItemValidatesQuantity(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)

	_, err := svc.AddItem(context.Background(), user.ID, product.ID, 0)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestUpdateItemOverwritesQuantity(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, product.ID, 5)
	require.NoError(t, err)

	dto, err := svc.UpdateItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, dto.Items[0].Quantity)
	assert.True(t, dto.Total.Equal(decimal.RequireFromString("1000.00")))
}

func TestUpdateMissingItem(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)
	other := seedProduct(t, client, "ThinkPad", "900.00", true)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, user.ID, other.ID, 2)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestRemoveItem(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	phone := seedProduct(t, client, "Galaxy S", "500.00", true)
	laptop := seedProduct(t, client, "ThinkPad", "900.00", true)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, phone.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user.ID, laptop.ID, 1)
	require.NoError(t, err)

	dto, err := svc.RemoveItem(ctx, user.ID, phone.ID)
	require.NoError(t, err)
	require.Len(t, dto.Items, 1)
	assert.Equal(t, laptop.ID, dto.Items[0].ProductID)

	_, err = svc.RemoveItem(ctx, user.ID, phone.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestClear(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, user.ID))

	dto, err := svc.Fetch(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, dto.Items)

	// Clearing a user who never had a cart is fine.
	require.NoError(t, svc.Clear(ctx, seedUser2(t, client).ID))
}

func seedUser2(t *testing.T, client *db.Client) *models.User {
	t.Helper()
	user := &models.User{Phone: "+998907654321", IsActive: true}
	require.NoError(t, client.DB().Create(user).Error)
	return user
}

func TestTotalsTrackLiveProductPrice(t *testing.T) {
	svc, client := newService(t)
	user := seedUser(t, client)
	product := seedProduct(t, client, "Galaxy S", "500.00", true)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, client.DB().Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("price", decimal.RequireFromString("450.00")).Error)

	dto, err := svc.Fetch(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, dto.Total.Equal(decimal.RequireFromString("900.00")), "cart totals follow the catalog price")
}
