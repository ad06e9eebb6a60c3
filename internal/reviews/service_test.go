package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulugbekov/savdo-backend/internal/products"
	"github.com/ulugbekov/savdo-backend/internal/testdb"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/pagination"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()
	client := testdb.Open(t)
	svc := NewService(NewRepository(client.DB()), products.NewRepository(client.DB()), testdb.Logger())
	return svc, client
}

func seedUserAndProduct(t *testing.T, client *db.Client) (*models.User, *models.Product) {
	t.Helper()
	user := &models.User{Phone: "+998901234567", IsActive: true}
	require.NoError(t, client.DB().Create(user).Error)

	category := &models.Category{Name: "Phones", Slug: "phones"}
	require.NoError(t, client.DB().Create(category).Error)

	product := &models.Product{
		Title:      "Galaxy S",
		Price:      decimal.RequireFromString("500.00"),
		CategoryID: category.ID,
		Attributes: []byte(`{}`),
		InStock:    true,
	}
	require.NoError(t, client.DB().Create(product).Error)
	return user, product
}

func TestCreateReview(t *testing.T) {
	svc, client := newService(t)
	user, product := seedUserAndProduct(t, client)

	dto, err := svc.Create(context.Background(), user.ID, product.ID, CreateInput{Rating: 5, Comment: "  great phone  "})
	require.NoError(t, err)
	assert.Equal(t, 5, dto.Rating)
	assert.Equal(t, "great phone", dto.Comment)
	assert.Equal(t, product.ID, dto.ProductID)
}

func TestCreateSecondReviewConflicts(t *testing.T) {
	svc, client := newService(t)
	user, product := seedUserAndProduct(t, client)
	ctx := context.Background()

	_, err := svc.Create(ctx, user.ID, product.ID, CreateInput{Rating: 4})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user.ID, product.ID, CreateInput{Rating: 5})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.As(err).Code())
}

func TestCreateValidatesRating(t *testing.T) {
	svc, client := newService(t)
	user, product := seedUserAndProduct(t, client)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), user.ID, product.ID, CreateInput{Rating: rating})
		require.Error(t, err, "rating %d", rating)
		assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
	}
}

func TestCreateUnknownProduct(t *testing.T) {
	svc, client := newService(t)
	user, _ := seedUserAndProduct(t, client)

	_, err := svc.Create(context.Background(), user.ID, uuid.New(), CreateInput{Rating: 3})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())
}

func TestListForProductPaginates(t *testing.T) {
	svc, client := newService(t)
	_, product := seedUserAndProduct(t, client)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		user := &models.User{Phone: "+99890200000" + string(rune('0'+i)), IsActive: true}
		require.NoError(t, client.DB().Create(user).Error)
		require.NoError(t, client.DB().Create(&models.Review{
			UserID:    user.ID,
			ProductID: product.ID,
			Rating:    4,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	page, err := svc.ListForProduct(context.Background(), product.ID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.ListForProduct(context.Background(), product.ID, pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)
}
