package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulugbekov/savdo-backend/internal/testdb"
	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/security"
)

func newService(t *testing.T) (*Service, *db.Client) {
	t.Helper()

	client := testdb.Open(t)
	logg := testdb.Logger()

	cfg := &config.Config{}
	cfg.OTP.TTL = 5 * time.Minute
	cfg.Password = config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}

	svc := NewService(
		client,
		NewRepository(client.DB()),
		users.NewRepository(client.DB()),
		outbox.NewService(outbox.NewRepository(client.DB()), logg),
		cfg,
		logg,
	)
	return svc, client
}

func seedCode(t *testing.T, client *db.Client, phone, code string, purpose enums.CodePurpose, expiresAt time.Time) *models.VerificationCode {
	t.Helper()
	row := &models.VerificationCode{
		Phone:     phone,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
	}
	require.NoError(t, client.DB().Create(row).Error)
	return row
}

func TestIssueRejectsMalformedPhone(t *testing.T) {
	svc, _ := newService(t)

	for _, phone := range []string{"", "998901111111", "+123", "+9989011111112345678", "+99890abc1111"} {
		err := svc.Issue(context.Background(), phone, enums.CodePurposeLogin)
		require.Error(t, err, "phone %q", phone)
		assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
	}
}

func TestIssueInvalidatesPriorCodes(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	phone := "+998901111111"

	seedCode(t, client, phone, "111111", enums.CodePurposeLogin, time.Now().Add(5*time.Minute))

	require.NoError(t, svc.Issue(ctx, phone, enums.CodePurposeLogin))

	var rows []models.VerificationCode
	require.NoError(t, client.DB().Where("phone = ?", phone).Find(&rows).Error)
	require.Len(t, rows, 1, "only the newest code may be live")
	assert.NotEqual(t, "111111", rows[0].Code)
	assert.False(t, rows[0].Used)
	assert.True(t, rows[0].ExpiresAt.After(time.Now()))

	var events []models.OutboxEvent
	require.NoError(t, client.DB().Where("event_type = ?", enums.EventVerificationCodeIssued).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, rows[0].ID, events[0].AggregateID)
	assert.Nil(t, events[0].PublishedAt)
}

func TestIssueKeepsOtherPurposeCodes(t *testing.T) {
	svc, client := newService(t)
	phone := "+998901111111"

	seedCode(t, client, phone, "222222", enums.CodePurposePasswordReset, time.Now().Add(5*time.Minute))

	require.NoError(t, svc.Issue(context.Background(), phone, enums.CodePurposeLogin))

	var count int64
	require.NoError(t, client.DB().Model(&models.VerificationCode{}).
		Where("phone = ? AND purpose = ?", phone, enums.CodePurposePasswordReset).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVerifyConsumesCodeAndCreatesUser(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	phone := "+998901234567"

	seedCode(t, client, phone, "654321", enums.CodePurposeLogin, time.Now().Add(5*time.Minute))

	user, err := svc.Verify(ctx, phone, "654321")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, phone, user.Phone)
	assert.True(t, user.IsActive)

	var stored models.User
	require.NoError(t, client.DB().Where("phone = ?", phone).First(&stored).Error)
	assert.Equal(t, user.ID, stored.ID)
	assert.NotNil(t, stored.LastLoginAt)

	// Second attempt with the same code must fail: it was consumed.
	_, err = svc.Verify(ctx, phone, "654321")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())
}

func TestVerifyReturnsExistingUser(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	phone := "+998905555555"

	existing := &models.User{Phone: phone, Name: "Aziza", IsActive: true}
	require.NoError(t, client.DB().Create(existing).Error)
	seedCode(t, client, phone, "111222", enums.CodePurposeLogin, time.Now().Add(time.Minute))

	user, err := svc.Verify(ctx, phone, "111222")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, "Aziza", user.Name)

	var count int64
	require.NoError(t, client.DB().Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	svc, client := newService(t)
	phone := "+998907777777"

	seedCode(t, client, phone, "999000", enums.CodePurposeLogin, time.Now().Add(-time.Second))

	_, err := svc.Verify(context.Background(), phone, "999000")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())

	// A failed verify must not create an account.
	var count int64
	require.NoError(t, client.DB().Model(&models.User{}).Where("phone = ?", phone).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	svc, client := newService(t)
	phone := "+998908888888"

	seedCode(t, client, phone, "123456", enums.CodePurposeLogin, time.Now().Add(time.Minute))

	_, err := svc.Verify(context.Background(), phone, "000000")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())

	// The stored code survives a wrong guess.
	var row models.VerificationCode
	require.NoError(t, client.DB().Where("phone = ?", phone).First(&row).Error)
	assert.False(t, row.Used)
}

func TestRequestPasswordResetUnknownPhoneIsSilent(t *testing.T) {
	svc, client := newService(t)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "+998900000001"))

	var count int64
	require.NoError(t, client.DB().Model(&models.VerificationCode{}).Count(&count).Error)
	assert.Zero(t, count, "no code may be issued for unknown phones")
}

func TestResetPasswordFlow(t *testing.T) {
	svc, client := newService(t)
	ctx := context.Background()
	phone := "+998903333333"

	user := &models.User{Phone: phone, IsActive: true}
	require.NoError(t, client.DB().Create(user).Error)

	require.NoError(t, svc.RequestPasswordReset(ctx, phone))

	var row models.VerificationCode
	require.NoError(t, client.DB().
		Where("phone = ? AND purpose = ?", phone, enums.CodePurposePasswordReset).
		First(&row).Error)

	var events int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPasswordResetRequested).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)

	require.NoError(t, svc.ResetPassword(ctx, phone, row.Code, "s3cure-pass"))

	var stored models.User
	require.NoError(t, client.DB().First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.PasswordHash)
	ok, err := security.VerifyPassword("s3cure-pass", *stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	// The reset code is single-use.
	err = svc.ResetPassword(ctx, phone, row.Code, "another-pass")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	svc, _ := newService(t)

	err := svc.ResetPassword(context.Background(), "+998903333333", "123456", "short")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}
