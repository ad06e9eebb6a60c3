package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"gorm.io/gorm"

	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/pkg/config"
	"github.com/ulugbekov/savdo-backend/pkg/db"
	"github.com/ulugbekov/savdo-backend/pkg/db/models"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	apperrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
	"github.com/ulugbekov/savdo-backend/pkg/outbox"
	"github.com/ulugbekov/savdo-backend/pkg/outbox/payloads"
	"github.com/ulugbekov/savdo-backend/pkg/security"
)

// phonePattern accepts E.164-style numbers: a leading plus and 9 to 15 digits.
var phonePattern = regexp.MustCompile(`^\+[0-9]{9,15}$`)

// Service issues and consumes one-time verification codes.
type Service struct {
	client  *db.Client
	codes   *Repository
	users   *users.Repository
	events  outbox.Publisher
	logg    *logger.Logger
	ttl     time.Duration
	passCfg config.PasswordConfig
	now     func() time.Time
}

func NewService(
	client *db.Client,
	codes *Repository,
	usersRepo *users.Repository,
	events outbox.Publisher,
	cfg *config.Config,
	logg *logger.Logger,
) *Service {
	return &Service{
		client:  client,
		codes:   codes,
		users:   usersRepo,
		events:  events,
		logg:    logg,
		ttl:     cfg.OTP.TTL,
		passCfg: cfg.Password,
		now:     time.Now,
	}
}

// ValidatePhone reports whether the phone matches the accepted format.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Issue generates a fresh code for the phone and queues the SMS. Any prior
// code for the same (phone, purpose) is deleted in the same transaction, so
// only the newest code is ever live. Delivery is asynchronous; issuance is
// complete once the row and its outbox event commit.
func (s *Service) Issue(ctx context.Context, phone string, purpose enums.CodePurpose) error {
	if !ValidatePhone(phone) {
		return apperrors.New(apperrors.CodeValidation, "invalid phone number").
			WithDetails(map[string]string{"phone": "must match +<digits>, 9-15 digits"})
	}
	if !purpose.IsValid() {
		return apperrors.New(apperrors.CodeValidation, "invalid code purpose")
	}

	code, err := generateCode()
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "generating verification code")
	}

	row := &models.VerificationCode{
		Phone:     phone,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl),
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		codes := s.codes.WithTx(tx)
		if err := codes.DeleteForPhone(ctx, phone, purpose); err != nil {
			return fmt.Errorf("invalidating prior codes: %w", err)
		}
		if err := codes.Insert(ctx, row); err != nil {
			return fmt.Errorf("storing verification code: %w", err)
		}
		return s.emitIssued(ctx, tx, row)
	})
	if err != nil {
		if typed := apperrors.As(err); typed != nil {
			return typed
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "issuing verification code")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"phone": phone, "purpose": purpose})
	s.logg.Info(logCtx, "verification code issued")
	return nil
}

// RequestPasswordReset issues a reset code when the phone belongs to a known
// user. Unknown phones are a silent no-op so the endpoint does not leak which
// numbers are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, phone string) error {
	if !ValidatePhone(phone) {
		return apperrors.New(apperrors.CodeValidation, "invalid phone number").
			WithDetails(map[string]string{"phone": "must match +<digits>, 9-15 digits"})
	}

	if _, err := s.users.FindByPhone(ctx, phone); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Info(s.logg.WithField(ctx, "phone", phone), "password reset requested for unknown phone")
			return nil
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "looking up user")
	}

	return s.Issue(ctx, phone, enums.CodePurposePasswordReset)
}

// Verify consumes a login code and returns the authenticated user, creating
// the account on first login. The consume and the user upsert share one
// transaction, so a code is never burned without an identity coming back.
func (s *Service) Verify(ctx context.Context, phone, code string) (*models.User, error) {
	var user *models.User
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.codes.WithTx(tx).Consume(ctx, phone, code, enums.CodePurposeLogin, s.now())
		if err != nil {
			return fmt.Errorf("consuming code: %w", err)
		}
		if rows != 1 {
			return apperrors.New(apperrors.CodeUnauthorized, "invalid or expired verification code")
		}

		usersTx := s.users.WithTx(tx)
		user, err = usersTx.CreateIfAbsent(ctx, phone, "")
		if err != nil {
			return fmt.Errorf("upserting user: %w", err)
		}
		return usersTx.UpdateLastLogin(ctx, user.ID, s.now())
	})
	if err != nil {
		if typed := apperrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "verifying code")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "phone verified")
	return user, nil
}

// ResetPassword consumes a reset code and writes a new credential hash.
func (s *Service) ResetPassword(ctx context.Context, phone, code, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.New(apperrors.CodeValidation, "password too short").
			WithDetails(map[string]string{"password": "must be at least 8 characters"})
	}

	hash, err := security.HashPassword(newPassword, s.passCfg)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "hashing password")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.codes.WithTx(tx).Consume(ctx, phone, code, enums.CodePurposePasswordReset, s.now())
		if err != nil {
			return fmt.Errorf("consuming code: %w", err)
		}
		if rows != 1 {
			return apperrors.New(apperrors.CodeUnauthorized, "invalid or expired verification code")
		}

		usersTx := s.users.WithTx(tx)
		user, err := usersTx.FindByPhone(ctx, phone)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeUnauthorized, "invalid or expired verification code")
			}
			return fmt.Errorf("looking up user: %w", err)
		}
		return usersTx.UpdatePasswordHash(ctx, user.ID, hash)
	})
	if err != nil {
		if typed := apperrors.As(err); typed != nil {
			return typed
		}
		return apperrors.Wrap(apperrors.CodeInternal, err, "resetting password")
	}

	s.logg.Info(s.logg.WithField(ctx, "phone", phone), "password reset completed")
	return nil
}

func (s *Service) emitIssued(ctx context.Context, tx *gorm.DB, row *models.VerificationCode) error {
	eventType := enums.EventVerificationCodeIssued
	var data any = payloads.VerificationCodeIssuedEvent{
		CodeID: row.ID,
		Phone:  row.Phone,
		Code:   row.Code,
	}
	if row.Purpose == enums.CodePurposePasswordReset {
		eventType = enums.EventPasswordResetRequested
		data = payloads.PasswordResetRequestedEvent{
			CodeID: row.ID,
			Phone:  row.Phone,
			Code:   row.Code,
		}
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateVerificationCode,
		AggregateID:   row.ID,
		Data:          data,
		Version:       1,
	})
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}
