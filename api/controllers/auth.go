package controllers

import (
	"net/http"

	"github.com/ulugbekov/savdo-backend/api/middleware"
	"github.com/ulugbekov/savdo-backend/api/responses"
	"github.com/ulugbekov/savdo-backend/api/validators"
	"github.com/ulugbekov/savdo-backend/internal/auth"
	"github.com/ulugbekov/savdo-backend/internal/users"
	"github.com/ulugbekov/savdo-backend/internal/verification"
	"github.com/ulugbekov/savdo-backend/pkg/enums"
	pkgerrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
)

type phoneRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type verifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,len=6"`
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type resetPasswordRequest struct {
	Phone    string `json:"phone" validate:"required,e164"`
	Code     string `json:"code" validate:"required,len=6"`
	Password string `json:"password" validate:"required,min=8"`
}

type verifyResponse struct {
	User   *users.UserDTO  `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// AuthAuthorize sends a login code to the supplied phone. The response is the
// same whether or not the number maps to an account.
func AuthAuthorize(svc *verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		var body phoneRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Issue(r.Context(), body.Phone, enums.CodePurposeLogin); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "verification code sent"})
	}
}

// AuthVerify consumes a login code, provisioning the account on first use,
// and returns a fresh token pair.
func AuthVerify(verifySvc *verification.Service, authSvc *auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verifySvc == nil || authSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body verifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := verifySvc.Verify(r.Context(), body.Phone, body.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tokens, err := authSvc.IssueFor(r.Context(), user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, verifyResponse{User: users.FromModel(user), Tokens: tokens})
	}
}

// AuthLogin authenticates with phone and password.
func AuthLogin(svc *auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tokens, err := svc.Login(r.Context(), body.Phone, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tokens)
	}
}

// AuthRefresh exchanges a refresh token plus the stale access token for a new
// pair. The old pair stops working once the exchange succeeds.
func AuthRefresh(svc *auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tokens, err := svc.Refresh(r.Context(), body.AccessToken, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tokens)
	}
}

// AuthForgotPassword sends a password reset code. Unknown numbers get the
// same response as known ones.
func AuthForgotPassword(svc *verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		var body phoneRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RequestPasswordReset(r.Context(), body.Phone); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "if the number is registered, a reset code was sent"})
	}
}

// AuthResetPassword consumes a reset code and installs the new password.
func AuthResetPassword(svc *verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		var body resetPasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ResetPassword(r.Context(), body.Phone, body.Code, body.Password); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "password updated"})
	}
}

// AuthLogout revokes the session behind the presented access token.
func AuthLogout(svc *auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
			return
		}

		if err := svc.Revoke(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"message": "logged out"})
	}
}
