package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ulugbekov/savdo-backend/api/middleware"
	"github.com/ulugbekov/savdo-backend/api/responses"
	"github.com/ulugbekov/savdo-backend/api/validators"
	"github.com/ulugbekov/savdo-backend/internal/users"
	pkgerrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
)

// Pointer fields distinguish "leave unchanged" from "set to empty".
type profileUpdateRequest struct {
	Name                   *string `json:"name" validate:"omitempty,max=255"`
	Email                  *string `json:"email" validate:"omitempty,email,max=255"`
	DefaultShippingAddress *string `json:"default_shipping_address" validate:"omitempty,max=500"`
}

func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity")
	}
	return id, nil
}

// ProfileFetch returns the authenticated user's profile.
func ProfileFetch(repo *users.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users repository unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := repo.FindByID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, users.FromModel(user))
	}
}

// ProfileUpdate applies a partial update to the authenticated user's profile.
func ProfileUpdate(repo *users.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users repository unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body profileUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := map[string]any{}
		if body.Name != nil {
			updates["name"] = *body.Name
		}
		if body.Email != nil {
			updates["email"] = *body.Email
		}
		if body.DefaultShippingAddress != nil {
			updates["default_shipping_address"] = *body.DefaultShippingAddress
		}
		if len(updates) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}

		if err := repo.UpdateProfile(r.Context(), userID, updates); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := repo.FindByID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, users.FromModel(user))
	}
}
