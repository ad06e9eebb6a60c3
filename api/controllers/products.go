package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ulugbekov/savdo-backend/api/responses"
	"github.com/ulugbekov/savdo-backend/api/validators"
	"github.com/ulugbekov/savdo-backend/internal/products"
	pkgerrors "github.com/ulugbekov/savdo-backend/pkg/errors"
	"github.com/ulugbekov/savdo-backend/pkg/logger"
)

// ProductList serves the public catalog with optional category and search
// filters plus cursor pagination.
func ProductList(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := products.ListFilter{
			CategorySlug: strings.TrimSpace(r.URL.Query().Get("category")),
			Search:       strings.TrimSpace(r.URL.Query().Get("search")),
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// ProductDetail serves a single product with its rating summary.
func ProductDetail(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "products service unavailable"))
			return
		}

		productID, err := validators.ParsePathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}
