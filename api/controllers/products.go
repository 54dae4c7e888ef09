package controllers

import (
	"context"
	"net/http"

	"github.com/scribeflow/scribeflow-backend/api/responses"
	"github.com/scribeflow/scribeflow-backend/internal/catalog"
	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
)

type catalogService interface {
	ListActive(ctx context.Context) ([]models.Product, error)
	Sync(ctx context.Context) (*catalog.SyncResult, error)
}

// ListProducts refreshes the catalog mirror and serves it, cheapest plan
// first. A provider outage degrades to the last mirrored state instead of
// failing the storefront.
func ListProducts(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		if _, err := svc.Sync(r.Context()); err != nil && logg != nil {
			logg.Error(r.Context(), "catalog refresh failed, serving mirror", err)
		}

		products, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"products": products})
	}
}

// SyncProducts refreshes the stored catalog from the billing provider.
func SyncProducts(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		result, err := svc.Sync(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
