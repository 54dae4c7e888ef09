package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/scribeflow/scribeflow-backend/api/responses"
	"github.com/scribeflow/scribeflow-backend/api/validators"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
	"github.com/scribeflow/scribeflow-backend/pkg/polar"
)

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, params polar.CheckoutCreateParams) (*polar.Checkout, error)
}

// Checkout creates a hosted checkout session for the requested price and
// redirects the browser to it.
func Checkout(client checkoutCreator, successURL string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing client unavailable"))
			return
		}

		priceID := strings.TrimSpace(r.URL.Query().Get("price_id"))
		if priceID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price_id query parameter required"))
			return
		}

		email, err := validators.ParseOptionalQueryEmail(r, "email")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := polar.CheckoutCreateParams{
			ProductPriceID: priceID,
			SuccessURL:     successURL,
			CustomerEmail:  email,
		}

		checkout, err := client.CreateCheckout(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if checkout.URL == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "checkout session has no url"))
			return
		}

		http.Redirect(w, r, checkout.URL, http.StatusFound)
	}
}
