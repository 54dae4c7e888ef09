package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow-backend/api/middleware"
	"github.com/scribeflow/scribeflow-backend/api/responses"
	subscriptionsvc "github.com/scribeflow/scribeflow-backend/internal/subscriptions"
	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
)

type usageReader interface {
	CurrentUsage(ctx context.Context, userID uuid.UUID) (*models.TokenUsage, error)
}

// CustomerFinder resolves the billing customer behind an account email.
type CustomerFinder interface {
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
}

type activeSubscriptionFinder interface {
	ActiveForCustomer(ctx context.Context, customerID string) (*subscriptionsvc.SubscriptionView, error)
}

// MyUsage returns the signed-in account's token allowance for the current
// month. An account that never triggered a grant has no row yet.
func MyUsage(svc usageReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entitlements service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		uid, err := uuid.Parse(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		usage, err := svc.CurrentUsage(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"usage": usage})
	}
}

// MySubscription returns the signed-in account's active subscription, joined
// with its catalog entry. Accounts without billing history get a null body.
func MySubscription(customers CustomerFinder, subscriptions activeSubscriptionFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if customers == nil || subscriptions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		email := middleware.EmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "email context missing"))
			return
		}

		customer, err := customers.FindCustomerByEmail(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find customer"))
			return
		}
		if customer == nil {
			responses.WriteSuccess(w, map[string]any{"subscription": nil})
			return
		}

		view, err := subscriptions.ActiveForCustomer(r.Context(), customer.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"subscription": view})
	}
}
