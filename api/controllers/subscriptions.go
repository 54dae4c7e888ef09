package controllers

import (
	"context"
	"net/http"

	"github.com/scribeflow/scribeflow-backend/api/responses"
	"github.com/scribeflow/scribeflow-backend/api/validators"
	subscriptionsvc "github.com/scribeflow/scribeflow-backend/internal/subscriptions"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
)

type subscriptionQueryService interface {
	ListByEmail(ctx context.Context, email string) ([]subscriptionsvc.SubscriptionView, error)
}

// ListSubscriptions answers the storefront's subscription lookup by email.
// An address with no billing history yields an empty list.
func ListSubscriptions(svc subscriptionQueryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		email, err := validators.ParseQueryEmail(r, "email")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListByEmail(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"subscriptions": views})
	}
}
