package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/scribeflow/scribeflow-backend/api/responses"
	polarwebhook "github.com/scribeflow/scribeflow-backend/internal/webhooks/polar"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
	"github.com/scribeflow/scribeflow-backend/pkg/metrics"
)

const maxWebhookBody = 1 << 20

type PolarWebhookService interface {
	HandleEvent(ctx context.Context, event *polarwebhook.WebhookEvent) error
}

type polarWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type polarClient interface {
	SigningSecret() string
}

// PolarWebhook handles Polar subscription lifecycle events. Deliveries are
// authenticated with the standard webhooks signature scheme and deduplicated
// by delivery id before processing.
func PolarWebhook(svc PolarWebhookService, client polarClient, guard polarWebhookGuard, webhookMetrics *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "polar client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		deliveryID := r.Header.Get("webhook-id")
		if err := polarwebhook.VerifySignature(
			client.SigningSecret(),
			deliveryID,
			r.Header.Get("webhook-timestamp"),
			r.Header.Get("webhook-signature"),
			payload,
			time.Now(),
		); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event polarwebhook.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			webhookMetrics.IncDuplicate(event.Type)
			responses.WriteSuccess(w, nil)
			return
		}

		start := time.Now()
		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Delete(ctx, deliveryID)
			webhookMetrics.IncFailed(event.Type)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		webhookMetrics.ObserveDuration(event.Type, time.Since(start))
		webhookMetrics.IncProcessed(event.Type)

		if logg != nil {
			logg.Info(logg.WithField(ctx, "delivery_id", deliveryID), "polar event processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
