package email

import (
	"context"

	"github.com/scribeflow/scribeflow-backend/pkg/logger"
)

type noopSender struct {
	logger *logger.Logger
}

// NewNoopSender logs messages instead of delivering them. Used in dev and
// whenever Postmark credentials are absent.
func NewNoopSender(logg *logger.Logger) Sender {
	return &noopSender{logger: logg}
}

func (s *noopSender) Send(ctx context.Context, params SendParams) error {
	if s.logger != nil {
		ctx = s.logger.WithFields(ctx, map[string]any{
			"subject": params.Subject,
			"tag":     params.Tag,
		})
		s.logger.Info(ctx, "email delivery skipped (no sender configured)")
	}
	return nil
}
