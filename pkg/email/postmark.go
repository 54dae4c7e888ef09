package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/scribeflow/scribeflow-backend/pkg/config"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
)

type postmarkSender struct {
	client *postmark.Client
	from   string
}

// NewPostmarkSender creates a Postmark-backed sender. Both the server token
// and the from address must be configured.
func NewPostmarkSender(cfg config.PostmarkConfig) (Sender, error) {
	if strings.TrimSpace(cfg.ServerToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "postmark server token is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "postmark from email is required")
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.ServerToken, ""),
		from:   cfg.FromEmail,
	}, nil
}

func (s *postmarkSender) Send(ctx context.Context, params SendParams) error {
	if strings.TrimSpace(params.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient is required")
	}
	if strings.TrimSpace(params.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		To:         params.To,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending email")
	}
	if resp.ErrorCode > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
