package email

import "context"

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, params SendParams) error
}

// SendParams describes a single transactional message.
type SendParams struct {
	To       string
	Subject  string
	BodyHTML string
	Tag      string
}
