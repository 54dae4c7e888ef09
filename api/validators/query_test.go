package validators

import (
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
)

func TestParseQueryEmail(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/subscriptions?email=Writer@Example.COM", nil)
	email, err := ParseQueryEmail(r, "email")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if email != "writer@example.com" {
		t.Fatalf("expected lowercased email, got %q", email)
	}
}

func TestParseQueryEmailMissing(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/subscriptions", nil)
	_, err := ParseQueryEmail(r, "email")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryEmailInvalid(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/subscriptions?email=not-an-email", nil)
	_, err := ParseQueryEmail(r, "email")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
