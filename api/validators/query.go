package validators

import (
	"net/http"
	"strings"

	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
)

// ParseQueryEmail extracts and validates a required email query parameter.
// The address is lowercased before use so lookups are case-insensitive.
func ParseQueryEmail(r *http.Request, key string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email parameter is required").WithDetails(map[string]any{"field": key})
	}
	if err := validate.Var(raw, "email"); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email parameter is invalid").WithDetails(map[string]any{"field": key})
	}
	return raw, nil
}

// ParseOptionalQueryEmail validates an email query parameter when present.
// An absent parameter yields an empty string without error.
func ParseOptionalQueryEmail(r *http.Request, key string) (string, error) {
	if strings.TrimSpace(r.URL.Query().Get(key)) == "" {
		return "", nil
	}
	return ParseQueryEmail(r, key)
}
