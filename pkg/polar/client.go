package polar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scribeflow/scribeflow-backend/pkg/config"
	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultPageSize = 100
)

var (
	errAccessTokenRequired   = errors.New("polar access token is required")
	errWebhookSecretRequired = errors.New("polar webhook secret is required")
	errInvalidPolarEnv       = fmt.Errorf("polar environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("polar logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox-api.polar.sh",
	productionEnv: "https://api.polar.sh",
}

// Client exposes Polar primitives with centralized auth, logging, and error mapping.
type Client struct {
	httpClient    *http.Client
	accessToken   string
	environment   string
	webhookSecret string
	baseURL       string
	logger        *logger.Logger
}

// NewClient initializes the Polar wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PolarConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		accessToken:   accessToken,
		environment:   env,
		webhookSecret: webhookSecret,
		baseURL:       baseURLs[env],
		logger:        logg,
	}

	logg.Info(ctx, "polar client initialized")
	return c, nil
}

// Environment reports the normalized Polar environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the Polar webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// ListProducts fetches all non-archived products, walking pagination.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var all []Product
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("is_archived", "false")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(defaultPageSize))

		c.log(ctx, "request", "list_products", map[string]any{"page": page})

		var resp productsPage
		if err := c.do(ctx, http.MethodGet, "/v1/products?"+q.Encode(), nil, &resp); err != nil {
			c.log(ctx, "error", "list_products", map[string]any{"error": err.Error()})
			return nil, err
		}

		all = append(all, resp.Items...)
		if page >= resp.Pagination.MaxPage || len(resp.Items) == 0 {
			break
		}
	}

	c.log(ctx, "response", "list_products", map[string]any{"count": len(all)})
	return all, nil
}

// CreateCheckout opens a hosted checkout session for the given price.
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutCreateParams) (*Checkout, error) {
	if strings.TrimSpace(params.ProductPriceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price id is required")
	}

	c.log(ctx, "request", "create_checkout", map[string]any{"product_price_id": params.ProductPriceID})

	var checkout Checkout
	if err := c.do(ctx, http.MethodPost, "/v1/checkouts", params, &checkout); err != nil {
		c.log(ctx, "error", "create_checkout", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_checkout", map[string]any{
		"checkout_id": checkout.ID,
		"status":      checkout.Status,
	})
	return &checkout, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding polar request")
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building polar request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "polar request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading polar response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapStatusError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding polar response")
	}
	return nil
}

func (c *Client) mapStatusError(status int, raw []byte) error {
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 256 {
		detail = detail[:256]
	}
	msg := fmt.Sprintf("polar api status %d", status)
	err := pkgerrors.New(domainCodeForStatus(status), msg)
	if detail != "" {
		return err.WithDetails(map[string]any{"body": detail})
	}
	return err
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("polar %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("polar %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidPolarEnv
	}
}
