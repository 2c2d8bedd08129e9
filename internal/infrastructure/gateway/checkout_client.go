package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

// CheckoutClient opens hosted checkout sessions on a Stripe-style provider.
// The session carries the purchase id as opaque metadata; everything else
// about the session lives on the provider's side.
type CheckoutClient struct {
	httpClient *http.Client
	log        *slog.Logger
	baseURL    string
	secretKey  string
	currency   string
}

func NewCheckoutClient(cfg config.Gateway, log *slog.Logger) *CheckoutClient {
	return &CheckoutClient{
		// bounded timeout: a hung provider surfaces as ErrGateway, the
		// pending purchase stays reconcilable
		httpClient: &http.Client{Timeout: cfg.SessionTimeout},
		log:        log,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		currency:   strings.ToLower(cfg.Currency),
	}
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Err *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession returns the redirect URL of the hosted payment page.
func (c *CheckoutClient) CreateSession(ctx context.Context, req domain.CheckoutSession) (string, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("line_items[0][price_data][currency]", c.currency)
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountMinorUnits, 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[purchase_id]", req.PurchaseID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", serverrors.ErrGateway, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Error("checkout session request failed", slog.Any("error", err))
		return "", fmt.Errorf("%w: %w", serverrors.ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", serverrors.ErrGateway, err)
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", serverrors.ErrGateway, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if session.Err != nil && session.Err.Message != "" {
			msg = session.Err.Message
		}
		c.log.Error("checkout session rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg))
		return "", fmt.Errorf("%w: %s", serverrors.ErrGateway, msg)
	}
	if session.URL == "" {
		return "", fmt.Errorf("%w: session response without url", serverrors.ErrGateway)
	}

	return session.URL, nil
}
