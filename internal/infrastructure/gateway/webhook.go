package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

const SignatureHeader = "Stripe-Signature"

// wire shape of a gateway delivery, reduced to what reconciliation reads
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookVerifier authenticates deliveries signed the Stripe way: header
// "t=<unix>,v1=<hex hmac-sha256>" where the MAC covers "<t>.<raw body>".
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// VerifyEvent fails closed: any parse, timestamp, or MAC mismatch yields
// ErrBadSignature and the body is never interpreted.
func (v *WebhookVerifier) VerifyEvent(body []byte, header string) (domain.PaymentEvent, error) {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return domain.PaymentEvent{}, err
	}

	if age := v.now().Sub(time.Unix(timestamp, 0)); age > v.tolerance || age < -v.tolerance {
		return domain.PaymentEvent{}, fmt.Errorf("%w: timestamp outside tolerance", serverrors.ErrBadSignature)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		raw, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			verified = true
			break
		}
	}
	if !verified {
		return domain.PaymentEvent{}, fmt.Errorf("%w: no matching v1 signature", serverrors.ErrBadSignature)
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return domain.PaymentEvent{
		ID:         event.ID,
		Type:       event.Type,
		PurchaseID: event.Data.Object.Metadata["purchase_id"],
	}, nil
}

// SignPayload produces a valid signature header for a body, used by the
// webhook imitation tool and tests.
func SignPayload(secret string, at time.Time, body []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", serverrors.ErrBadSignature)
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", serverrors.ErrBadSignature)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", serverrors.ErrBadSignature)
	}
	return timestamp, signatures, nil
}
