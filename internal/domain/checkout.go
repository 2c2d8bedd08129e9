package domain

// CheckoutSession describes the hosted payment session opened for one
// pending purchase. Ephemeral: nothing of it is persisted locally beyond
// the purchase id it carries as metadata.
type CheckoutSession struct {
	Description      string
	AmountMinorUnits int64
	SuccessURL       string
	CancelURL        string
	PurchaseID       string
}

// Gateway event types the reconciler recognizes. Anything else is
// acknowledged as a no-op, so the gateway's catalog can grow freely.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// PaymentEvent is an authenticated payment-outcome delivery, reduced to
// what reconciliation needs.
type PaymentEvent struct {
	ID         string
	Type       string
	PurchaseID string
}
