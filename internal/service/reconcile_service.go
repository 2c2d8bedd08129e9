package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/metrics"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

type EventVerifier interface {
	VerifyEvent(body []byte, header string) (domain.PaymentEvent, error)
}

// ReconcileService consumes authenticated payment-outcome events and applies
// each exactly once. Delivery is at-least-once and possibly out of order;
// the ledger's terminal status is the per-purchase latch that makes replays
// no-ops.
type ReconcileService struct {
	ledger    Ledger
	verifier  EventVerifier
	publisher TransitionPublisher
	log       *slog.Logger
}

func NewReconcileService(ledger Ledger, verifier EventVerifier, publisher TransitionPublisher, log *slog.Logger) *ReconcileService {
	return &ReconcileService{
		ledger:    ledger,
		verifier:  verifier,
		publisher: publisher,
		log:       log,
	}
}

// ProcessEvent authenticates one webhook delivery and advances the ledger.
// A returned error means the delivery was not applied and the gateway should
// retry it, except ErrBadSignature, which rejects the delivery outright.
func (s *ReconcileService) ProcessEvent(ctx context.Context, body []byte, signature string) error {
	start := time.Now()
	defer func() {
		metrics.WebhookProcessingTime.Observe(time.Since(start).Seconds())
	}()

	event, err := s.verifier.VerifyEvent(body, signature)
	if err != nil {
		s.log.Warn("rejected webhook delivery", slog.Any("error", err))
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		return err
	}

	switch event.Type {
	case domain.EventCheckoutCompleted:
		return s.applyOutcome(ctx, event, true)
	case domain.EventCheckoutExpired, domain.EventPaymentFailed:
		return s.applyOutcome(ctx, event, false)
	default:
		// forward compatibility with the gateway's event catalog
		s.log.Debug("ignoring unrecognized event type",
			slog.String("event_id", event.ID),
			slog.String("type", event.Type))
		metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		return nil
	}
}

func (s *ReconcileService) applyOutcome(ctx context.Context, event domain.PaymentEvent, success bool) error {
	id, err := uuid.Parse(event.PurchaseID)
	if err != nil {
		s.log.Warn("event metadata carries no usable purchase id",
			slog.String("event_id", event.ID),
			slog.String("purchase_id", event.PurchaseID))
		metrics.WebhookEvents.WithLabelValues(event.Type, "not_found").Inc()
		return nil
	}

	purchase, err := s.ledger.PurchaseByID(ctx, id)
	if errors.Is(err, serverrors.ErrNotFound) {
		// acked: redelivering an id the ledger never issued cannot succeed
		s.log.Warn("event references unknown purchase",
			slog.String("event_id", event.ID),
			slog.String("purchase_id", event.PurchaseID))
		metrics.WebhookEvents.WithLabelValues(event.Type, "not_found").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	if purchase.Status.Terminal() {
		s.log.Info("replayed event for terminal purchase, no-op",
			slog.String("event_id", event.ID),
			slog.String("purchase_id", event.PurchaseID),
			slog.String("status", string(purchase.Status)))
		metrics.WebhookEvents.WithLabelValues(event.Type, "replay").Inc()
		return nil
	}

	var applied bool
	if success {
		applied, err = s.ledger.CompleteAndEnroll(ctx, id)
	} else {
		applied, err = s.ledger.MarkFailed(ctx, id)
	}
	if err != nil {
		// not applied; webhook responds failure so the gateway redelivers
		return err
	}
	if !applied {
		// lost the race to a concurrent delivery, same as the terminal check
		metrics.WebhookEvents.WithLabelValues(event.Type, "replay").Inc()
		return nil
	}

	kind := domain.TransitionFailed
	if success {
		kind = domain.TransitionCompleted
		metrics.EnrollmentsApplied.Inc()
	}
	s.publishTransition(ctx, purchase, kind)

	s.log.Info("purchase reconciled",
		slog.String("purchase_id", event.PurchaseID),
		slog.String("kind", string(kind)))
	metrics.WebhookEvents.WithLabelValues(event.Type, "applied").Inc()
	return nil
}

func (s *ReconcileService) publishTransition(ctx context.Context, p domain.Purchase, kind domain.TransitionKind) {
	err := s.publisher.Publish(ctx, domain.LedgerTransition{
		PurchaseID:  p.ID.String(),
		CourseID:    p.CourseID.String(),
		LearnerID:   p.LearnerID,
		AmountCents: p.AmountCents,
		Kind:        kind,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("failed to publish ledger transition",
			slog.String("purchase_id", p.ID.String()),
			slog.Any("error", err))
	}
}
