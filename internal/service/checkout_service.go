package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/metrics"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

type Ledger interface {
	CreatePurchase(ctx context.Context, p domain.Purchase) error
	PurchaseByID(ctx context.Context, id uuid.UUID) (domain.Purchase, error)
	CompleteAndEnroll(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

type Catalog interface {
	CourseByID(ctx context.Context, id uuid.UUID) (domain.Course, error)
	LearnerByID(ctx context.Context, id string) (domain.Learner, error)
}

type CheckoutGateway interface {
	CreateSession(ctx context.Context, session domain.CheckoutSession) (string, error)
}

// TransitionPublisher feeds the audit pipeline. Best effort on the request
// path: Postgres is authoritative before anything is published.
type TransitionPublisher interface {
	Publish(ctx context.Context, t domain.LedgerTransition) error
}

// CheckoutService turns a purchase request into a pending ledger entry plus
// a redirectable payment session. Pure reservation: no enrollment and no
// completion happen here.
type CheckoutService struct {
	ledger    Ledger
	catalog   Catalog
	gateway   CheckoutGateway
	publisher TransitionPublisher
	clientURL string
	log       *slog.Logger
}

func NewCheckoutService(ledger Ledger, catalog Catalog, gw CheckoutGateway, publisher TransitionPublisher, clientURL string, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		ledger:    ledger,
		catalog:   catalog,
		gateway:   gw,
		publisher: publisher,
		clientURL: clientURL,
		log:       log,
	}
}

// InitiateCheckout reserves a pending purchase and returns the hosted
// checkout URL. The learner id comes from the auth collaborator, never from
// the request body. A gateway failure leaves the pending row in place: the
// reservation stays reconcilable by a later event or manual sweep.
func (s *CheckoutService) InitiateCheckout(ctx context.Context, learnerID string, courseID uuid.UUID, origin string) (string, error) {
	if learnerID == "" {
		metrics.CheckoutRequests.WithLabelValues("unauthorized").Inc()
		return "", serverrors.ErrUnauthorized
	}

	if _, err := s.catalog.LearnerByID(ctx, learnerID); err != nil {
		metrics.CheckoutRequests.WithLabelValues("not_found").Inc()
		return "", err
	}
	course, err := s.catalog.CourseByID(ctx, courseID)
	if err != nil {
		metrics.CheckoutRequests.WithLabelValues("not_found").Inc()
		return "", err
	}

	// computed once here, never recomputed
	amount := domain.DiscountedAmountCents(course.PriceCents, course.DiscountPct)
	if amount <= 0 {
		metrics.CheckoutRequests.WithLabelValues("free_course").Inc()
		return "", serverrors.ErrFreeCourse
	}

	purchase := domain.Purchase{
		ID:          uuid.New(),
		CourseID:    course.ID,
		LearnerID:   learnerID,
		AmountCents: amount,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.ledger.CreatePurchase(ctx, purchase); err != nil {
		metrics.CheckoutRequests.WithLabelValues("store_error").Inc()
		return "", err
	}

	if origin == "" {
		origin = s.clientURL
	}
	sessionURL, err := s.gateway.CreateSession(ctx, domain.CheckoutSession{
		Description:      course.Title,
		AmountMinorUnits: amount,
		SuccessURL:       origin + "/loading/my-enrollments",
		CancelURL:        origin + "/",
		PurchaseID:       purchase.ID.String(),
	})
	if err != nil {
		s.log.Error("gateway session creation failed",
			slog.String("purchase_id", purchase.ID.String()),
			slog.Any("error", err))
		metrics.CheckoutRequests.WithLabelValues("gateway_error").Inc()
		return "", err
	}

	s.publishTransition(ctx, purchase, domain.TransitionCreated)

	s.log.Info("checkout initiated",
		slog.String("purchase_id", purchase.ID.String()),
		slog.String("learner_id", learnerID),
		slog.Int64("amount_cents", amount))
	metrics.CheckoutRequests.WithLabelValues("ok").Inc()
	return sessionURL, nil
}

func (s *CheckoutService) publishTransition(ctx context.Context, p domain.Purchase, kind domain.TransitionKind) {
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
