package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

type reconcileFixture struct {
	ledger    *fakeLedger
	verifier  *stubVerifier
	publisher *fakePublisher
	service   *ReconcileService
}

func newReconcileFixture() *reconcileFixture {
	f := &reconcileFixture{
		ledger:    newFakeLedger(),
		verifier:  &stubVerifier{},
		publisher: &fakePublisher{},
	}
	f.service = NewReconcileService(f.ledger, f.verifier, f.publisher, discardLogger())
	return f
}

func (f *reconcileFixture) seedPending(learnerID string) domain.Purchase {
	p := domain.Purchase{
		ID:          uuid.New(),
		CourseID:    uuid.New(),
		LearnerID:   learnerID,
		AmountCents: 8000,
		Status:      domain.StatusPending,
	}
	f.ledger.purchases[p.ID] = p
	return p
}

func TestProcessEvent_CompletedEnrollsOnce(t *testing.T) {
	f := newReconcileFixture()
	p := f.seedPending("learner-1")
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventCheckoutCompleted,
		PurchaseID: p.ID.String(),
	}

	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))

	assert.Equal(t, domain.StatusCompleted, f.ledger.purchase(p.ID).Status)
	assert.Equal(t, 1, f.ledger.enrolledCount(p.CourseID))
	assert.Equal(t, []domain.TransitionKind{domain.TransitionCompleted}, f.publisher.kinds())
}

func TestProcessEvent_DuplicateDeliveryIsNoOp(t *testing.T) {
	f := newReconcileFixture()
	p := f.seedPending("learner-1")
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventCheckoutCompleted,
		PurchaseID: p.ID.String(),
	}

	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))
	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))

	assert.Equal(t, 1, f.ledger.enrolledCount(p.CourseID))
	assert.Equal(t, []domain.TransitionKind{domain.TransitionCompleted}, f.publisher.kinds())
}

func TestProcessEvent_FailureMarksFailedWithoutEnrollment(t *testing.T) {
	f := newReconcileFixture()
	p := f.seedPending("learner-1")
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventPaymentFailed,
		PurchaseID: p.ID.String(),
	}

	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))

	assert.Equal(t, domain.StatusFailed, f.ledger.purchase(p.ID).Status)
	assert.Zero(t, f.ledger.enrolledCount(p.CourseID))
	assert.Equal(t, []domain.TransitionKind{domain.TransitionFailed}, f.publisher.kinds())
}

// A late expiry after a successful completion must not flip the outcome.
func TestProcessEvent_ExpiryAfterCompletionIsNoOp(t *testing.T) {
	f := newReconcileFixture()
	p := f.seedPending("learner-1")
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventCheckoutCompleted,
		PurchaseID: p.ID.String(),
	}
	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))

	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_2",
		Type:       domain.EventCheckoutExpired,
		PurchaseID: p.ID.String(),
	}
	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))

	assert.Equal(t, domain.StatusCompleted, f.ledger.purchase(p.ID).Status)
	assert.Equal(t, 1, f.ledger.enrolledCount(p.CourseID))
}

func TestProcessEvent_BadSignatureRejected(t *testing.T) {
	f := newReconcileFixture()
	f.verifier.err = serverrors.ErrBadSignature

	err := f.service.ProcessEvent(context.Background(), []byte("{}"), "bogus")
	require.ErrorIs(t, err, serverrors.ErrBadSignature)
}

func TestProcessEvent_UnknownPurchaseAcked(t *testing.T) {
	f := newReconcileFixture()
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventCheckoutCompleted,
		PurchaseID: uuid.NewString(),
	}

	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))
	assert.Empty(t, f.publisher.kinds())
}

func TestProcessEvent_UnparsablePurchaseIDAcked(t *testing.T) {
	f := newReconcileFixture()
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventCheckoutCompleted,
		PurchaseID: "not-a-uuid",
	}

	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))
	assert.Empty(t, f.publisher.kinds())
}

func TestProcessEvent_UnrecognizedTypeAcked(t *testing.T) {
	f := newReconcileFixture()
	p := f.seedPending("learner-1")
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       "invoice.paid",
		PurchaseID: p.ID.String(),
	}

	require.NoError(t, f.service.ProcessEvent(context.Background(), []byte("{}"), "sig"))
	assert.Equal(t, domain.StatusPending, f.ledger.purchase(p.ID).Status)
}

func TestProcessEvent_StoreErrorPropagatesForRedelivery(t *testing.T) {
	f := newReconcileFixture()
	p := f.seedPending("learner-1")
	f.ledger.failLookup = true
	f.verifier.event = domain.PaymentEvent{
		ID:         "evt_1",
		Type:       domain.EventCheckoutCompleted,
		PurchaseID: p.ID.String(),
	}

	err := f.service.ProcessEvent(context.Background(), []byte("{}"), "sig")
	require.Error(t, err)
	assert.Equal(t, domain.StatusPending, f.ledger.purchase(p.ID).Status)
}

func TestProcessEvent_ConcurrentCompletions(t *testing.T) {
	f := newReconcileFixture()
	courseID := uuid.New()

	const learners = 16
	ids := make([]uuid.UUID, 0, learners)
	for i := 0; i < learners; i++ {
		p := domain.Purchase{
			ID:          uuid.New(),
			CourseID:    courseID,
			LearnerID:   uuid.NewString(),
			AmountCents: 8000,
			Status:      domain.StatusPending,
		}
		f.ledger.purchases[p.ID] = p
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(purchaseID uuid.UUID) {
			defer wg.Done()
			svc := NewReconcileService(f.ledger, &stubVerifier{event: domain.PaymentEvent{
				ID:         "evt_" + purchaseID.String(),
				Type:       domain.EventCheckoutCompleted,
				PurchaseID: purchaseID.String(),
			}}, f.publisher, discardLogger())
			assert.NoError(t, svc.ProcessEvent(context.Background(), []byte("{}"), "sig"))
		}(id)
	}
	wg.Wait()

	assert.Equal(t, learners, f.ledger.enrolledCount(courseID))
	assert.Zero(t, f.ledger.pendingCount())
}
