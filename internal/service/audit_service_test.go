package service

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yosiib2/LMIdone/internal/config"
	"github.com/yosiib2/LMIdone/internal/domain"
)

type fakeAuditRepo struct {
	mu    sync.Mutex
	saved []domain.LedgerTransition
	err   error
}

func (r *fakeAuditRepo) SaveTransitionsAndReturnFailedIDs(_ context.Context, transitions []domain.LedgerTransition) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.saved = append(r.saved, transitions...)
	return nil, nil
}

func (r *fakeAuditRepo) savedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

type fakeDLQ struct {
	mu       sync.Mutex
	messages [][]byte
}

func (d *fakeDLQ) Send(_ context.Context, message []byte, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, message)
	return nil
}

func (d *fakeDLQ) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func auditTestConfig(batchSize int) config.AuditConfig {
	return config.AuditConfig{
		RetrySaveBatchConfig: config.RetrySaveBatchConfig{
			Attempts: 2,
			Delay:    time.Millisecond,
			MaxDelay: 5 * time.Millisecond,
		},
		BatchSize:     batchSize,
		FlushInterval: time.Hour, // size-triggered flush only
		WorkerCount:   2,
	}
}

func transitionMessage(t *testing.T) []byte {
	t.Helper()
	message, err := json.Marshal(domain.LedgerTransition{
		PurchaseID:  uuid.NewString(),
		CourseID:    uuid.NewString(),
		LearnerID:   uuid.NewString(),
		AmountCents: 8000,
		Kind:        domain.TransitionCompleted,
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return message
}

func TestAuditService_FlushesFullBatch(t *testing.T) {
	repo := &fakeAuditRepo{}
	dlq := &fakeDLQ{}
	svc := NewAuditService(repo, dlq, auditTestConfig(3), discardLogger())
	defer svc.Shutdown()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		svc.ProcessMessage(ctx, transitionMessage(t))
	}

	require.Eventually(t, func() bool {
		return repo.savedCount() == 3
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, dlq.count())
}

func TestAuditService_ShutdownFlushesRemainder(t *testing.T) {
	repo := &fakeAuditRepo{}
	svc := NewAuditService(repo, &fakeDLQ{}, auditTestConfig(10), discardLogger())

	ctx := context.Background()
	svc.ProcessMessage(ctx, transitionMessage(t))
	svc.ProcessMessage(ctx, transitionMessage(t))

	svc.Shutdown()
	assert.Equal(t, 2, repo.savedCount())
}

func TestAuditService_MalformedMessageGoesToDLQ(t *testing.T) {
	repo := &fakeAuditRepo{}
	dlq := &fakeDLQ{}
	svc := NewAuditService(repo, dlq, auditTestConfig(10), discardLogger())
	defer svc.Shutdown()

	svc.ProcessMessage(context.Background(), []byte("not json"))

	assert.Equal(t, 1, dlq.count())
	assert.Zero(t, repo.savedCount())
}

// Shutdown must release the interval-flush goroutine, not leave it parked
// on the stopped ticker.
func TestAuditService_ShutdownReleasesFlushLoop(t *testing.T) {
	before := runtime.NumGoroutine()

	for i := 0; i < 10; i++ {
		svc := NewAuditService(&fakeAuditRepo{}, &fakeDLQ{}, auditTestConfig(10), discardLogger())
		svc.ProcessMessage(context.Background(), transitionMessage(t))
		svc.Shutdown()
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, time.Second, 10*time.Millisecond)
}

func TestAuditService_ExhaustedRetriesGoToDLQ(t *testing.T) {
	repo := &fakeAuditRepo{err: errors.New("storage down")}
	dlq := &fakeDLQ{}
	svc := NewAuditService(repo, dlq, auditTestConfig(2), discardLogger())
	defer svc.Shutdown()

	ctx := context.Background()
	svc.ProcessMessage(ctx, transitionMessage(t))
	svc.ProcessMessage(ctx, transitionMessage(t))

	require.Eventually(t, func() bool {
		return dlq.count() == 2
	}, time.Second, 10*time.Millisecond)
}
