package repository

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yosiib2/LMIdone/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBatch struct {
	driver.Batch
	rejectIDs map[string]struct{}
	sendErr   error
	appended  []string
	sent      bool
}

func (b *fakeBatch) Append(v ...any) error {
	id := v[0].(string)
	if _, ok := b.rejectIDs[id]; ok {
		return errors.New("append rejected")
	}
	b.appended = append(b.appended, id)
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return b.sendErr
}

func transitionsWithIDs(ids ...string) []domain.LedgerTransition {
	out := make([]domain.LedgerTransition, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.LedgerTransition{
			PurchaseID:  id,
			CourseID:    "course-1",
			LearnerID:   "learner-1",
			AmountCents: 8000,
			Kind:        domain.TransitionCompleted,
			OccurredAt:  time.Now().UTC(),
		})
	}
	return out
}

func TestSaveBatch_AllAppendedAndSent(t *testing.T) {
	repo := NewAuditRepository(nil, discardLogger())
	batch := &fakeBatch{}

	failedIDs, err := repo.saveBatch(batch, transitionsWithIDs("a", "b", "c"))
	require.NoError(t, err)
	assert.Empty(t, failedIDs)
	assert.Equal(t, []string{"a", "b", "c"}, batch.appended)
	assert.True(t, batch.sent)
}

func TestSaveBatch_InterleavedAppendFailures(t *testing.T) {
	repo := NewAuditRepository(nil, discardLogger())
	batch := &fakeBatch{rejectIDs: map[string]struct{}{"b": {}, "d": {}}}

	failedIDs, err := repo.saveBatch(batch, transitionsWithIDs("a", "b", "c", "d"))
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"b", "d"}, failedIDs)
	assert.True(t, batch.sent)
}

// A send failure loses exactly the records that were appended, regardless of
// where the append failures sat in the slice.
func TestSaveBatch_SendFailureAfterInterleavedAppendFailures(t *testing.T) {
	repo := NewAuditRepository(nil, discardLogger())
	batch := &fakeBatch{
		rejectIDs: map[string]struct{}{"b": {}, "d": {}},
		sendErr:   errors.New("connection reset"),
	}

	failedIDs, err := repo.saveBatch(batch, transitionsWithIDs("a", "b", "c", "d"))
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, failedIDs)
}

func TestSaveBatch_NothingAppendedSkipsSend(t *testing.T) {
	repo := NewAuditRepository(nil, discardLogger())
	batch := &fakeBatch{rejectIDs: map[string]struct{}{"a": {}, "b": {}}}

	failedIDs, err := repo.saveBatch(batch, transitionsWithIDs("a", "b"))
	require.Error(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, failedIDs)
	assert.False(t, batch.sent)
}
