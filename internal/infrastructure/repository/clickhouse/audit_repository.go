package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/yosiib2/LMIdone/internal/domain"
)

type AuditRepository struct {
	db  clickhouse.Conn
	log *slog.Logger
}

func NewAuditRepository(db clickhouse.Conn, log *slog.Logger) *AuditRepository {
	return &AuditRepository{
		db:  db,
		log: log,
	}
}

// SaveTransitionsAndReturnFailedIDs archives a batch of ledger transitions
// and reports the purchase ids of records that did not make it, so the
// caller can retry just those.
func (r *AuditRepository) SaveTransitionsAndReturnFailedIDs(ctx context.Context, transitions []domain.LedgerTransition) ([]string, error) {
	if len(transitions) == 0 {
		return nil, nil
	}

	batch, err := r.db.PrepareBatch(ctx, `
		INSERT INTO ledger_audit (
			purchase_id, course_id, learner_id,
			amount_cents, kind, occurred_at
		) VALUES`)
	if err != nil {
		r.log.Error("failed to prepare batch", slog.Any("error", err))
		return extractIDs(transitions), err
	}

	return r.saveBatch(batch, transitions)
}

func (r *AuditRepository) saveBatch(batch driver.Batch, transitions []domain.LedgerTransition) ([]string, error) {
	var failedIDs []string
	var allErrors []error
	appended := make([]domain.LedgerTransition, 0, len(transitions))

	for _, t := range transitions {
		if err := batch.Append(
			t.PurchaseID, t.CourseID, t.LearnerID,
			t.AmountCents, string(t.Kind), t.OccurredAt,
		); err != nil {
			r.log.Error("failed to append record", slog.Any("error", err))
			failedIDs = append(failedIDs, t.PurchaseID)
			allErrors = append(allErrors, err)
			continue
		}
		appended = append(appended, t)
	}

	// Send only when at least one record was appended. A failed send fails
	// exactly the records that made it into the batch, append failures can
	// land anywhere in the slice.
	if len(appended) > 0 {
		if err := batch.Send(); err != nil {
			r.log.Error("failed to send batch", slog.Any("error", err))
			allErrors = append(allErrors, err)
			failedIDs = append(failedIDs, extractIDs(appended)...)
		}
	}

	defer func() {
		if len(failedIDs) == 0 {
			r.log.Info("batch of transitions archived", slog.Int("count", len(transitions)))
		} else {
			r.log.Warn("some records failed", slog.Int("count", len(failedIDs)))
		}
	}()

	if len(failedIDs) == 0 {
		return nil, nil
	}

	finalErr := fmt.Errorf("failed to save %d of %d records: %w", len(failedIDs), len(transitions), errors.Join(allErrors...))

	return failedIDs, finalErr
}

func (r *AuditRepository) Close() error {
	return r.db.Close()
}

func extractIDs(transitions []domain.LedgerTransition) []string {
	ids := make([]string, 0, len(transitions))
	for _, t := range transitions {
		ids = append(ids, t.PurchaseID)
	}
	return ids
}
