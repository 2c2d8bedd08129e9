package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewLedgerRepository(pool *pgxpool.Pool, log *slog.Logger) *LedgerRepository {
	return &LedgerRepository{
		pool: pool,
		log:  log,
	}
}

func (r *LedgerRepository) CreatePurchase(ctx context.Context, p domain.Purchase) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO purchases (id, course_id, learner_id, amount_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		p.ID, p.CourseID, p.LearnerID, p.AmountCents, string(p.Status), p.CreatedAt)
	if err != nil {
		r.log.Error("failed to insert purchase",
			slog.String("purchase_id", p.ID.String()),
			slog.Any("error", err))
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *LedgerRepository) PurchaseByID(ctx context.Context, id uuid.UUID) (domain.Purchase, error) {
	var p domain.Purchase
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, course_id, learner_id, amount_cents, status, created_at, updated_at
		FROM purchases WHERE id = $1`, id).
		Scan(&p.ID, &p.CourseID, &p.LearnerID, &p.AmountCents, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Purchase{}, serverrors.ErrNotFound
	}
	if err != nil {
		return domain.Purchase{}, fmt.Errorf("select purchase: %w", err)
	}
	p.Status = domain.PurchaseStatus(status)
	return p, nil
}

// CompleteAndEnroll flips the purchase to completed and writes the enrollment
// in one transaction. The conditional update is the per-purchase latch: a
// zero-row update means another delivery already reached a terminal state,
// and nothing is written. Returns whether this call applied the transition.
func (r *LedgerRepository) CompleteAndEnroll(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var courseID uuid.UUID
	var learnerID string
	err = tx.QueryRow(ctx, `
		UPDATE purchases SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING course_id, learner_id`, id).
		Scan(&courseID, &learnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete purchase: %w", err)
	}

	// ON CONFLICT keeps the set insertion safe under concurrent completions.
	_, err = tx.Exec(ctx, `
		INSERT INTO enrollments (course_id, learner_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (course_id, learner_id) DO NOTHING`, courseID, learnerID)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// MarkFailed flips the purchase to failed under the same pending-only latch.
// No enrollment is ever written on this path.
func (r *LedgerRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE purchases SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("fail purchase: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepository) Close() {
	r.pool.Close()
}
