package domain

import (
	"time"

	"github.com/google/uuid"
)

type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "pending"
	StatusCompleted PurchaseStatus = "completed"
	StatusFailed    PurchaseStatus = "failed"
)

// Terminal reports whether the status absorbs further payment events.
func (s PurchaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Purchase struct {
	ID          uuid.UUID      `json:"id"`
	CourseID    uuid.UUID      `json:"course_id"`
	LearnerID   string         `json:"learner_id"`
	AmountCents int64          `json:"amount_cents"`
	Status      PurchaseStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// DiscountedAmountCents computes the charge for a course in minor units:
// price minus the percentage discount, rounded half away from zero to a
// whole cent. The result is fixed at purchase creation and never recomputed.
func DiscountedAmountCents(priceCents int64, discountPct int) int64 {
	num := priceCents * int64(100-discountPct)
	if num < 0 {
		return 0
	}
	return (num + 50) / 100
}
