package domain

import "time"

type TransitionKind string

const (
	TransitionCreated   TransitionKind = "purchase.created"
	TransitionCompleted TransitionKind = "purchase.completed"
	TransitionFailed    TransitionKind = "purchase.failed"
)

// LedgerTransition is one status change of one purchase, as published to the
// audit topic and archived by the audit worker.
type LedgerTransition struct {
	PurchaseID  string         `json:"purchase_id"`
	CourseID    string         `json:"course_id"`
	LearnerID   string         `json:"learner_id"`
	AmountCents int64          `json:"amount_cents"`
	Kind        TransitionKind `json:"kind"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
