package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

type fakeLedger struct {
	mu          sync.Mutex
	purchases   map[uuid.UUID]domain.Purchase
	enrollments map[uuid.UUID]map[string]struct{}
	failCreate  bool
	failLookup  bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		purchases:   make(map[uuid.UUID]domain.Purchase),
		enrollments: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (l *fakeLedger) CreatePurchase(_ context.Context, p domain.Purchase) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCreate {
		return errors.New("store unavailable")
	}
	l.purchases[p.ID] = p
	return nil
}

func (l *fakeLedger) PurchaseByID(_ context.Context, id uuid.UUID) (domain.Purchase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failLookup {
		return domain.Purchase{}, errors.New("store unavailable")
	}
	p, ok := l.purchases[id]
	if !ok {
		return domain.Purchase{}, serverrors.ErrNotFound
	}
	return p, nil
}

func (l *fakeLedger) CompleteAndEnroll(_ context.Context, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.purchases[id]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = domain.StatusCompleted
	l.purchases[id] = p
	set, ok := l.enrollments[p.CourseID]
	if !ok {
		set = make(map[string]struct{})
		l.enrollments[p.CourseID] = set
	}
	set[p.LearnerID] = struct{}{}
	return true, nil
}

func (l *fakeLedger) MarkFailed(_ context.Context, id uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.purchases[id]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = domain.StatusFailed
	l.purchases[id] = p
	return true, nil
}

func (l *fakeLedger) purchase(id uuid.UUID) domain.Purchase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purchases[id]
}

func (l *fakeLedger) pendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.purchases {
		if p.Status == domain.StatusPending {
			n++
		}
	}
	return n
}

func (l *fakeLedger) enrolledCount(courseID uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.enrollments[courseID])
}

type fakeCatalog struct {
	learners map[string]domain.Learner
	courses  map[uuid.UUID]domain.Course
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		learners: make(map[string]domain.Learner),
		courses:  make(map[uuid.UUID]domain.Course),
	}
}

func (c *fakeCatalog) CourseByID(_ context.Context, id uuid.UUID) (domain.Course, error) {
	course, ok := c.courses[id]
	if !ok {
		return domain.Course{}, serverrors.ErrNotFound
	}
	return course, nil
}

func (c *fakeCatalog) LearnerByID(_ context.Context, id string) (domain.Learner, error) {
	learner, ok := c.learners[id]
	if !ok {
		return domain.Learner{}, serverrors.ErrNotFound
	}
	return learner, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	sessions []domain.CheckoutSession
	url      string
	err      error
}

func (g *fakeGateway) CreateSession(_ context.Context, session domain.CheckoutSession) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.sessions = append(g.sessions, session)
	return g.url, nil
}

func (g *fakeGateway) lastSession() domain.CheckoutSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sessions) == 0 {
		return domain.CheckoutSession{}
	}
	return g.sessions[len(g.sessions)-1]
}

type fakePublisher struct {
	mu          sync.Mutex
	transitions []domain.LedgerTransition
}

func (p *fakePublisher) Publish(_ context.Context, t domain.LedgerTransition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, t)
	return nil
}

func (p *fakePublisher) kinds() []domain.TransitionKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TransitionKind, 0, len(p.transitions))
	for _, t := range p.transitions {
		out = append(out, t.Kind)
	}
	return out
}

type stubVerifier struct {
	event domain.PaymentEvent
	err   error
}

func (v *stubVerifier) VerifyEvent([]byte, string) (domain.PaymentEvent, error) {
	return v.event, v.err
}
