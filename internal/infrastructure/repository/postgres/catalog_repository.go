package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

// CatalogRepository reads courses and learners and the enrollment relation
// both "enrolled sets" derive from. Enrollment is only ever written by the
// ledger transaction, never here.
type CatalogRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewCatalogRepository(pool *pgxpool.Pool, log *slog.Logger) *CatalogRepository {
	return &CatalogRepository{
		pool: pool,
		log:  log,
	}
}

func (r *CatalogRepository) CourseByID(ctx context.Context, id uuid.UUID) (domain.Course, error) {
	var c domain.Course
	var content []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, price_cents, discount_pct, published, educator_id, content
		FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.PriceCents, &c.DiscountPct, &c.Published, &c.EducatorID, &content)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, serverrors.ErrNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("select course: %w", err)
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &c.Chapters); err != nil {
			return domain.Course{}, fmt.Errorf("decode course content: %w", err)
		}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT learner_id FROM enrollments WHERE course_id = $1`, id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("select enrollments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var learnerID string
		if err := rows.Scan(&learnerID); err != nil {
			return domain.Course{}, fmt.Errorf("scan enrollment: %w", err)
		}
		c.EnrolledLearners = append(c.EnrolledLearners, learnerID)
	}
	return c, rows.Err()
}

// PublishedCourses lists the catalog without content or enrollment, the
// large fields the browse surface excludes.
func (r *CatalogRepository) PublishedCourses(ctx context.Context) ([]domain.Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, price_cents, discount_pct, educator_id
		FROM courses WHERE published ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("select courses: %w", err)
	}
	defer rows.Close()

	var out []domain.Course
	for rows.Next() {
		c := domain.Course{Published: true}
		if err := rows.Scan(&c.ID, &c.Title, &c.PriceCents, &c.DiscountPct, &c.EducatorID); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) LearnerByID(ctx context.Context, id string) (domain.Learner, error) {
	var l domain.Learner
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email FROM learners WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Learner{}, serverrors.ErrNotFound
	}
	if err != nil {
		return domain.Learner{}, fmt.Errorf("select learner: %w", err)
	}
	return l, nil
}

// EnrolledCourses is the learner-side view of the enrollment relation, the
// point where a completed purchase becomes visible to its buyer.
func (r *CatalogRepository) EnrolledCourses(ctx context.Context, learnerID string) ([]domain.Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.title, c.price_cents, c.discount_pct, c.published, c.educator_id
		FROM courses c
		JOIN enrollments e ON e.course_id = c.id
		WHERE e.learner_id = $1
		ORDER BY e.created_at`, learnerID)
	if err != nil {
		return nil, fmt.Errorf("select enrolled courses: %w", err)
	}
	defer rows.Close()

	var out []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.PriceCents, &c.DiscountPct, &c.Published, &c.EducatorID); err != nil {
			return nil, fmt.Errorf("scan enrolled course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
