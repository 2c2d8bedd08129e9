package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yosiib2/LMIdone/internal/domain"
	"github.com/yosiib2/LMIdone/internal/service/serverrors"
)

// webhook bodies are small; anything beyond this is not a gateway event
const maxWebhookBody = 1 << 20

type CheckoutInitiator interface {
	InitiateCheckout(ctx context.Context, learnerID string, courseID uuid.UUID, origin string) (string, error)
}

type EventProcessor interface {
	ProcessEvent(ctx context.Context, body []byte, signature string) error
}

type CatalogReader interface {
	CourseByID(ctx context.Context, id uuid.UUID) (domain.Course, error)
	PublishedCourses(ctx context.Context) ([]domain.Course, error)
	LearnerByID(ctx context.Context, id string) (domain.Learner, error)
	EnrolledCourses(ctx context.Context, learnerID string) ([]domain.Course, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	checkout   CheckoutInitiator
	reconciler EventProcessor
	catalog    CatalogReader
	log        *slog.Logger
}

func NewHandler(checkout CheckoutInitiator, reconciler EventProcessor, catalog CatalogReader, log *slog.Logger) *Handler {
	return &Handler{
		checkout:   checkout,
		reconciler: reconciler,
		catalog:    catalog,
		log:        log,
	}
}

type purchaseRequest struct {
	CourseID string `json:"courseId"`
}

func (h *Handler) purchaseCourse(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Data Not Found")
		return
	}

	sessionURL, err := h.checkout.InitiateCheckout(r.Context(), LearnerID(r.Context()), courseID, r.Header.Get("Origin"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"session_url": sessionURL})
}

// stripeWebhook never surfaces errors to a learner: a non-2xx status only
// tells the gateway to redeliver, and a bad signature is rejected outright.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	err = h.reconciler.ProcessEvent(r.Context(), body, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, serverrors.ErrBadSignature):
		respondError(w, http.StatusBadRequest, "signature verification failed")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "event not applied")
	default:
		respondSuccess(w, http.StatusOK, map[string]any{"received": true})
	}
}

func (h *Handler) userData(w http.ResponseWriter, r *http.Request) {
	learner, err := h.catalog.LearnerByID(r.Context(), LearnerID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"user": learner})
}

func (h *Handler) enrolledCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.EnrolledCourses(r.Context(), LearnerID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	respondSuccess(w, http.StatusOK, map[string]any{"enrolledCourses": courses})
}

func (h *Handler) allCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.catalog.PublishedCourses(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	respondSuccess(w, http.StatusOK, map[string]any{"courses": courses})
}

func (h *Handler) courseByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "Course not found")
		return
	}
	course, err := h.catalog.CourseByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	course.RedactLockedLectures()
	respondSuccess(w, http.StatusOK, map[string]any{"courseData": course})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondSuccess(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, serverrors.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "Not authorized")
	case errors.Is(err, serverrors.ErrNotFound):
		respondError(w, http.StatusNotFound, "Data Not Found")
	case errors.Is(err, serverrors.ErrFreeCourse):
		respondError(w, http.StatusBadRequest, "course cannot be purchased for free")
	default:
		h.log.Error("request failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "Server error")
	}
}
