package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler, auth *Authenticator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.health)

	// webhook stays outside auth: the signature is its authentication
	r.Post("/stripe", handler.stripeWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Route("/course", func(r chi.Router) {
			r.Get("/all", handler.allCourses)
			r.Get("/{id}", handler.courseByID)
		})
		r.Route("/user", func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Get("/data", handler.userData)
			r.Get("/enrolled-courses", handler.enrolledCourses)
			r.Post("/purchase", handler.purchaseCourse)
		})
	})

	return r
}

func decodeJSONBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// trailing garbage after the object is as invalid as a bad object
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing data")
	}
	return nil
}
