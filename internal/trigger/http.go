package trigger

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

const maxNotificationBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// Routes returns the notification endpoint: POST /v1/notifications takes an
// S3-style event document and answers with the BatchResult.
func (t *Trigger) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	t.Register(r)
	return r
}

// Register adds the notification endpoint to r.
func (t *Trigger) Register(r chi.Router) {
	r.Post("/v1/notifications", t.handleNotifications)
}

func (t *Trigger) handleNotifications(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	events, err := ParseNotification(body)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	res := t.Handle(r.Context(), events)
	render.Status(r, res.StatusCode)
	render.JSON(w, r, res)
}
