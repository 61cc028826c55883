package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pennywise/internal/core"
	"pennywise/internal/services"
	"pennywise/internal/storage"
)

// Server wires the JSON API over the recurring service and the materializer.
type Server struct {
	recurrings   *services.RecurringService
	materializer *services.Materializer
	repo         *storage.SQLiteRepository
}

// NewServer returns an http.Server with all routes registered.
func NewServer(addr string, recurrings *services.RecurringService, materializer *services.Materializer, repo *storage.SQLiteRepository) *http.Server {
	s := &Server{
		recurrings:   recurrings,
		materializer: materializer,
		repo:         repo,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/recurrings", s.handleCreateRecurring)
	mux.HandleFunc("GET /api/recurrings", s.handleListRecurrings)
	mux.HandleFunc("GET /api/recurrings/{id}", s.handleGetRecurring)
	mux.HandleFunc("PATCH /api/recurrings/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("DELETE /api/recurrings/{id}", s.handleDeleteRecurring)
	mux.HandleFunc("POST /api/recurrings/{id}/active", s.handleToggleRecurring)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/incomes", s.handleListIncomes)
	mux.HandleFunc("POST /api/materialize", s.handleMaterialize)

	return &http.Server{Addr: addr, Handler: mux}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrKindImmutable):
		status = http.StatusConflict
	case isValidationError(err):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrUnexpectedPlan)
}
