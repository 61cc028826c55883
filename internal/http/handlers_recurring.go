package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pennywise/internal/core"
	"pennywise/internal/services"
	"pennywise/internal/storage"
)

// Monetary amounts travel as decimal strings ("12.34") and are stored as
// cents; dates travel as "2006-01-02".
const dateLayout = "2006-01-02"

type recurringPayload struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	DayOfMonth  int    `json:"day_of_month"`
	Amount      string `json:"amount"`
	AccountID   string `json:"account_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description"`
	Active      bool   `json:"active"`

	TotalAmount      string `json:"total_amount,omitempty"`
	Installments     int    `json:"installments,omitempty"`
	InstallmentsPaid int    `json:"installments_paid,omitempty"`

	StartDate       string `json:"start_date,omitempty"`
	LastTriggeredAt string `json:"last_triggered_at,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func toRecurringPayload(t core.RecurringTemplate) recurringPayload {
	p := recurringPayload{
		ID:          t.ID,
		Kind:        string(t.Kind),
		DayOfMonth:  t.DayOfMonth,
		Amount:      fmt.Sprintf("%.2f", t.Amount.Units()),
		AccountID:   t.AccountID,
		Category:    t.Category,
		Description: t.Description,
		Active:      t.Active,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.Plan != nil {
		p.TotalAmount = fmt.Sprintf("%.2f", t.Plan.TotalAmount.Units())
		p.Installments = t.Plan.Installments
		p.InstallmentsPaid = t.Plan.Paid
	}
	if !t.StartDate.IsZero() {
		p.StartDate = t.StartDate.Format(dateLayout)
	}
	if !t.LastTriggeredAt.IsZero() {
		p.LastTriggeredAt = t.LastTriggeredAt.Format(time.RFC3339)
	}
	return p
}

type createRecurringRequest struct {
	Kind         string `json:"kind"`
	DayOfMonth   int    `json:"day_of_month"`
	Amount       string `json:"amount"`
	AccountID    string `json:"account_id"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	TotalAmount  string `json:"total_amount"`
	Installments int    `json:"installments"`
	StartDate    string `json:"start_date"`
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req createRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, fmt.Errorf("amount: %w", err))
		return
	}

	in := services.CreateInput{
		Kind:        core.RecurringKind(req.Kind),
		DayOfMonth:  req.DayOfMonth,
		AmountCents: cents,
		AccountID:   req.AccountID,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.TotalAmount != "" {
		totalCents, err := core.ParseDecimalToCents(req.TotalAmount)
		if err != nil {
			writeError(w, r, fmt.Errorf("total_amount: %w", err))
			return
		}
		in.TotalCents = totalCents
	}
	in.Installments = req.Installments
	if req.StartDate != "" {
		startDate, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		in.StartDate = startDate
	}

	t, err := s.recurrings.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecurringPayload(*t))
}

func (s *Server) handleListRecurrings(w http.ResponseWriter, r *http.Request) {
	f := storage.RecurringFilter{
		Kind:      core.RecurringKind(r.URL.Query().Get("kind")),
		AccountID: r.URL.Query().Get("account"),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active must be a boolean"})
			return
		}
		f.Active = &active
	}

	templates, err := s.recurrings.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]recurringPayload, 0, len(templates))
	for _, t := range templates {
		out = append(out, toRecurringPayload(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRecurring(w http.ResponseWriter, r *http.Request) {
	t, err := s.recurrings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringPayload(*t))
}

type updateRecurringRequest struct {
	Kind         *string `json:"kind"`
	DayOfMonth   *int    `json:"day_of_month"`
	Amount       *string `json:"amount"`
	AccountID    *string `json:"account_id"`
	Category     *string `json:"category"`
	Description  *string `json:"description"`
	TotalAmount  *string `json:"total_amount"`
	Installments *int    `json:"installments"`
	StartDate    *string `json:"start_date"`
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req updateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Kind != nil {
		writeError(w, r, core.ErrKindImmutable)
		return
	}

	in := services.UpdateInput{
		DayOfMonth:   req.DayOfMonth,
		AccountID:    req.AccountID,
		Category:     req.Category,
		Description:  req.Description,
		Installments: req.Installments,
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			writeError(w, r, fmt.Errorf("amount: %w", err))
			return
		}
		in.AmountCents = &cents
	}
	if req.TotalAmount != nil {
		totalCents, err := core.ParseDecimalToCents(*req.TotalAmount)
		if err != nil {
			writeError(w, r, fmt.Errorf("total_amount: %w", err))
			return
		}
		in.TotalCents = &totalCents
	}
	if req.StartDate != nil {
		startDate, err := time.Parse(dateLayout, *req.StartDate)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		in.StartDate = &startDate
	}

	t, err := s.recurrings.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecurringPayload(*t))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.recurrings.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleRecurring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"active\": true|false}"})
		return
	}
	if err := s.recurrings.SetActive(r.Context(), r.PathValue("id"), *req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
