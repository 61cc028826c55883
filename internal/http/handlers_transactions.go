package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pennywise/internal/storage"
)

type expensePayload struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id,omitempty"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	RecurringID string `json:"recurring_id,omitempty"`
	Installment bool   `json:"installment"`
	CreatedAt   string `json:"created_at"`
}

type incomePayload struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id,omitempty"`
	Amount      string `json:"amount"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	RecurringID string `json:"recurring_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f := storage.ExpenseFilter{RecurringID: r.URL.Query().Get("recurring")}
	var ok bool
	if f.Year, f.Month, f.RecurringOnly, f.DirectOnly, ok = recordQueryParams(w, r); !ok {
		return
	}

	expenses, err := s.repo.ListExpenses(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]expensePayload, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expensePayload{
			ID:          e.ID,
			AccountID:   e.AccountID,
			Amount:      fmt.Sprintf("%.2f", e.Amount.Units()),
			Category:    e.Category,
			Description: e.Description,
			Date:        e.Date.Format(dateLayout),
			RecurringID: e.RecurringID,
			Installment: e.Installment,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	f := storage.IncomeFilter{RecurringID: r.URL.Query().Get("recurring")}
	var ok bool
	if f.Year, f.Month, f.RecurringOnly, f.DirectOnly, ok = recordQueryParams(w, r); !ok {
		return
	}

	incomes, err := s.repo.ListIncomes(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]incomePayload, 0, len(incomes))
	for _, i := range incomes {
		out = append(out, incomePayload{
			ID:          i.ID,
			AccountID:   i.AccountID,
			Amount:      fmt.Sprintf("%.2f", i.Amount.Units()),
			Category:    i.Category,
			Description: i.Description,
			Date:        i.Date.Format(dateLayout),
			RecurringID: i.RecurringID,
			CreatedAt:   i.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleMaterialize runs one materialization pass for the current month and
// returns the creation counts.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	stats, err := s.materializer.Run(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func recordQueryParams(w http.ResponseWriter, r *http.Request) (year int, month time.Month, recurringOnly, directOnly bool, ok bool) {
	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		yv, err := strconv.Atoi(y)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year must be a number"})
			return 0, 0, false, false, false
		}
		year = yv
	}
	if m := q.Get("month"); m != "" {
		mv, err := strconv.Atoi(m)
		if err != nil || mv < 1 || mv > 12 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "month must be 1-12"})
			return 0, 0, false, false, false
		}
		month = time.Month(mv)
	}
	switch q.Get("source") {
	case "":
	case "recurring":
		recurringOnly = true
	case "direct":
		directOnly = true
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source must be 'recurring' or 'direct'"})
		return 0, 0, false, false, false
	}
	return year, month, recurringOnly, directOnly, true
}
