package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
)

// Store is the slice of the repository the materializer needs.
type Store interface {
	ListActiveRecurrings(ctx context.Context) ([]core.RecurringTemplate, error)
	CountOccurrences(ctx context.Context, kind core.RecurringKind, recurringID string, year int, month time.Month) (int, error)
	CreateExpense(ctx context.Context, e core.Expense) error
	CreateIncome(ctx context.Context, i core.Income) error
	SaveRecurringProgress(ctx context.Context, id string, paid int, active bool, triggeredAt time.Time) error
	TouchRecurring(ctx context.Context, id string, triggeredAt time.Time) error
}

// OccurrencePublisher receives a notification for every generated record.
// A nil publisher disables notifications.
type OccurrencePublisher interface {
	PublishOccurrence(ctx context.Context, kind core.RecurringKind, recordID, recurringID string) error
}

// Stats reports what one materialization pass created.
type Stats struct {
	IncomesCreated      int `json:"incomes_created"`
	ExpensesCreated     int `json:"expenses_created"`
	InstallmentsCreated int `json:"installments_created"`
}

func (s Stats) Total() int {
	return s.IncomesCreated + s.ExpensesCreated + s.InstallmentsCreated
}

// Materializer turns active recurring templates into concrete expense and
// income records, at most one per template per calendar month. Re-running for
// the same month is a no-op: idempotence rests on the month-scoped duplicate
// check against the recurring_id back-reference, not on template state.
type Materializer struct {
	store  Store
	events OccurrencePublisher

	// Serializes passes within this process so a startup run and a
	// scheduled tick cannot interleave their duplicate checks.
	mu sync.Mutex
}

func NewMaterializer(store Store, events OccurrencePublisher) *Materializer {
	return &Materializer{store: store, events: events}
}

// Run materializes occurrences for the calendar month containing ref. An
// error processing one template is logged and does not stop the others; only
// a failure to load the template list aborts the pass.
func (m *Materializer) Run(ctx context.Context, ref time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats Stats
	if m.store == nil {
		return stats, fmt.Errorf("materializer not properly initialized")
	}

	templates, err := m.store.ListActiveRecurrings(ctx)
	if err != nil {
		return stats, fmt.Errorf("list active recurring templates: %w", err)
	}

	monthStart, monthEnd := core.MonthBounds(ref)
	slog.InfoContext(ctx, "Materializing recurring templates",
		"total_active", len(templates),
		"month", monthStart.Format("2006-01"))

	for _, t := range templates {
		created, err := m.materializeOne(ctx, t, ref, monthStart, monthEnd)
		if err != nil {
			// The record may still have been created; the month-scoped
			// duplicate check keeps the next pass from doubling it.
			slog.ErrorContext(ctx, "Failed to materialize recurring template",
				"id", t.ID,
				"kind", string(t.Kind),
				"description", t.Description,
				"error", err)
		}
		if !created {
			continue
		}
		switch t.Kind {
		case core.KindIncome:
			stats.IncomesCreated++
		case core.KindInstallment:
			stats.InstallmentsCreated++
		default:
			stats.ExpensesCreated++
		}
	}

	slog.InfoContext(ctx, "Recurring materialization complete",
		"incomes_created", stats.IncomesCreated,
		"expenses_created", stats.ExpensesCreated,
		"installments_created", stats.InstallmentsCreated,
		"total_checked", len(templates))

	return stats, nil
}

func (m *Materializer) materializeOne(ctx context.Context, t core.RecurringTemplate, ref, monthStart, monthEnd time.Time) (bool, error) {
	// Schedule has not started yet for this month.
	if !t.StartDate.IsZero() && t.StartDate.After(monthEnd) {
		return false, nil
	}

	// Fully paid loans should already be inactive; skip defensively in case
	// a counter update was lost after a crash.
	if t.Kind == core.KindInstallment && t.Plan != nil && t.Plan.Completed() {
		return false, nil
	}

	occurrenceDate := core.OccurrenceDate(t.DayOfMonth, monthStart)

	existing, err := m.store.CountOccurrences(ctx, t.Kind, t.ID,
		occurrenceDate.Year(), occurrenceDate.Month())
	if err != nil {
		return false, fmt.Errorf("count occurrences: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	recordID := uuid.NewString()
	switch t.Kind {
	case core.KindIncome:
		income := core.Income{
			ID:          recordID,
			AccountID:   t.AccountID,
			Amount:      t.Amount,
			Category:    t.DefaultCategory(),
			Description: t.Description,
			Date:        occurrenceDate,
			RecurringID: t.ID,
			CreatedAt:   time.Now().UTC(),
		}
		if err := m.store.CreateIncome(ctx, income); err != nil {
			return false, fmt.Errorf("create income: %w", err)
		}
	default:
		expense := core.Expense{
			ID:          recordID,
			AccountID:   t.AccountID,
			Amount:      t.Amount,
			Category:    t.DefaultCategory(),
			Description: t.Description,
			Date:        occurrenceDate,
			RecurringID: t.ID,
			Installment: t.Kind == core.KindInstallment,
			CreatedAt:   time.Now().UTC(),
		}
		if err := m.store.CreateExpense(ctx, expense); err != nil {
			return false, fmt.Errorf("create expense: %w", err)
		}
	}

	// Template state update. If this fails after the record was created the
	// duplicate check above still blocks a second record for this month on
	// the next pass, so log and report the error without rolling back.
	if t.Kind == core.KindInstallment && t.Plan != nil {
		paid := t.Plan.Paid + 1
		active := paid < t.Plan.Installments
		if err := m.store.SaveRecurringProgress(ctx, t.ID, paid, active, ref); err != nil {
			return true, fmt.Errorf("save installment progress: %w", err)
		}
		if !active {
			slog.InfoContext(ctx, "Installment plan completed, template deactivated",
				"id", t.ID,
				"installments", t.Plan.Installments)
		}
	} else {
		if err := m.store.TouchRecurring(ctx, t.ID, ref); err != nil {
			return true, fmt.Errorf("update last triggered: %w", err)
		}
	}

	m.notify(ctx, t.Kind, recordID, t.ID)

	slog.InfoContext(ctx, "Created occurrence from recurring template",
		"recurring_id", t.ID,
		"record_id", recordID,
		"kind", string(t.Kind),
		"date", occurrenceDate.Format("2006-01-02"),
		"amount_cents", t.Amount.Cents)

	return true, nil
}

func (m *Materializer) notify(ctx context.Context, kind core.RecurringKind, recordID, recurringID string) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishOccurrence(ctx, kind, recordID, recurringID); err != nil {
		// Export is best effort; the record is already persisted locally.
		slog.ErrorContext(ctx, "Failed to publish occurrence event",
			"record_id", recordID,
			"recurring_id", recurringID,
			"error", err)
	}
}
