package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pennywise/internal/core"
	"pennywise/internal/storage"
)

// RecurringService owns the user-facing lifecycle of recurring templates:
// create, edit, toggle, cascade delete. The materializer mutates templates
// separately through its own narrower store interface.
type RecurringService struct {
	storage *storage.SQLiteRepository
}

func NewRecurringService(storage *storage.SQLiteRepository) *RecurringService {
	return &RecurringService{storage: storage}
}

// CreateInput carries the user-supplied template fields. Installment fields
// are consumed only when Kind is emi.
type CreateInput struct {
	Kind         core.RecurringKind
	DayOfMonth   int
	AmountCents  int64
	AccountID    string
	Category     string
	Description  string
	TotalCents   int64
	Installments int
	StartDate    time.Time
}

func (s *RecurringService) Create(ctx context.Context, in CreateInput) (*core.RecurringTemplate, error) {
	t := core.RecurringTemplate{
		ID:          uuid.NewString(),
		Kind:        in.Kind,
		DayOfMonth:  in.DayOfMonth,
		Amount:      core.Money{Cents: in.AmountCents},
		AccountID:   in.AccountID,
		Category:    in.Category,
		Description: in.Description,
		Active:      true,
		StartDate:   in.StartDate,
		CreatedAt:   time.Now().UTC(),
	}
	if in.Kind == core.KindInstallment {
		t.Plan = &core.InstallmentPlan{
			TotalAmount:  core.Money{Cents: in.TotalCents},
			Installments: in.Installments,
			Paid:         0,
		}
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	if err := s.storage.CreateRecurring(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateInput holds the editable fields; nil pointers leave the stored value
// untouched. Kind is absent on purpose.
type UpdateInput struct {
	DayOfMonth   *int
	AmountCents  *int64
	AccountID    *string
	Category     *string
	Description  *string
	TotalCents   *int64
	Installments *int
	StartDate    *time.Time
}

func (s *RecurringService) Update(ctx context.Context, id string, in UpdateInput) (*core.RecurringTemplate, error) {
	t, err := s.storage.GetRecurring(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.DayOfMonth != nil {
		t.DayOfMonth = *in.DayOfMonth
	}
	if in.AmountCents != nil {
		t.Amount = core.Money{Cents: *in.AmountCents}
	}
	if in.AccountID != nil {
		t.AccountID = *in.AccountID
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.StartDate != nil {
		t.StartDate = *in.StartDate
	}
	if t.Kind == core.KindInstallment && t.Plan != nil {
		if in.TotalCents != nil {
			t.Plan.TotalAmount = core.Money{Cents: *in.TotalCents}
		}
		if in.Installments != nil {
			t.Plan.Installments = *in.Installments
		}
	} else if in.TotalCents != nil || in.Installments != nil {
		return nil, core.ErrUnexpectedPlan
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, err)
	}
	if err := s.storage.UpdateRecurring(ctx, *t); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Recurring template updated", "id", id)
	return t, nil
}

func (s *RecurringService) Get(ctx context.Context, id string) (*core.RecurringTemplate, error) {
	return s.storage.GetRecurring(ctx, id)
}

func (s *RecurringService) List(ctx context.Context, f storage.RecurringFilter) ([]core.RecurringTemplate, error) {
	return s.storage.ListRecurrings(ctx, f)
}

// SetActive toggles a template without touching any other field.
func (s *RecurringService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.storage.SetRecurringActive(ctx, id, active); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring template toggled", "id", id, "active", active)
	return nil
}

// Delete removes the template and cascades to every generated record that
// references it.
func (s *RecurringService) Delete(ctx context.Context, id string) error {
	return s.storage.DeleteRecurringCascade(ctx, id)
}
