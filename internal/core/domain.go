package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecurringKind identifies what a recurring template generates each month.
// The set is closed: templates never change kind after creation because the
// category defaults and installment bookkeeping differ per kind.
type RecurringKind string

const (
	KindExpense RecurringKind = "expense"
	KindIncome  RecurringKind = "income"
	// KindInstallment is an amortizing loan (EMI): a fixed monthly amount
	// generated until the installment count is exhausted.
	KindInstallment RecurringKind = "emi"
)

// Default categories applied to generated records when the template has none.
const (
	DefaultIncomeCategory      = "Recurring Income"
	DefaultExpenseCategory     = "Recurring Expense"
	DefaultInstallmentCategory = "EMI"
)

type (
	Money struct {
		Cents int64
	}

	// InstallmentPlan carries the loan-only tracking fields. It is present
	// only on KindInstallment templates. Total/Paid count months; TotalAmount
	// is the principal, descriptive only, never used to derive the
	// per-occurrence amount.
	InstallmentPlan struct {
		TotalAmount  Money
		Installments int
		Paid         int
	}

	// RecurringTemplate is a monthly schedule from which concrete expense or
	// income records are generated.
	RecurringTemplate struct {
		ID          string
		Kind        RecurringKind
		DayOfMonth  int
		Amount      Money
		AccountID   string
		Category    string
		Description string
		Active      bool
		// Plan is non-nil exactly when Kind == KindInstallment.
		Plan            *InstallmentPlan
		StartDate       time.Time
		LastTriggeredAt time.Time
		CreatedAt       time.Time
	}

	// Expense is a concrete transaction, either entered directly or
	// generated from a recurring template.
	Expense struct {
		ID          string
		AccountID   string
		Amount      Money
		Category    string
		Description string
		Date        time.Time
		// RecurringID links a generated record back to its template. Weak
		// reference: used for duplicate detection and cascade delete only.
		RecurringID string
		Installment bool
		CreatedAt   time.Time
	}

	Income struct {
		ID          string
		AccountID   string
		Amount      Money
		Category    string
		Description string
		Date        time.Time
		RecurringID string
		CreatedAt   time.Time
	}
)

var (
	// ErrValidation marks any user-correctable input problem; the concrete
	// cause is wrapped alongside it.
	ErrValidation = errors.New("validation failed")

	ErrInvalidKind        = errors.New("invalid recurring kind")
	ErrInvalidDayOfMonth  = errors.New("day of month must be between 1 and 31")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingPlan        = errors.New("installment template requires a plan")
	ErrUnexpectedPlan     = errors.New("only installment templates carry a plan")
	ErrInstallmentOverrun = errors.New("installments paid exceeds total installments")
	ErrAmountExceedsTotal = errors.New("monthly amount exceeds total loan amount")
	ErrKindImmutable      = errors.New("recurring kind cannot be changed")
)

func (k RecurringKind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindInstallment:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p *InstallmentPlan) Validate(monthly Money) error {
	if p.Installments <= 0 {
		return errors.New("total installments must be positive")
	}
	if p.Paid < 0 || p.Paid > p.Installments {
		return ErrInstallmentOverrun
	}
	if err := p.TotalAmount.Validate(); err != nil {
		return fmt.Errorf("total amount: %w", err)
	}
	if monthly.Cents > p.TotalAmount.Cents {
		return ErrAmountExceedsTotal
	}
	return nil
}

// Completed reports whether every installment has been generated.
func (p *InstallmentPlan) Completed() bool {
	return p.Paid >= p.Installments
}

// DefaultCategory returns the category to stamp on a generated record when
// the template itself carries none.
func (r RecurringTemplate) DefaultCategory() string {
	if strings.TrimSpace(r.Category) != "" {
		return r.Category
	}
	switch r.Kind {
	case KindIncome:
		return DefaultIncomeCategory
	case KindInstallment:
		return DefaultInstallmentCategory
	default:
		return DefaultExpenseCategory
	}
}

func (r RecurringTemplate) Validate() error {
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return errors.New("empty description")
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if r.Kind == KindInstallment {
		if r.Plan == nil {
			return ErrMissingPlan
		}
		return r.Plan.Validate(r.Amount)
	}
	if r.Plan != nil {
		return ErrUnexpectedPlan
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return errors.New("expense date cannot be zero")
	}
	if strings.TrimSpace(e.Category) == "" {
		return errors.New("empty category")
	}
	return nil
}

func (i Income) Validate() error {
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if i.Date.IsZero() {
		return errors.New("income date cannot be zero")
	}
	return nil
}
