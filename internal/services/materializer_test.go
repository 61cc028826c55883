package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pennywise/internal/core"
)

// fakeStore is an in-memory Store for materializer tests.
type fakeStore struct {
	templates []core.RecurringTemplate
	expenses  []core.Expense
	incomes   []core.Income

	listErr          error
	createExpenseErr map[string]error // keyed by recurring id
	progressErr      map[string]error
}

func newFakeStore(templates ...core.RecurringTemplate) *fakeStore {
	return &fakeStore{
		templates:        templates,
		createExpenseErr: map[string]error{},
		progressErr:      map[string]error{},
	}
}

func (f *fakeStore) ListActiveRecurrings(ctx context.Context) ([]core.RecurringTemplate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var active []core.RecurringTemplate
	for _, t := range f.templates {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

func (f *fakeStore) CountOccurrences(ctx context.Context, kind core.RecurringKind, recurringID string, year int, month time.Month) (int, error) {
	count := 0
	if kind == core.KindIncome {
		for _, i := range f.incomes {
			if i.RecurringID == recurringID && i.Date.Year() == year && i.Date.Month() == month {
				count++
			}
		}
		return count, nil
	}
	for _, e := range f.expenses {
		if e.RecurringID == recurringID && e.Date.Year() == year && e.Date.Month() == month {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateExpense(ctx context.Context, e core.Expense) error {
	if err := f.createExpenseErr[e.RecurringID]; err != nil {
		return err
	}
	f.expenses = append(f.expenses, e)
	return nil
}

func (f *fakeStore) CreateIncome(ctx context.Context, i core.Income) error {
	f.incomes = append(f.incomes, i)
	return nil
}

func (f *fakeStore) SaveRecurringProgress(ctx context.Context, id string, paid int, active bool, triggeredAt time.Time) error {
	if err := f.progressErr[id]; err != nil {
		return err
	}
	for idx := range f.templates {
		if f.templates[idx].ID == id {
			if f.templates[idx].Plan != nil {
				f.templates[idx].Plan.Paid = paid
			}
			f.templates[idx].Active = active
			f.templates[idx].LastTriggeredAt = triggeredAt
			return nil
		}
	}
	return errors.New("template not found")
}

func (f *fakeStore) TouchRecurring(ctx context.Context, id string, triggeredAt time.Time) error {
	for idx := range f.templates {
		if f.templates[idx].ID == id {
			f.templates[idx].LastTriggeredAt = triggeredAt
			return nil
		}
	}
	return errors.New("template not found")
}

func (f *fakeStore) template(id string) core.RecurringTemplate {
	for _, t := range f.templates {
		if t.ID == id {
			return t
		}
	}
	return core.RecurringTemplate{}
}

type recordedEvent struct {
	kind        core.RecurringKind
	recordID    string
	recurringID string
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (f *fakePublisher) PublishOccurrence(ctx context.Context, kind core.RecurringKind, recordID, recurringID string) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, recordedEvent{kind, recordID, recurringID})
	return nil
}

func expenseTemplate(id string, day int) core.RecurringTemplate {
	return core.RecurringTemplate{
		ID:          id,
		Kind:        core.KindExpense,
		DayOfMonth:  day,
		Amount:      core.Money{Cents: 2500},
		AccountID:   "acc1",
		Description: "Streaming subscription",
		Active:      true,
	}
}

func incomeTemplate(id string, day int) core.RecurringTemplate {
	t := expenseTemplate(id, day)
	t.Kind = core.KindIncome
	t.Amount = core.Money{Cents: 250000}
	t.Description = "Salary"
	return t
}

func loanTemplate(id string, day, installments, paid int) core.RecurringTemplate {
	t := expenseTemplate(id, day)
	t.Kind = core.KindInstallment
	t.Amount = core.Money{Cents: 50000}
	t.Description = "Car loan"
	t.Plan = &core.InstallmentPlan{
		TotalAmount:  core.Money{Cents: int64(installments) * 50000},
		Installments: installments,
		Paid:         paid,
	}
	return t
}

var june = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

func TestMaterializerCreatesOnePerKind(t *testing.T) {
	store := newFakeStore(
		expenseTemplate("exp1", 5),
		incomeTemplate("inc1", 1),
		loanTemplate("loan1", 10, 12, 2),
	)
	m := NewMaterializer(store, nil)

	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.ExpensesCreated != 1 || stats.IncomesCreated != 1 || stats.InstallmentsCreated != 1 {
		t.Fatalf("stats = %+v, want one of each", stats)
	}
	if stats.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", stats.Total())
	}
	if len(store.expenses) != 2 {
		t.Fatalf("expected 2 expense records (plain + installment), got %d", len(store.expenses))
	}
	if len(store.incomes) != 1 {
		t.Fatalf("expected 1 income record, got %d", len(store.incomes))
	}
}

func TestMaterializerIdempotentWithinMonth(t *testing.T) {
	store := newFakeStore(
		expenseTemplate("exp1", 5),
		incomeTemplate("inc1", 1),
		loanTemplate("loan1", 10, 12, 0),
	)
	m := NewMaterializer(store, nil)

	if _, err := m.Run(context.Background(), june); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("second pass created %d records, want 0", stats.Total())
	}
	if len(store.expenses) != 2 || len(store.incomes) != 1 {
		t.Fatalf("records doubled: %d expenses, %d incomes", len(store.expenses), len(store.incomes))
	}
	// The loan counter must not advance on the no-op pass.
	if got := store.template("loan1").Plan.Paid; got != 1 {
		t.Fatalf("installments paid = %d after two passes, want 1", got)
	}
}

func TestMaterializerSeparateMonthsAreIndependent(t *testing.T) {
	store := newFakeStore(expenseTemplate("exp1", 15))
	m := NewMaterializer(store, nil)

	if _, err := m.Run(context.Background(), june); err != nil {
		t.Fatalf("june Run: %v", err)
	}
	july := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)
	stats, err := m.Run(context.Background(), july)
	if err != nil {
		t.Fatalf("july Run: %v", err)
	}
	if stats.ExpensesCreated != 1 {
		t.Fatalf("july pass created %d expenses, want 1", stats.ExpensesCreated)
	}
	if len(store.expenses) != 2 {
		t.Fatalf("expected 2 records across months, got %d", len(store.expenses))
	}
	if store.expenses[1].Date.Month() != time.July {
		t.Fatalf("second record dated %v, want July", store.expenses[1].Date)
	}
}

func TestMaterializerDayClamping(t *testing.T) {
	store := newFakeStore(expenseTemplate("exp1", 31))
	m := NewMaterializer(store, nil)

	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if _, err := m.Run(context.Background(), feb); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.expenses) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.expenses))
	}
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !store.expenses[0].Date.Equal(want) {
		t.Fatalf("occurrence date = %v, want %v (clamped)", store.expenses[0].Date, want)
	}
}

func TestMaterializerSkipsFutureStartDate(t *testing.T) {
	tmpl := expenseTemplate("exp1", 5)
	tmpl.StartDate = time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore(tmpl)
	m := NewMaterializer(store, nil)

	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("created %d records before start date, want 0", stats.Total())
	}

	// A start date inside the month does not block generation.
	store.templates[0].StartDate = time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	stats, err = m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.ExpensesCreated != 1 {
		t.Fatalf("created %d, want 1 once start date is within the month", stats.ExpensesCreated)
	}
}

func TestMaterializerSkipsCompletedLoan(t *testing.T) {
	store := newFakeStore(loanTemplate("loan1", 10, 12, 12))
	m := NewMaterializer(store, nil)

	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("created %d records for a completed loan, want 0", stats.Total())
	}
}

func TestMaterializerInstallmentProgression(t *testing.T) {
	store := newFakeStore(loanTemplate("loan1", 10, 12, 10))
	m := NewMaterializer(store, nil)

	if _, err := m.Run(context.Background(), june); err != nil {
		t.Fatalf("june Run: %v", err)
	}
	got := store.template("loan1")
	if got.Plan.Paid != 11 {
		t.Fatalf("paid = %d after june, want 11", got.Plan.Paid)
	}
	if !got.Active {
		t.Fatal("template deactivated with one installment remaining")
	}

	july := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := m.Run(context.Background(), july); err != nil {
		t.Fatalf("july Run: %v", err)
	}
	got = store.template("loan1")
	if got.Plan.Paid != 12 {
		t.Fatalf("paid = %d after july, want 12", got.Plan.Paid)
	}
	if got.Active {
		t.Fatal("template still active after final installment")
	}

	// Nothing in august: deactivated templates are not listed.
	august := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	stats, err := m.Run(context.Background(), august)
	if err != nil {
		t.Fatalf("august Run: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("created %d records after loan completion, want 0", stats.Total())
	}
	if len(store.expenses) != 2 {
		t.Fatalf("expected 2 installment records total, got %d", len(store.expenses))
	}
}

func TestMaterializerRecordFields(t *testing.T) {
	loan := loanTemplate("loan1", 10, 12, 2)
	loan.Amount = core.Money{Cents: 50000}
	store := newFakeStore(loan, incomeTemplate("inc1", 1))
	m := NewMaterializer(store, nil)

	ref := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if _, err := m.Run(context.Background(), ref); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(store.expenses))
	}
	e := store.expenses[0]
	if e.ID == "" {
		t.Error("expense id not assigned")
	}
	if !e.Installment {
		t.Error("loan occurrence not flagged as installment")
	}
	if e.Category != core.DefaultInstallmentCategory {
		t.Errorf("category = %q, want %q", e.Category, core.DefaultInstallmentCategory)
	}
	if e.Amount.Cents != 50000 {
		t.Errorf("amount = %d, want 50000", e.Amount.Cents)
	}
	wantDate := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if !e.Date.Equal(wantDate) {
		t.Errorf("date = %v, want %v", e.Date, wantDate)
	}
	if e.RecurringID != "loan1" {
		t.Errorf("recurring id = %q, want loan1", e.RecurringID)
	}

	if got := store.template("loan1"); !got.LastTriggeredAt.Equal(ref) {
		t.Errorf("lastTriggeredAt = %v, want reference time %v", got.LastTriggeredAt, ref)
	}
	if got := store.template("inc1"); !got.LastTriggeredAt.Equal(ref) {
		t.Errorf("income lastTriggeredAt = %v, want reference time %v", got.LastTriggeredAt, ref)
	}
	if store.incomes[0].Category != core.DefaultIncomeCategory {
		t.Errorf("income category = %q, want %q", store.incomes[0].Category, core.DefaultIncomeCategory)
	}
}

func TestMaterializerTemplateCategoryWins(t *testing.T) {
	tmpl := expenseTemplate("exp1", 5)
	tmpl.Category = "Utilities"
	store := newFakeStore(tmpl)
	m := NewMaterializer(store, nil)

	if _, err := m.Run(context.Background(), june); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := store.expenses[0].Category; got != "Utilities" {
		t.Errorf("category = %q, want template's own category", got)
	}
}

func TestMaterializerErrorIsolation(t *testing.T) {
	store := newFakeStore(
		expenseTemplate("bad", 5),
		expenseTemplate("good", 6),
	)
	store.createExpenseErr["bad"] = errors.New("disk full")
	m := NewMaterializer(store, nil)

	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("Run must not fail on a single template error: %v", err)
	}
	if stats.ExpensesCreated != 1 {
		t.Fatalf("created %d, want 1 surviving record", stats.ExpensesCreated)
	}
	if len(store.expenses) != 1 || store.expenses[0].RecurringID != "good" {
		t.Fatalf("wrong surviving record: %+v", store.expenses)
	}
}

func TestMaterializerCountsRecordWhenProgressUpdateFails(t *testing.T) {
	store := newFakeStore(loanTemplate("loan1", 10, 12, 2))
	store.progressErr["loan1"] = errors.New("locked")
	m := NewMaterializer(store, nil)

	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The record exists even though the counter update failed.
	if stats.InstallmentsCreated != 1 {
		t.Fatalf("installments created = %d, want 1", stats.InstallmentsCreated)
	}
	if len(store.expenses) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.expenses))
	}
}

func TestMaterializerListFailureAborts(t *testing.T) {
	store := newFakeStore(expenseTemplate("exp1", 5))
	store.listErr = errors.New("db closed")
	m := NewMaterializer(store, nil)

	if _, err := m.Run(context.Background(), june); err == nil {
		t.Fatal("expected error when template listing fails")
	}
}

func TestMaterializerPublishesOccurrences(t *testing.T) {
	store := newFakeStore(expenseTemplate("exp1", 5), incomeTemplate("inc1", 1))
	pub := &fakePublisher{}
	m := NewMaterializer(store, pub)

	if _, err := m.Run(context.Background(), june); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	for _, ev := range pub.events {
		if ev.recordID == "" || ev.recurringID == "" {
			t.Errorf("event missing ids: %+v", ev)
		}
	}
}

func TestMaterializerPublishFailureIsNonFatal(t *testing.T) {
	store := newFakeStore(expenseTemplate("exp1", 5))
	pub := &fakePublisher{err: errors.New("broker down")}
	m := NewMaterializer(store, pub)

	stats, err := m.Run(context.Background(), june)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.ExpensesCreated != 1 {
		t.Fatalf("created %d, want 1 despite publish failure", stats.ExpensesCreated)
	}
}
