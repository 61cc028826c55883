package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pennywise/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a keyed lookup matches no row.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RecurringFilter narrows ListRecurrings. Zero values mean "no filter".
type RecurringFilter struct {
	Kind      core.RecurringKind
	AccountID string
	Active    *bool
}

const recurringColumns = `id, kind, day_of_month, amount_cents, account_id, category,
	description, active, total_cents, installments, installments_paid,
	start_date, last_triggered_at, created_at`

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, t core.RecurringTemplate) error {
	var totalCents, installments, paid sql.NullInt64
	if t.Plan != nil {
		totalCents = sql.NullInt64{Int64: t.Plan.TotalAmount.Cents, Valid: true}
		installments = sql.NullInt64{Int64: int64(t.Plan.Installments), Valid: true}
		paid = sql.NullInt64{Int64: int64(t.Plan.Paid), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurrings (id, kind, day_of_month, amount_cents, account_id,
			category, description, active, total_cents, installments,
			installments_paid, start_date, last_triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Kind), t.DayOfMonth, t.Amount.Cents, t.AccountID,
		t.Category, t.Description, boolToInt(t.Active), totalCents, installments,
		paid, nullTime(t.StartDate), nullTime(t.LastTriggeredAt), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert recurring: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template saved",
		"id", t.ID,
		"kind", string(t.Kind),
		"day_of_month", t.DayOfMonth,
		"amount_cents", t.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) GetRecurring(ctx context.Context, id string) (*core.RecurringTemplate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurrings WHERE id = ?`, id)

	t, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring %s: %w", id, err)
	}
	return t, nil
}

// ListActiveRecurrings returns every template eligible for materialization.
func (r *SQLiteRepository) ListActiveRecurrings(ctx context.Context) ([]core.RecurringTemplate, error) {
	active := true
	return r.ListRecurrings(ctx, RecurringFilter{Active: &active})
}

func (r *SQLiteRepository) ListRecurrings(ctx context.Context, f RecurringFilter) ([]core.RecurringTemplate, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurrings WHERE 1=1`
	var args []any
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, f.AccountID)
	}
	if f.Active != nil {
		query += ` AND active = ?`
		args = append(args, boolToInt(*f.Active))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurrings: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTemplate
	for rows.Next() {
		t, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// UpdateRecurring overwrites every mutable column of an existing template.
// Kind is deliberately absent from the SET list: it is immutable.
func (r *SQLiteRepository) UpdateRecurring(ctx context.Context, t core.RecurringTemplate) error {
	var totalCents, installments, paid sql.NullInt64
	if t.Plan != nil {
		totalCents = sql.NullInt64{Int64: t.Plan.TotalAmount.Cents, Valid: true}
		installments = sql.NullInt64{Int64: int64(t.Plan.Installments), Valid: true}
		paid = sql.NullInt64{Int64: int64(t.Plan.Paid), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE recurrings
		SET day_of_month = ?, amount_cents = ?, account_id = ?, category = ?,
			description = ?, active = ?, total_cents = ?, installments = ?,
			installments_paid = ?, start_date = ?, last_triggered_at = ?
		WHERE id = ?`,
		t.DayOfMonth, t.Amount.Cents, t.AccountID, t.Category, t.Description,
		boolToInt(t.Active), totalCents, installments, paid,
		nullTime(t.StartDate), nullTime(t.LastTriggeredAt), t.ID)
	if err != nil {
		return fmt.Errorf("update recurring %s: %w", t.ID, err)
	}
	return requireRow(res, t.ID)
}

// SaveRecurringProgress records the result of one installment materialization:
// the new paid count, the possibly-toggled active flag, and the trigger time.
func (r *SQLiteRepository) SaveRecurringProgress(ctx context.Context, id string, paid int, active bool, triggeredAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurrings
		SET installments_paid = ?, active = ?, last_triggered_at = ?
		WHERE id = ?`,
		paid, boolToInt(active), triggeredAt, id)
	if err != nil {
		return fmt.Errorf("save recurring progress %s: %w", id, err)
	}
	return requireRow(res, id)
}

// TouchRecurring stamps last_triggered_at after a non-installment
// materialization.
func (r *SQLiteRepository) TouchRecurring(ctx context.Context, id string, triggeredAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurrings SET last_triggered_at = ? WHERE id = ?`, triggeredAt, id)
	if err != nil {
		return fmt.Errorf("touch recurring %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurrings SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set recurring active %s: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteRecurringCascade removes a template together with every generated
// record that references it, in one transaction.
func (r *SQLiteRepository) DeleteRecurringCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cascade delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE recurring_id = ?`, id); err != nil {
		return fmt.Errorf("delete generated expenses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM incomes WHERE recurring_id = ?`, id); err != nil {
		return fmt.Errorf("delete generated incomes: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM recurrings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cascade delete: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template deleted with generated records", "id", id)
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, account_id, amount_cents, category, description,
			date, recurring_id, installment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.Amount.Cents, e.Category, e.Description,
		e.Date, e.RecurringID, boolToInt(e.Installment), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, i core.Income) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO incomes (id, account_id, amount_cents, category, description,
			date, recurring_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.AccountID, i.Amount.Cents, i.Category, i.Description,
		i.Date, i.RecurringID, i.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

// CountOccurrences counts generated records of the given kind that link back
// to recurringID and fall inside the calendar month. Income templates are
// checked against incomes; expense and installment templates against expenses.
func (r *SQLiteRepository) CountOccurrences(ctx context.Context, kind core.RecurringKind, recurringID string, year int, month time.Month) (int, error) {
	table := "expenses"
	if kind == core.KindIncome {
		table = "incomes"
	}
	start, end := core.MonthBounds(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))

	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE recurring_id = ? AND date >= ? AND date <= ?`,
		recurringID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count occurrences: %w", err)
	}
	return n, nil
}

// ExpenseFilter narrows ListExpenses. Year/Month of zero mean "all months";
// RecurringOnly and DirectOnly are mutually exclusive views.
type ExpenseFilter struct {
	Year          int
	Month         time.Month
	RecurringID   string
	RecurringOnly bool
	DirectOnly    bool
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT id, account_id, amount_cents, category, description, date,
		recurring_id, installment, created_at FROM expenses WHERE 1=1`
	args := recordFilterArgs(&query, f.Year, f.Month, f.RecurringID, f.RecurringOnly, f.DirectOnly)
	query += ` ORDER BY date DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var e core.Expense
		var installment int
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount.Cents, &e.Category,
			&e.Description, &e.Date, &e.RecurringID, &installment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Installment = installment != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// IncomeFilter mirrors ExpenseFilter for the incomes table.
type IncomeFilter struct {
	Year          int
	Month         time.Month
	RecurringID   string
	RecurringOnly bool
	DirectOnly    bool
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, f IncomeFilter) ([]core.Income, error) {
	query := `SELECT id, account_id, amount_cents, category, description, date,
		recurring_id, created_at FROM incomes WHERE 1=1`
	args := recordFilterArgs(&query, f.Year, f.Month, f.RecurringID, f.RecurringOnly, f.DirectOnly)
	query += ` ORDER BY date DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		var i core.Income
		if err := rows.Scan(&i.ID, &i.AccountID, &i.Amount.Cents, &i.Category,
			&i.Description, &i.Date, &i.RecurringID, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// GetExpense retrieves a single expense by id, for the export worker.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, account_id, amount_cents, category,
		description, date, recurring_id, installment, created_at
		FROM expenses WHERE id = ?`, id)

	var e core.Expense
	var installment int
	err := row.Scan(&e.ID, &e.AccountID, &e.Amount.Cents, &e.Category,
		&e.Description, &e.Date, &e.RecurringID, &installment, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %s: %w", id, err)
	}
	e.Installment = installment != 0
	return &e, nil
}

// GetIncome retrieves a single income by id, for the export worker.
func (r *SQLiteRepository) GetIncome(ctx context.Context, id string) (*core.Income, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, account_id, amount_cents, category,
		description, date, recurring_id, created_at
		FROM incomes WHERE id = ?`, id)

	var i core.Income
	err := row.Scan(&i.ID, &i.AccountID, &i.Amount.Cents, &i.Category,
		&i.Description, &i.Date, &i.RecurringID, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get income %s: %w", id, err)
	}
	return &i, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecurring(row rowScanner) (*core.RecurringTemplate, error) {
	var (
		t            core.RecurringTemplate
		kind         string
		active       int
		totalCents   sql.NullInt64
		installments sql.NullInt64
		paid         sql.NullInt64
		startDate    sql.NullTime
		triggeredAt  sql.NullTime
	)
	err := row.Scan(&t.ID, &kind, &t.DayOfMonth, &t.Amount.Cents, &t.AccountID,
		&t.Category, &t.Description, &active, &totalCents, &installments,
		&paid, &startDate, &triggeredAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}

	t.Kind = core.RecurringKind(kind)
	t.Active = active != 0
	if startDate.Valid {
		t.StartDate = startDate.Time
	}
	if triggeredAt.Valid {
		t.LastTriggeredAt = triggeredAt.Time
	}
	if t.Kind == core.KindInstallment && installments.Valid {
		t.Plan = &core.InstallmentPlan{
			TotalAmount:  core.Money{Cents: totalCents.Int64},
			Installments: int(installments.Int64),
			Paid:         int(paid.Int64),
		}
	}
	return &t, nil
}

func recordFilterArgs(query *string, year int, month time.Month, recurringID string, recurringOnly, directOnly bool) []any {
	var args []any
	if year != 0 && month != 0 {
		start, end := core.MonthBounds(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
		*query += ` AND date >= ? AND date <= ?`
		args = append(args, start, end)
	}
	if recurringID != "" {
		*query += ` AND recurring_id = ?`
		args = append(args, recurringID)
	}
	if recurringOnly {
		*query += ` AND recurring_id != ''`
	}
	if directOnly {
		*query += ` AND recurring_id = ''`
	}
	return args
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recurring %s: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
