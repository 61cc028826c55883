package sheets

import (
	"context"

	"pennywise/internal/core"
)

// OccurrenceWriter is the outbound port for exporting generated records.
type OccurrenceWriter interface {
	AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	AppendIncome(ctx context.Context, i core.Income) (rowRef string, err error)
}
