package worker

import (
	"context"
	"fmt"
	"log/slog"

	"pennywise/internal/amqp"
	"pennywise/internal/core"
	"pennywise/internal/sheets"
	"pennywise/internal/storage"
)

// ExportWorker turns occurrence messages into spreadsheet rows. The message
// carries only ids; the worker loads the full record from the local store so
// the export always reflects what was actually persisted.
type ExportWorker struct {
	storage *storage.SQLiteRepository
	writer  sheets.OccurrenceWriter
}

func NewExportWorker(storage *storage.SQLiteRepository, writer sheets.OccurrenceWriter) *ExportWorker {
	return &ExportWorker{storage: storage, writer: writer}
}

// HandleOccurrence processes a single occurrence message.
func (w *ExportWorker) HandleOccurrence(ctx context.Context, msg *amqp.OccurrenceMessage) error {
	slog.InfoContext(ctx, "Processing occurrence message",
		"record_id", msg.RecordID,
		"kind", string(msg.Kind))

	if w.writer == nil {
		slog.WarnContext(ctx, "No occurrence writer configured, skipping export",
			"record_id", msg.RecordID)
		return nil
	}

	var (
		ref string
		err error
	)
	if msg.Kind == core.KindIncome {
		var income *core.Income
		income, err = w.storage.GetIncome(ctx, msg.RecordID)
		if err != nil {
			return fmt.Errorf("get income from storage: %w", err)
		}
		ref, err = w.writer.AppendIncome(ctx, *income)
	} else {
		var expense *core.Expense
		expense, err = w.storage.GetExpense(ctx, msg.RecordID)
		if err != nil {
			return fmt.Errorf("get expense from storage: %w", err)
		}
		ref, err = w.writer.AppendExpense(ctx, *expense)
	}
	if err != nil {
		return fmt.Errorf("export occurrence %s: %w", msg.RecordID, err)
	}

	slog.InfoContext(ctx, "Occurrence exported",
		"record_id", msg.RecordID,
		"kind", string(msg.Kind),
		"row_ref", ref)
	return nil
}
