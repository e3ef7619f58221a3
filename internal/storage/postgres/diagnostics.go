package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"example.com/brandevents/internal/diagnostics"
)

// DiagnosticsWriter is the batched diagnostics sink.
type DiagnosticsWriter struct {
	db *DB
}

func NewDiagnosticsWriter(db *DB) *DiagnosticsWriter { return &DiagnosticsWriter{db: db} }

// InsertBatch writes items in one multi-row INSERT.
func (w *DiagnosticsWriter) InsertBatch(ctx context.Context, items []diagnostics.Record) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	cols := []string{"tenant_id", "scope", "event_id", "stage", "violations", "ts_epoch"}
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*len(cols))

	argi := 1
	for _, rec := range items {
		ph := make([]string, 0, len(cols))
		for _, v := range []any{rec.TenantID, rec.Scope, rec.EventID, rec.Stage} {
			args = append(args, v)
			ph = append(ph, fmt.Sprintf("$%d", argi))
			argi++
		}

		// violations JSONB (nil or JSON string)
		if len(rec.Violations) == 0 {
			args = append(args, nil)
		} else {
			b, _ := json.Marshal(rec.Violations)
			args = append(args, string(b))
		}
		ph = append(ph, fmt.Sprintf("$%d::jsonb", argi))
		argi++

		args = append(args, rec.At)
		ph = append(ph, fmt.Sprintf("$%d", argi))
		argi++

		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
	}

	sql := "INSERT INTO contract_diagnostics (" + strings.Join(cols, ",") + ") VALUES " +
		strings.Join(placeholders, ",")

	ct, err := w.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
