package postgres

import (
	"context"
	"fmt"

	"example.com/brandevents/internal/diagnostics"
)

// QueryTotals counts a tenant's diagnostics between from and to, inclusive.
func (w *DiagnosticsWriter) QueryTotals(ctx context.Context, tenantID string, from, to int64) (diagnostics.Totals, error) {
	var res diagnostics.Totals
	row := w.db.Pool.QueryRow(ctx, `
SELECT COUNT(*)::bigint, COUNT(DISTINCT event_id)::bigint
FROM contract_diagnostics
WHERE tenant_id = $1 AND ts_epoch >= $2 AND ts_epoch <= $3`, tenantID, from, to)
	if err := row.Scan(&res.Count, &res.UniqueEvents); err != nil {
		return res, fmt.Errorf("scan totals: %w", err)
	}
	return res, nil
}

// QueryBucketsDaily groups a tenant's diagnostics by UTC day.
func (w *DiagnosticsWriter) QueryBucketsDaily(ctx context.Context, tenantID string, from, to int64) ([]diagnostics.Bucket, error) {
	rows, err := w.db.Pool.Query(ctx, `
SELECT
  EXTRACT(EPOCH FROM date_trunc('day', to_timestamp(ts_epoch) AT TIME ZONE 'UTC'))::bigint AS bucket_start,
  COUNT(*)::bigint AS cnt,
  COUNT(DISTINCT event_id)::bigint AS uniq
FROM contract_diagnostics
WHERE tenant_id = $1 AND ts_epoch >= $2 AND ts_epoch <= $3
GROUP BY 1
ORDER BY 1 ASC`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []diagnostics.Bucket
	for rows.Next() {
		var b diagnostics.Bucket
		if err := rows.Scan(&b.BucketStart, &b.Count, &b.UniqueEvents); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
