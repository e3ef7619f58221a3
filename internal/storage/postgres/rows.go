package postgres

import (
	"context"
	"fmt"

	"example.com/brandevents/internal/domain"
)

// RowStore keeps each tenant scope as rows ordered by insertion position.
type RowStore struct {
	db *DB
}

func NewRowStore(db *DB) *RowStore { return &RowStore{db: db} }

// ListRows returns every row of the tenant scope in insertion order.
func (s *RowStore) ListRows(ctx context.Context, tenantID, scope string) ([]domain.Row, error) {
	rows, err := s.db.Pool.Query(ctx, `
SELECT id, tenant_id, template_id, data, created_at, slug
FROM event_rows
WHERE tenant_id = $1 AND scope = $2
ORDER BY position ASC`, tenantID, scope)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	var out []domain.Row
	for rows.Next() {
		var r domain.Row
		if err := rows.Scan(&r.ID, &r.TenantID, &r.TemplateID, &r.Data, &r.CreatedAt, &r.Slug); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendRow inserts row at the end of the tenant scope.
func (s *RowStore) AppendRow(ctx context.Context, tenantID, scope string, row domain.Row) error {
	_, err := s.db.Pool.Exec(ctx, `
INSERT INTO event_rows (tenant_id, scope, id, template_id, data, created_at, slug)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tenantID, scope, row.ID, row.TemplateID, row.Data, row.CreatedAt, row.Slug)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

// OverwriteRow replaces the index-th row of the tenant scope in a single
// statement, so readers see either the old or the new row.
func (s *RowStore) OverwriteRow(ctx context.Context, tenantID, scope string, index int, row domain.Row) error {
	ct, err := s.db.Pool.Exec(ctx, `
UPDATE event_rows
SET id = $4, template_id = $5, data = $6, created_at = $7, slug = $8
WHERE position = (
    SELECT position FROM event_rows
    WHERE tenant_id = $1 AND scope = $2
    ORDER BY position ASC
    OFFSET $3 LIMIT 1
)`,
		tenantID, scope, index, row.ID, row.TemplateID, row.Data, row.CreatedAt, row.Slug)
	if err != nil {
		return fmt.Errorf("overwrite row: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("overwrite row: no row at index %d", index)
	}
	return nil
}
