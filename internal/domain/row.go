package domain

import "fmt"

// RowWidth is the number of positional columns in a stored row.
const RowWidth = 6

// Row is the fixed positional record owned by the tabular store:
// [id, tenantId, templateId, dataPayload, createdAt, slug].
type Row struct {
	ID         string
	TenantID   string
	TemplateID string
	Data       string
	CreatedAt  string
	Slug       string
}

// Values returns the row in column order.
func (r Row) Values() []string {
	return []string{r.ID, r.TenantID, r.TemplateID, r.Data, r.CreatedAt, r.Slug}
}

// RowFromValues rebuilds a Row from its columns.
func RowFromValues(vals []string) (Row, error) {
	if len(vals) != RowWidth {
		return Row{}, fmt.Errorf("row has %d columns, want %d", len(vals), RowWidth)
	}
	return Row{
		ID:         vals[0],
		TenantID:   vals[1],
		TemplateID: vals[2],
		Data:       vals[3],
		CreatedAt:  vals[4],
		Slug:       vals[5],
	}, nil
}
