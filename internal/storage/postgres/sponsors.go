package postgres

import (
	"context"
	"fmt"

	"example.com/brandevents/internal/domain"
)

// SponsorStore is the tenant sponsor table.
type SponsorStore struct {
	db *DB
}

func NewSponsorStore(db *DB) *SponsorStore { return &SponsorStore{db: db} }

// PutSponsor upserts sp for tenantID.
func (s *SponsorStore) PutSponsor(ctx context.Context, tenantID string, sp domain.Sponsor) error {
	_, err := s.db.Pool.Exec(ctx, `
INSERT INTO sponsors (tenant_id, id, name, logo_url, link_url, placement)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
ON CONFLICT (tenant_id, id) DO UPDATE
SET name = EXCLUDED.name, logo_url = EXCLUDED.logo_url,
    link_url = EXCLUDED.link_url, placement = EXCLUDED.placement`,
		tenantID, sp.ID, sp.Name, sp.LogoURL, sp.LinkURL, string(sp.Placement))
	if err != nil {
		return fmt.Errorf("put sponsor: %w", err)
	}
	return nil
}

// ResolveSponsors returns the known sponsors among ids.
func (s *SponsorStore) ResolveSponsors(ctx context.Context, tenantID string, ids []string) (map[string]domain.Sponsor, error) {
	out := make(map[string]domain.Sponsor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.Pool.Query(ctx, `
SELECT id, name, logo_url, COALESCE(link_url, ''), COALESCE(placement, '')
FROM sponsors
WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve sponsors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sp domain.Sponsor
		var placement string
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.LogoURL, &sp.LinkURL, &placement); err != nil {
			return nil, fmt.Errorf("scan sponsor: %w", err)
		}
		sp.Placement = domain.Placement(placement)
		out[sp.ID] = sp
	}
	return out, rows.Err()
}
