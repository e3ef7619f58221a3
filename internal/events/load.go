package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/hydrate"
)

// Paging limits for ListByTenant.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// GetOptions control GetByID.
type GetOptions struct {
	Scope           string
	HydrateSponsors bool
	// IfNoneMatch is a fingerprint from an earlier read. When it still
	// matches, the event is not hydrated and NotModified is set.
	IfNoneMatch string
	// SkipValidation turns off the warn-only contract check.
	SkipValidation bool
}

// Item is a single loaded event.
type Item struct {
	Event       domain.Event
	Fingerprint string
	NotModified bool
}

// ListOptions control ListByTenant.
type ListOptions struct {
	Scope       string
	Limit       int
	Offset      int
	IfNoneMatch string
}

// Pagination describes a page of a list.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Page is one slice of a tenant's events.
type Page struct {
	Items       []domain.Event `json:"items"`
	Pagination  Pagination     `json:"pagination"`
	Fingerprint string         `json:"-"`
	NotModified bool           `json:"-"`
}

// GetByID loads one event of the tenant scope.
func (s *Service) GetByID(ctx context.Context, tenantID, id string, opts GetOptions) (Item, error) {
	brand, scope, err := s.resolve(ctx, tenantID, opts.Scope)
	if err != nil {
		return Item{}, err
	}
	if id, err = sanitizeID(id); err != nil {
		return Item{}, err
	}
	rows, err := s.listRows(ctx, tenantID, scope)
	if err != nil {
		return Item{}, err
	}
	for _, row := range rows {
		if row.ID != id || row.TenantID != tenantID {
			continue
		}
		ev := s.hydrator.Hydrate(ctx, row, hydrate.Options{BaseURL: brand.BaseURL, HydrateSponsors: opts.HydrateSponsors})
		fp := domain.Fingerprint(itemVariant(brand.BaseURL, opts.HydrateSponsors)+resolvedParts(ev), row)
		if opts.IfNoneMatch != "" && opts.IfNoneMatch == fp {
			return Item{Fingerprint: fp, NotModified: true}, nil
		}
		if !opts.SkipValidation {
			s.warnContract("load", tenantID, scope, &ev)
		}
		return Item{Event: ev, Fingerprint: fp}, nil
	}
	return Item{}, apperr.NotFound(apperr.CodeEventNotFound, "event not found")
}

// ListByTenant returns one page of the tenant scope in store order.
// Sponsor ids are not resolved for list items.
func (s *Service) ListByTenant(ctx context.Context, tenantID string, opts ListOptions) (Page, error) {
	brand, scope, err := s.resolve(ctx, tenantID, opts.Scope)
	if err != nil {
		return Page{}, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	all, err := s.listRows(ctx, tenantID, scope)
	if err != nil {
		return Page{}, err
	}
	rows := all[:0:0]
	for _, r := range all {
		if r.TenantID == tenantID {
			rows = append(rows, r)
		}
	}
	total := len(rows)
	start := min(offset, total)
	end := start + min(limit, total-start)
	slice := rows[start:end]

	items := make([]domain.Event, len(slice))
	hydrateAt := func(ctx context.Context, i int) {
		items[i] = s.hydrator.Hydrate(ctx, slice[i], hydrate.Options{BaseURL: brand.BaseURL})
	}
	if s.pool != nil && len(slice) > 1 {
		if err := s.pool.Map(ctx, len(slice), hydrateAt); err != nil {
			return Page{}, apperr.Internal(apperr.CodeStoreFailure, "could not load events", err)
		}
	} else {
		for i := range slice {
			hydrateAt(ctx, i)
		}
	}
	page := Page{
		Pagination: Pagination{Total: total, Limit: limit, Offset: offset, HasMore: end < total},
		Fingerprint: domain.Fingerprint(
			listVariant(brand.BaseURL, limit, offset, total)+resolvedParts(items...), slice...),
	}
	if opts.IfNoneMatch != "" && opts.IfNoneMatch == page.Fingerprint {
		page.NotModified = true
		return page, nil
	}
	page.Items = items
	return page, nil
}

func itemVariant(baseURL string, sponsors bool) string {
	return fmt.Sprintf("item|%s|%t", baseURL, sponsors)
}

// resolvedParts renders the fields hydration derives from outside the row
// (QR images, sponsor table lookups) so they take part in fingerprints.
func resolvedParts(evs ...domain.Event) string {
	var b strings.Builder
	for _, ev := range evs {
		parts, _ := json.Marshal(struct {
			QR       domain.QR        `json:"qr"`
			Sponsors []domain.Sponsor `json:"sponsors"`
		}{ev.QR, ev.Sponsors})
		b.WriteByte('|')
		b.Write(parts)
	}
	return b.String()
}

func listVariant(baseURL string, limit, offset, total int) string {
	return "list|" + baseURL + "|" + strconv.Itoa(limit) + "|" + strconv.Itoa(offset) + "|" + strconv.Itoa(total)
}
