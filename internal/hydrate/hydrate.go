// Package hydrate turns stored rows into canonical events.
//
// Hydration is total: whatever the row holds, the result satisfies the
// identity, CTA and settings invariants. Problems are logged, never
// returned.
package hydrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/brandevents/internal/domain"
)

// Renderer renders a URL as a base64 PNG QR code. It is network bound and
// always fallible.
type Renderer interface {
	RenderQR(ctx context.Context, url string) (string, error)
}

// SponsorResolver looks sponsors up in the tenant's sponsor table. Ids
// that are not found are simply missing from the result.
type SponsorResolver interface {
	ResolveSponsors(ctx context.Context, tenantID string, ids []string) (map[string]domain.Sponsor, error)
}

// Options control a single hydration.
type Options struct {
	BaseURL         string
	HydrateSponsors bool
}

// Hydrator converts rows to events. QR and Sponsors may be nil: QR fields
// then stay empty and legacy sponsor ids resolve to placeholders.
type Hydrator struct {
	QR       Renderer
	Sponsors SponsorResolver
	Logger   *zap.Logger
}

// New creates a Hydrator.
func New(qr Renderer, sponsors SponsorResolver, logger *zap.Logger) *Hydrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hydrator{QR: qr, Sponsors: sponsors, Logger: logger}
}

func (h *Hydrator) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// Hydrate builds the canonical event for row.
func (h *Hydrator) Hydrate(ctx context.Context, row domain.Row, opts Options) domain.Event {
	payload, problems := domain.ParsePayload(row.Data)
	if len(problems) > 0 {
		h.log().Warn("payload problems during hydration",
			zap.String("tenant_id", row.TenantID),
			zap.String("event_id", row.ID),
			zap.Strings("problems", domain.Messages(problems)),
		)
	}

	ev := domain.Event{
		ID:           strings.TrimSpace(row.ID),
		TemplateID:   strings.TrimSpace(row.TemplateID),
		Name:         payload.Name,
		StartDate:    payload.StartDate,
		Venue:        payload.Venue,
		Schedule:     payload.Schedule,
		Standings:    payload.Standings,
		Bracket:      payload.Bracket,
		Sponsors:     payload.Sponsors,
		Media:        payload.Media,
		ExternalData: payload.ExternalData,
		CreatedAt:    strings.TrimSpace(row.CreatedAt),
		UpdatedAt:    payload.UpdatedAt,
	}
	if ev.TemplateID == "" {
		ev.TemplateID = domain.DefaultTemplateID
	}
	if ev.Name == "" {
		ev.Name = domain.DefaultName
	}
	if ev.Venue == "" {
		ev.Venue = domain.DefaultVenue
	}
	if !domain.IsDate(ev.StartDate) {
		ev.StartDate = fallbackDate(ev.CreatedAt)
	}
	ev.Slug = strings.TrimSpace(row.Slug)
	if ev.Slug == "" {
		ev.Slug = domain.NormalizeSlug(ev.Name)
	}
	if ev.Slug == "" {
		ev.Slug = domain.NormalizeSlug(ev.ID)
	}
	if ev.UpdatedAt == "" {
		ev.UpdatedAt = ev.CreatedAt
	}

	ev.Links = domain.BuildLinks(opts.BaseURL, row.TenantID, ev.ID)
	ev.CTAs = defaultCTAs(payload.CTAs, ev.Links)
	if payload.Settings != nil {
		ev.Settings = payload.Settings.WithDefaults()
	} else {
		ev.Settings = domain.Settings{}.WithDefaults()
	}

	if opts.HydrateSponsors && len(ev.Sponsors) == 0 && strings.TrimSpace(payload.SponsorIDs) != "" {
		ev.Sponsors = h.resolveSponsors(ctx, row.TenantID, payload.SponsorIDs, opts.BaseURL)
	}

	ev.QR = domain.QR{
		Public: h.render(ctx, ev.ID, ev.Links.Public),
		Signup: h.render(ctx, ev.ID, ev.Links.Signup),
	}
	return ev
}

func defaultCTAs(stored *domain.CTAs, links domain.Links) domain.CTAs {
	var c domain.CTAs
	if stored != nil {
		c = *stored
	}
	if strings.TrimSpace(c.Primary.Label) == "" {
		c.Primary.Label = domain.DefaultCTALabel
	}
	if c.Primary.URL == "" {
		c.Primary.URL = links.Signup
	}
	if c.Secondary != nil && strings.TrimSpace(c.Secondary.Label) == "" {
		c.Secondary = nil
	}
	return c
}

// fallbackDate uses the creation date when the payload has no usable
// start date.
func fallbackDate(createdAt string) string {
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		return t.UTC().Format(domain.DateLayout)
	}
	return domain.DefaultStartDate
}

// resolveSponsors expands the legacy comma-joined sponsor id list. Unknown
// ids become placeholders so the sponsor count stays stable on screen.
func (h *Hydrator) resolveSponsors(ctx context.Context, tenantID, joined, baseURL string) []domain.Sponsor {
	var ids []string
	for _, id := range strings.Split(joined, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	var found map[string]domain.Sponsor
	if h.Sponsors != nil {
		var err error
		found, err = h.Sponsors.ResolveSponsors(ctx, tenantID, ids)
		if err != nil {
			h.log().Warn("sponsor lookup failed, using placeholders",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
			found = nil
		}
	}

	out := make([]domain.Sponsor, 0, len(ids))
	for _, id := range ids {
		if s, ok := found[id]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, domain.Sponsor{
			ID:      id,
			Name:    domain.PlaceholderSponsor,
			LogoURL: domain.PlaceholderLogoURL(baseURL),
		})
	}
	return out
}

// render returns "" on any renderer failure, including a panic.
func (h *Hydrator) render(ctx context.Context, eventID, url string) (png string) {
	if h.QR == nil || url == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			h.log().Error("qr renderer panicked",
				zap.String("event_id", eventID),
				zap.String("panic", fmt.Sprint(r)),
			)
			png = ""
		}
	}()
	png, err := h.QR.RenderQR(ctx, url)
	if err != nil {
		h.log().Warn("qr rendering failed",
			zap.String("event_id", eventID),
			zap.String("url", url),
			zap.Error(err),
		)
		return ""
	}
	return png
}
