package hydrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"example.com/brandevents/internal/domain"
)

const base = "https://brand.example.com"

type fakeQR struct {
	err   error
	panic bool
	calls []string
}

func (f *fakeQR) RenderQR(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if f.panic {
		panic("renderer crashed")
	}
	if f.err != nil {
		return "", f.err
	}
	return "png:" + url, nil
}

type fakeSponsors struct {
	known map[string]domain.Sponsor
	err   error
}

func (f fakeSponsors) ResolveSponsors(_ context.Context, _ string, ids []string) (map[string]domain.Sponsor, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]domain.Sponsor{}
	for _, id := range ids {
		if s, ok := f.known[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func row(data string) domain.Row {
	return domain.Row{ID: "e1", TenantID: "root", Data: data, CreatedAt: "2024-03-05T08:00:00Z"}
}

// checkTotal asserts the invariants every hydrated event holds.
func checkTotal(t *testing.T, ev domain.Event) {
	t.Helper()
	assert.NotEmpty(t, ev.ID)
	assert.NotEmpty(t, ev.Slug)
	assert.NotEmpty(t, ev.Name)
	assert.NotEmpty(t, ev.Venue)
	assert.True(t, domain.IsDate(ev.StartDate), ev.StartDate)
	assert.NotEmpty(t, ev.TemplateID)
	assert.NotEmpty(t, ev.CTAs.Primary.Label)
	s := ev.Settings
	for _, b := range []*bool{s.ShowSchedule, s.ShowStandings, s.ShowBracket, s.ShowSponsors, s.ShowVideo, s.ShowMap, s.ShowGallery} {
		require.NotNil(t, b)
	}
	assert.Nil(t, ev.Analytics)
	assert.Nil(t, ev.Payments)
}

func TestHydrateIsTotal(t *testing.T) {
	payloads := []string{
		"",
		"{",
		"null",
		`"a string"`,
		`{"name":""}`,
		`{"name":17,"startDate":"tomorrow","venue":[],"ctas":{"primary":{"label":""}},"settings":{"showSchedule":"yes"}}`,
		`{"ctas":{"primary":{"label":"Go"},"secondary":{"label":""}},"settings":null}`,
		`{"schemaVersion":99,"dateISO":"2020-01-01"}`,
		`{"sections":"all","ctaLabels":"Join","videoUrl":5}`,
	}
	h := New(&fakeQR{}, nil, zap.NewNop())
	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			ev := h.Hydrate(context.Background(), row(p), Options{BaseURL: base})
			checkTotal(t, ev)
			assert.Nil(t, ev.CTAs.Secondary)
		})
	}
}

func TestHydrateDefaults(t *testing.T) {
	h := New(&fakeQR{}, nil, zap.NewNop())
	ev := h.Hydrate(context.Background(), row(`{}`), Options{BaseURL: base})

	assert.Equal(t, domain.DefaultName, ev.Name)
	assert.Equal(t, domain.DefaultVenue, ev.Venue)
	assert.Equal(t, "2024-03-05", ev.StartDate)
	assert.Equal(t, "untitled-event", ev.Slug)
	assert.Equal(t, domain.DefaultTemplateID, ev.TemplateID)
	assert.Equal(t, ev.CreatedAt, ev.UpdatedAt)
	assert.Equal(t, domain.CTA{Label: "Sign Up", URL: base + "/root/signup?id=e1"}, ev.CTAs.Primary)
	assert.False(t, *ev.Settings.ShowBracket)
	assert.True(t, *ev.Settings.ShowGallery)

	r := row(`{}`)
	r.CreatedAt = "garbage"
	assert.Equal(t, domain.DefaultStartDate, h.Hydrate(context.Background(), r, Options{BaseURL: base}).StartDate)
}

func TestHydrateDerivesLinksAndQR(t *testing.T) {
	qr := &fakeQR{}
	h := New(qr, nil, zap.NewNop())
	ev := h.Hydrate(context.Background(), row(`{"name":"Cup","links":{"public":"https://stale.example.com"}}`), Options{BaseURL: base})

	assert.Equal(t, base+"/root/public?id=e1", ev.Links.Public)
	assert.Equal(t, "png:"+ev.Links.Public, ev.QR.Public)
	assert.Equal(t, "png:"+ev.Links.Signup, ev.QR.Signup)
	assert.Equal(t, []string{ev.Links.Public, ev.Links.Signup}, qr.calls)
}

func TestHydrateQRFailuresAreEmpty(t *testing.T) {
	for name, qr := range map[string]*fakeQR{
		"error": {err: errors.New("timeout")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			h := New(qr, nil, zap.New(core))
			ev := h.Hydrate(context.Background(), row(`{"name":"Cup"}`), Options{BaseURL: base})
			assert.Empty(t, ev.QR.Public)
			assert.Empty(t, ev.QR.Signup)
			assert.Equal(t, "Cup", ev.Name)
			assert.NotZero(t, logs.Len())
		})
	}
}

func TestHydrateNoBaseURL(t *testing.T) {
	qr := &fakeQR{}
	ev := New(qr, nil, nil).Hydrate(context.Background(), row(`{}`), Options{})
	assert.Equal(t, domain.Links{}, ev.Links)
	assert.Empty(t, ev.QR.Public)
	assert.Empty(t, qr.calls)
	assert.Equal(t, "Sign Up", ev.CTAs.Primary.Label)
}

func TestHydrateSponsorIDs(t *testing.T) {
	sponsors := fakeSponsors{known: map[string]domain.Sponsor{
		"s1": {ID: "s1", Name: "Acme", LogoURL: "https://cdn.example.com/acme.png"},
	}}
	h := New(&fakeQR{}, sponsors, zap.NewNop())
	data := `{"sponsorIds":"s1, ,ghost"}`

	ev := h.Hydrate(context.Background(), row(data), Options{BaseURL: base, HydrateSponsors: true})
	require.Len(t, ev.Sponsors, 2)
	assert.Equal(t, "Acme", ev.Sponsors[0].Name)
	assert.Equal(t, domain.Sponsor{ID: "ghost", Name: "Sponsor", LogoURL: base + "/static/sponsor-placeholder.png"}, ev.Sponsors[1])

	off := h.Hydrate(context.Background(), row(data), Options{BaseURL: base})
	assert.Nil(t, off.Sponsors)

	broken := New(&fakeQR{}, fakeSponsors{err: errors.New("db down")}, zap.NewNop())
	ev = broken.Hydrate(context.Background(), row(data), Options{BaseURL: base, HydrateSponsors: true})
	require.Len(t, ev.Sponsors, 2)
	assert.Equal(t, "Sponsor", ev.Sponsors[0].Name)

	inline := h.Hydrate(context.Background(), row(`{"sponsors":[{"id":"x","name":"Inline","logoUrl":"https://cdn.example.com/x.png"}],"sponsorIds":"s1"}`), Options{BaseURL: base, HydrateSponsors: true})
	require.Len(t, inline.Sponsors, 1)
	assert.Equal(t, "Inline", inline.Sponsors[0].Name)
}

func TestHydrateLogsPayloadProblems(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := New(nil, nil, zap.New(core))
	h.Hydrate(context.Background(), row(`{"venue":5}`), Options{BaseURL: base})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "e1", logs.All()[0].ContextMap()["event_id"])
}
