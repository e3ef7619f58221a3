package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validEvent() Event {
	return Event{
		ID:         "3f2504e0-4f89-41d3-9a0c-0305e82c3301",
		Slug:       "friday-night",
		Name:       "Friday Night",
		StartDate:  "2025-08-15",
		Venue:      "Main St Tavern",
		TemplateID: DefaultTemplateID,
		Links:      BuildLinks("https://brand.example.com", "root", "3f2504e0-4f89-41d3-9a0c-0305e82c3301"),
		QR:         QR{Public: "cG5n", Signup: "cG5n"},
		CTAs:       CTAs{Primary: CTA{Label: "Sign Up"}},
		Settings:   Settings{}.WithDefaults(),
		CreatedAt:  "2025-08-01T12:00:00Z",
		UpdatedAt:  "2025-08-01T12:00:00Z",
	}
}

func fields(fes []FieldError) []string {
	out := make([]string, len(fes))
	for i, fe := range fes {
		out[i] = fe.Field
	}
	return out
}

func TestValidateEventValid(t *testing.T) {
	ev := validEvent()
	assert.Empty(t, ValidateEvent(&ev, ValidateOptions{}))
	assert.Empty(t, ValidateEvent(&ev, ValidateOptions{AllowPartial: true}))
}

func TestValidateEventReportsEveryProblem(t *testing.T) {
	ev := validEvent()
	ev.CTAs.Primary.Label = ""
	ev.Settings.ShowBracket = nil

	got := fields(ValidateEvent(&ev, ValidateOptions{}))
	assert.Contains(t, got, "ctas.primary.label")
	assert.Contains(t, got, "settings.showBracket")
}

func TestValidateEventRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ev *Event)
		partial bool
		want    []string
	}{
		{"missing identity", func(ev *Event) { ev.ID = ""; ev.Slug = "" }, false, []string{"id", "slug"}},
		{"identity skipped when partial", func(ev *Event) { ev.ID = ""; ev.Slug = ""; ev.QR = QR{}; ev.Links = Links{} }, true, nil},
		{"bad slug", func(ev *Event) { ev.Slug = "Friday Night" }, false, []string{"slug"}},
		{"name too long", func(ev *Event) { ev.Name = string(make([]byte, MaxNameLen+1)) + "x" }, false, []string{"name"}},
		{"empty venue full", func(ev *Event) { ev.Venue = " " }, false, []string{"venue"}},
		{"empty venue partial", func(ev *Event) { ev.Venue = "" }, true, nil},
		{"not a date", func(ev *Event) { ev.StartDate = "15/08/2025" }, true, []string{"startDate"}},
		{"impossible date", func(ev *Event) { ev.StartDate = "2025-02-30" }, false, []string{"startDate"}},
		{"missing qr", func(ev *Event) { ev.QR.Public = "" }, false, []string{"qr.public"}},
		{"bad links", func(ev *Event) { ev.Links.Poster = "/root/poster" }, false, []string{"links.poster"}},
		{"bad timestamp", func(ev *Event) { ev.UpdatedAt = "yesterday" }, false, []string{"updatedAt"}},
		{"mandatory toggles", func(ev *Event) { ev.Settings = Settings{} }, true, []string{"settings.showSchedule", "settings.showStandings", "settings.showBracket"}},
		{"cta url", func(ev *Event) { ev.CTAs.Secondary = &CTA{Label: "More", URL: "javascript:alert(1)"} }, true, []string{"ctas.secondary.url"}},
		{"sponsor", func(ev *Event) {
			ev.Sponsors = []Sponsor{{ID: "", Name: "", LogoURL: "", Placement: "sky"}}
		}, true, []string{"sponsors[0].id", "sponsors[0].name", "sponsors[0].logoUrl", "sponsors[0].placement"}},
		{"schedule", func(ev *Event) { ev.Schedule = []ScheduleItem{{Time: "", Title: "x"}} }, true, []string{"schedule[0].time"}},
		{"standings", func(ev *Event) { ev.Standings = []Standing{{Rank: 1}} }, true, []string{"standings[0].team"}},
		{"bracket", func(ev *Event) { ev.Bracket = &Bracket{Rounds: []BracketRound{{}}} }, true, []string{"bracket.rounds[0].name"}},
		{"media", func(ev *Event) { ev.Media = &Media{MapEmbedURL: "maps"} }, true, []string{"media.mapEmbedUrl"}},
		{"external data", func(ev *Event) { ev.ExternalData = &ExternalData{BracketURL: "x"} }, true, []string{"externalData.bracketUrl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			got := fields(ValidateEvent(&ev, ValidateOptions{AllowPartial: tt.partial}))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			for _, f := range tt.want {
				assert.Contains(t, got, f)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.True(t, IsURL("https://example.com/a?b=c"))
	assert.True(t, IsURL("HTTP://example.com"))
	assert.False(t, IsURL("example.com"))
	assert.False(t, IsURL("https://"))
	assert.True(t, IsDate("2024-02-29"))
	assert.False(t, IsDate("2023-02-29"))
	assert.False(t, IsDate("2023-2-9"))
	assert.True(t, IsUUIDv4("3f2504e0-4f89-41d3-9a0c-0305e82c3301"))
	assert.False(t, IsUUIDv4("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
}
