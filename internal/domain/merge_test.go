package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func richEvent() Event {
	ev := validEvent()
	ev.Schedule = []ScheduleItem{{Time: "18:00", Title: "Opening"}}
	ev.Standings = []Standing{{Rank: 1, Team: "Otters", Wins: 2}}
	ev.Sponsors = []Sponsor{{ID: "s1", Name: "Acme", LogoURL: "https://cdn.example.com/a.png"}}
	ev.Media = &Media{VideoURL: "https://v.example.com"}
	ev.Settings = Settings{ShowSchedule: Bool(true)}.WithDefaults()
	return ev
}

func TestMergeUpdatePreservesUntouchedFields(t *testing.T) {
	existing := richEvent()
	got, err := MergeUpdate(existing, mustPatch(t, `{"name":"X"}`))
	require.NoError(t, err)

	want := richEvent()
	want.Name = "X"
	assert.Equal(t, want, got)
	assert.Equal(t, "Friday Night", existing.Name)
}

func TestMergeUpdateNullOverwrites(t *testing.T) {
	got, err := MergeUpdate(richEvent(), mustPatch(t, `{"media":null,"sponsors":null}`))
	require.NoError(t, err)
	assert.Nil(t, got.Media)
	assert.Nil(t, got.Sponsors)
	assert.NotNil(t, got.Schedule)
}

func TestMergeUpdateSettingsOverlay(t *testing.T) {
	existing := richEvent()
	got, err := MergeUpdate(existing, mustPatch(t, `{"settings":{"showVideo":false}}`))
	require.NoError(t, err)
	assert.False(t, *got.Settings.ShowVideo)
	assert.True(t, *got.Settings.ShowSchedule)
	assert.True(t, *existing.Settings.ShowVideo)
}

func TestMergeUpdateLegacyNames(t *testing.T) {
	got, err := MergeUpdate(richEvent(), mustPatch(t, `{"location":"Annex"}`))
	require.NoError(t, err)
	assert.Equal(t, "Annex", got.Venue)
}

func TestMergeUpdateIgnoresDerivedFields(t *testing.T) {
	existing := richEvent()
	got, err := MergeUpdate(existing, mustPatch(t, `{"id":"other","links":{"public":"x"},"createdAt":"never"}`))
	require.NoError(t, err)
	assert.Equal(t, existing, got)
}

func TestMergeUpdateRejectsUnknownKeys(t *testing.T) {
	_, err := MergeUpdate(richEvent(), mustPatch(t, `{"colour":"red"}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []FieldError{{"colour", "unknown field"}}, ve.Violations)
}

func TestPatchFromEventRoundTrip(t *testing.T) {
	ev := richEvent()
	var p Payload
	fes := ApplyPatch(&p, PatchFromEvent(ev), PatchOptions{Validate: true, Strict: true})
	assert.Empty(t, fes)
	assert.Equal(t, ev.Name, p.Name)
	assert.Equal(t, ev.Sponsors, p.Sponsors)
	assert.Equal(t, ev.Settings, *p.Settings)
}
