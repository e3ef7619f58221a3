package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/brandevents/internal/apperr"
)

func TestUpdateChangesOnlyTouchedFields(t *testing.T) {
	h := newHarness(t)
	before := create(t, h, richPayload)
	h.clock.Advance(time.Minute)

	after, err := h.svc.Update(context.Background(), "root", before.ID, patch(t, `{"name":"X"}`), UpdateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "X", after.Name)
	assert.NotEqual(t, before.UpdatedAt, after.UpdatedAt)

	expected := before
	expected.Name = "X"
	expected.UpdatedAt = after.UpdatedAt
	assert.Equal(t, expected, after)
}

func TestUpdateNullClearsField(t *testing.T) {
	h := newHarness(t)
	before := create(t, h, richPayload)

	after, err := h.svc.Update(context.Background(), "root", before.ID, patch(t, `{"media":null,"schedule":null}`), UpdateOptions{})
	require.NoError(t, err)
	assert.Nil(t, after.Media)
	assert.Nil(t, after.Schedule)
	assert.Equal(t, before.Standings, after.Standings)
}

func TestUpdateSingleToggle(t *testing.T) {
	h := newHarness(t)
	before := create(t, h, richPayload)

	after, err := h.svc.Update(context.Background(), "root", before.ID, patch(t, `{"settings":{"showBracket":true}}`), UpdateOptions{})
	require.NoError(t, err)
	assert.True(t, *after.Settings.ShowBracket)
	assert.True(t, *after.Settings.ShowSchedule)
	assert.False(t, *after.Settings.ShowGallery)
}

func TestUpdateRejections(t *testing.T) {
	h := newHarness(t)
	ev := create(t, h, fridayNight)

	_, err := h.svc.Update(context.Background(), "root", ev.ID, patch(t, `{"venue":""}`), UpdateOptions{})
	e := requireKind(t, err, apperr.KindBadInput, apperr.CodeValidationFailed)
	assert.True(t, hasField(e.FieldErrors, "venue"))

	_, err = h.svc.Update(context.Background(), "root", ev.ID, patch(t, `{"mystery":1}`), UpdateOptions{})
	e = requireKind(t, err, apperr.KindBadInput, apperr.CodeValidationFailed)
	assert.True(t, hasField(e.FieldErrors, "mystery"))

	_, err = h.svc.Update(context.Background(), "root", "nope", patch(t, `{"name":"X"}`), UpdateOptions{})
	requireKind(t, err, apperr.KindNotFound, apperr.CodeEventNotFound)

	item, err := h.svc.GetByID(context.Background(), "root", ev.ID, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, ev, item.Event)
}

func TestUpdateDoesNotOverwriteConcurrentChanges(t *testing.T) {
	h := newHarness(t)
	ev := create(t, h, fridayNight)

	// A second writer changes venue between another caller's read and save.
	_, err := h.svc.Save(context.Background(), "root", ev.ID, patch(t, `{"venue":"Back Room"}`), SaveOptions{Mode: ModeUpdate})
	require.NoError(t, err)

	after, err := h.svc.Update(context.Background(), "root", ev.ID, patch(t, `{"name":"Late Show"}`), UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Late Show", after.Name)
	assert.Equal(t, "Back Room", after.Venue)
}
