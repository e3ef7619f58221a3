package domain

import (
	"encoding/json"
	"strings"
)

// migration upgrades a raw payload from version-1 to version. Each step
// only acts when a legacy key is present, and always removes the legacy
// keys it knows about, so applying it to a canonical payload is a no-op.
type migration struct {
	version int
	name    string
	apply   func(Patch)
}

var migrations = []migration{
	{1, "identity-aliases", migrateIdentityAliases},
	{2, "cta-labels", migrateCTALabels},
	{3, "section-toggles", migrateSectionToggles},
	{4, "flat-media", migrateFlatMedia},
}

// Migrate applies every step newer than from, in order, and returns the
// names of the steps that ran. Write payloads are migrated from 0 so
// legacy field names are accepted on input too.
func Migrate(p Patch, from int) []string {
	var ran []string
	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		m.apply(p)
		ran = append(ran, m.name)
	}
	return ran
}

// migrateIdentityAliases resolves startDate and venue from their legacy
// names. The canonical key wins when it holds a value.
func migrateIdentityAliases(p Patch) {
	adopt(p, "startDate", legacyDate, "dateISO", "legacyDate")
	adopt(p, "venue", nil, "location", "venueName")
}

func adopt(p Patch, canonical string, conv func(json.RawMessage) json.RawMessage, aliases ...string) {
	defer func() {
		for _, a := range aliases {
			delete(p, a)
		}
	}()
	if hasValue(p[canonical]) {
		return
	}
	for _, a := range aliases {
		v, ok := p[a]
		if !ok || !hasValue(v) {
			continue
		}
		if conv != nil {
			v = conv(v)
		}
		p[canonical] = v
		return
	}
}

// legacyDate trims a full ISO timestamp down to its calendar date.
func legacyDate(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	return marshalRaw(s)
}

// migrateCTALabels builds ctas from the legacy ctaLabels list: entry 0
// becomes primary, entry 1 secondary. Entries are either a bare label or
// a {label, url} object.
func migrateCTALabels(p Patch) {
	rawLabels, ok := p["ctaLabels"]
	if !ok {
		return
	}
	delete(p, "ctaLabels")

	var entries []json.RawMessage
	if err := json.Unmarshal(rawLabels, &entries); err != nil || len(entries) == 0 {
		return
	}
	var ctas map[string]json.RawMessage
	if v, ok := p["ctas"]; ok && !isNull(v) {
		_ = json.Unmarshal(v, &ctas)
	}
	if ctas == nil {
		ctas = map[string]json.RawMessage{}
	}
	if _, ok := labelledCTA(ctas["primary"]); !ok {
		if cta, ok := labelledCTA(entries[0]); ok {
			ctas["primary"] = marshalRaw(cta)
		}
	}
	if len(entries) > 1 && !hasValue(ctas["secondary"]) {
		if cta, ok := labelledCTA(entries[1]); ok {
			ctas["secondary"] = marshalRaw(cta)
		}
	}
	if len(ctas) > 0 {
		p["ctas"] = marshalRaw(ctas)
	}
}

func labelledCTA(raw json.RawMessage) (CTA, bool) {
	if !hasValue(raw) {
		return CTA{}, false
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		label = strings.TrimSpace(label)
		return CTA{Label: label}, label != ""
	}
	var cta CTA
	if err := json.Unmarshal(raw, &cta); err != nil {
		return CTA{}, false
	}
	cta.Label = strings.TrimSpace(cta.Label)
	return cta, cta.Label != ""
}

// sectionToggles maps legacy sections.<name> keys onto settings toggles.
var sectionToggles = []struct{ section, setting string }{
	{"schedule", "showSchedule"},
	{"standings", "showStandings"},
	{"bracket", "showBracket"},
	{"sponsors", "showSponsors"},
	{"video", "showVideo"},
	{"map", "showMap"},
	{"gallery", "showGallery"},
}

// migrateSectionToggles fills missing settings toggles from the legacy
// sections object. Toggles already present in settings win.
func migrateSectionToggles(p Patch) {
	rawSections, ok := p["sections"]
	if !ok {
		return
	}
	delete(p, "sections")

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(rawSections, &sections); err != nil || len(sections) == 0 {
		return
	}
	var settings map[string]json.RawMessage
	if v, ok := p["settings"]; ok && !isNull(v) {
		_ = json.Unmarshal(v, &settings)
	}
	if settings == nil {
		settings = map[string]json.RawMessage{}
	}
	changed := false
	for _, t := range sectionToggles {
		if v, ok := settings[t.setting]; ok && !isNull(v) {
			continue
		}
		if enabled, ok := sectionEnabled(sections[t.section]); ok {
			settings[t.setting] = marshalRaw(enabled)
			changed = true
		}
	}
	if changed {
		p["settings"] = marshalRaw(settings)
	}
}

// sectionEnabled accepts either a bare boolean or an {enabled} object.
func sectionEnabled(raw json.RawMessage) (bool, bool) {
	if isNull(raw) {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var obj struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Enabled != nil {
		return *obj.Enabled, true
	}
	return false, false
}

// migrateFlatMedia moves top-level videoUrl and mapEmbedUrl into media.
func migrateFlatMedia(p Patch) {
	flat := map[string]json.RawMessage{}
	for _, k := range []string{"videoUrl", "mapEmbedUrl"} {
		v, ok := p[k]
		if !ok {
			continue
		}
		delete(p, k)
		if hasValue(v) {
			flat[k] = v
		}
	}
	if len(flat) == 0 {
		return
	}
	var media map[string]json.RawMessage
	if v, ok := p["media"]; ok && !isNull(v) {
		_ = json.Unmarshal(v, &media)
	}
	if media == nil {
		media = map[string]json.RawMessage{}
	}
	for k, v := range flat {
		if !hasValue(media[k]) {
			media[k] = v
		}
	}
	p["media"] = marshalRaw(media)
}
