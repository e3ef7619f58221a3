package domain

import "encoding/json"

// MergeUpdate overlays the keys present in patch onto existing and returns
// the result. Absent keys are left alone; a key set to null clears the
// field. Settings are overlaid toggle by toggle, every other key replaces
// the field as a whole. Legacy field names are accepted. existing is not
// modified. A *ValidationError is returned when a value cannot be decoded
// or a key is unknown.
func MergeUpdate(existing Event, patch Patch) (Event, error) {
	if len(patch) == 0 {
		return existing, nil
	}
	p := patch.Clone()
	Migrate(p, 0)

	base := payloadFromEvent(existing)
	if fes := ApplyPatch(&base, p, PatchOptions{Strict: true}); len(fes) > 0 {
		return existing, &ValidationError{Violations: fes}
	}

	out := existing
	out.Name = base.Name
	out.StartDate = base.StartDate
	out.Venue = base.Venue
	out.Schedule = base.Schedule
	out.Standings = base.Standings
	out.Bracket = base.Bracket
	out.Sponsors = base.Sponsors
	out.Media = base.Media
	out.ExternalData = base.ExternalData
	if base.CTAs != nil {
		out.CTAs = *base.CTAs
	} else {
		out.CTAs = CTAs{}
	}
	if base.Settings != nil {
		out.Settings = *base.Settings
	} else {
		out.Settings = Settings{}
	}
	return out, nil
}

func payloadFromEvent(ev Event) Payload {
	ctas := ev.CTAs
	settings := ev.Settings
	return Payload{
		Name:         ev.Name,
		StartDate:    ev.StartDate,
		Venue:        ev.Venue,
		Schedule:     ev.Schedule,
		Standings:    ev.Standings,
		Bracket:      ev.Bracket,
		CTAs:         &ctas,
		Sponsors:     ev.Sponsors,
		Media:        ev.Media,
		ExternalData: ev.ExternalData,
		Settings:     &settings,
		UpdatedAt:    ev.UpdatedAt,
	}
}

// PatchFromEvent turns a full canonical event into a write payload holding
// every stored field. Derived and positional fields are left out.
func PatchFromEvent(ev Event) Patch {
	return Patch{
		"name":         marshalRaw(ev.Name),
		"startDate":    marshalRaw(ev.StartDate),
		"venue":        marshalRaw(ev.Venue),
		"schedule":     marshalRaw(ev.Schedule),
		"standings":    marshalRaw(ev.Standings),
		"bracket":      marshalRaw(ev.Bracket),
		"ctas":         marshalRaw(ev.CTAs),
		"sponsors":     marshalRaw(ev.Sponsors),
		"media":        marshalRaw(ev.Media),
		"externalData": marshalRaw(ev.ExternalData),
		"settings":     marshalRaw(ev.Settings),
	}
}

// PatchFromJSON decodes a JSON object into a Patch.
func PatchFromJSON(b []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Patch{}
	}
	return p, nil
}
