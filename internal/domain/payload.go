package domain

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Payload is the strict schema of a row's dataPayload column. Everything
// that is not a positional column lives here.
type Payload struct {
	SchemaVersion int            `json:"schemaVersion"`
	Name          string         `json:"name"`
	StartDate     string         `json:"startDate"`
	Venue         string         `json:"venue"`
	Schedule      []ScheduleItem `json:"schedule"`
	Standings     []Standing     `json:"standings"`
	Bracket       *Bracket       `json:"bracket"`
	CTAs          *CTAs          `json:"ctas"`
	Sponsors      []Sponsor      `json:"sponsors"`
	SponsorIDs    string         `json:"sponsorIds,omitempty"`
	Media         *Media         `json:"media"`
	ExternalData  *ExternalData  `json:"externalData"`
	Settings      *Settings      `json:"settings"`
	UpdatedAt     string         `json:"updatedAt,omitempty"`
}

// Patch is a loosely typed write payload. A key mapped to JSON null is an
// explicit overwrite; an absent key leaves the field untouched.
type Patch map[string]json.RawMessage

// PatchOptions control ApplyPatch.
type PatchOptions struct {
	// Validate checks every touched field as it is applied.
	Validate bool
	// Strict rejects unknown keys, both top-level and inside closed
	// sub-objects. Hydration runs non-strict and drops them instead.
	Strict bool
}

// readOnlyKeys are derived or positional fields. They are accepted in a
// patch and ignored.
var readOnlyKeys = map[string]bool{
	"id":            true,
	"slug":          true,
	"templateId":    true,
	"links":         true,
	"qr":            true,
	"createdAt":     true,
	"updatedAt":     true,
	"analytics":     true,
	"payments":      true,
	"schemaVersion": true,
}

// Clone returns a shallow copy of p.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns the string value of key. ok is false when the key is
// absent, null or not a string.
func (p Patch) String(key string) (string, bool) {
	raw, present := p[key]
	if !present || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Has reports whether key is present, including explicit nulls.
func (p Patch) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// SchemaVersion returns the stored schemaVersion, or 0 when absent.
func (p Patch) SchemaVersion() int {
	raw, ok := p["schemaVersion"]
	if !ok {
		return 0
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	return v
}

// ParsePayload decodes a stored payload, applying legacy migrations. It
// never fails: unparseable input yields an empty Payload, and malformed
// keys are skipped. Every problem found is returned for diagnostics.
func ParsePayload(data string) (Payload, []FieldError) {
	p := Payload{SchemaVersion: CurrentSchemaVersion}
	raw := Patch{}
	if strings.TrimSpace(data) != "" {
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return p, []FieldError{{"payload", "unparseable: " + err.Error()}}
		}
		if raw == nil {
			raw = Patch{}
		}
	}
	Migrate(raw, raw.SchemaVersion())
	if v, ok := raw.String("updatedAt"); ok {
		p.UpdatedAt = v
	}
	problems := ApplyPatch(&p, raw, PatchOptions{})
	p.SchemaVersion = CurrentSchemaVersion
	return p, problems
}

// Encode serializes p at the current schema version.
func (p Payload) Encode() (string, error) {
	p.SchemaVersion = CurrentSchemaVersion
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ApplyPatch overlays patch onto p key by key. Keys are processed in
// sorted order so violations are reported deterministically. With
// Validate set, each touched field is checked and all violations are
// returned; the caller must discard p when any are reported.
func ApplyPatch(p *Payload, patch Patch, opts PatchOptions) []FieldError {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []FieldError
	for _, key := range keys {
		if readOnlyKeys[key] {
			continue
		}
		raw := patch[key]
		var err error
		switch key {
		case "name":
			p.Name, err = decodeText(raw)
			if err == nil && opts.Validate {
				errs = checkText(errs, key, p.Name, MaxNameLen, true)
			}
		case "startDate":
			p.StartDate, err = decodeText(raw)
			if err == nil && opts.Validate {
				errs = checkDate(errs, key, p.StartDate, true)
			}
		case "venue":
			p.Venue, err = decodeText(raw)
			if err == nil && opts.Validate {
				errs = checkText(errs, key, p.Venue, MaxVenueLen, true)
			}
		case "schedule":
			var v []ScheduleItem
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.Schedule = v
				if opts.Validate {
					errs = checkSchedule(errs, key, v)
				}
			}
		case "standings":
			var v []Standing
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.Standings = v
				if opts.Validate {
					errs = checkStandings(errs, key, v)
				}
			}
		case "bracket":
			var v *Bracket
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.Bracket = v
				if opts.Validate {
					errs = checkBracket(errs, key, v)
				}
			}
		case "ctas":
			var v *CTAs
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.CTAs = v
				if opts.Validate {
					if v == nil {
						errs = append(errs, FieldError{"ctas.primary.label", "required"})
					} else {
						errs = checkCTAs(errs, key, *v)
					}
				}
			}
		case "sponsors":
			var v []Sponsor
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.Sponsors = v
				if opts.Validate {
					errs = checkSponsors(errs, key, v)
				}
			}
		case "sponsorIds":
			p.SponsorIDs, err = decodeText(raw)
		case "media":
			var v *Media
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.Media = v
				if opts.Validate {
					errs = checkMedia(errs, key, v)
				}
			}
		case "externalData":
			var v *ExternalData
			if err = decode(raw, &v, opts.Strict); err == nil {
				p.ExternalData = v
				if opts.Validate {
					errs = checkExternalData(errs, key, v)
				}
			}
		case "settings":
			errs = applySettings(errs, p, raw, opts)
		default:
			if opts.Strict {
				errs = append(errs, FieldError{key, "unknown field"})
			}
		}
		if err != nil {
			errs = append(errs, FieldError{key, "malformed value"})
		}
	}
	return errs
}

// applySettings overlays individual toggles onto the current settings so
// a patch may flip one toggle without restating the others.
func applySettings(errs []FieldError, p *Payload, raw json.RawMessage, opts PatchOptions) []FieldError {
	if isNull(raw) {
		p.Settings = nil
		if opts.Validate {
			errs = append(errs, FieldError{"settings", "must be an object"})
		}
		return errs
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return append(errs, FieldError{"settings", "malformed value"})
	}
	var next Settings
	if p.Settings != nil {
		next = p.Settings.Clone()
	}
	if err := decode(raw, &next, opts.Strict); err != nil {
		return append(errs, FieldError{"settings", "malformed value"})
	}
	if opts.Validate {
		for _, k := range []string{"showSchedule", "showStandings", "showBracket"} {
			if v, ok := fields[k]; ok && isNull(v) {
				errs = append(errs, FieldError{"settings." + k, "must be a boolean"})
			}
		}
	}
	p.Settings = &next
	return errs
}

func decode(raw json.RawMessage, v any, strict bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(v)
}

// decodeText decodes a string value; null decodes to "".
func decodeText(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// hasValue is true for any value other than absent, null or "".
func hasValue(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return !isNull(t) && !bytes.Equal(t, []byte(`""`))
}

func marshalRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
