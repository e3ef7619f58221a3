package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// Messages flattens violations into human-readable strings.
func Messages(fes []FieldError) []string {
	out := make([]string, len(fes))
	for i, fe := range fes {
		out[i] = fe.Error()
	}
	return out
}

// ValidationError carries every violation found in one pass.
type ValidationError struct {
	Violations []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(Messages(e.Violations), "; ")
}

// ValidateOptions selects the validation mode.
type ValidateOptions struct {
	// AllowPartial skips identity, link, QR and timestamp presence checks.
	// Partial candidates are updates to an already valid record.
	AllowPartial bool
}

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	urlPattern  = regexp.MustCompile(`(?i)^https?://[^\s/?#]+[^\s]*$`)
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	uuidV4      = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
)

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool { return urlPattern.MatchString(s) }

// IsSlug reports whether s is a normalized slug.
func IsSlug(s string) bool { return len(s) <= MaxSlugLen && slugPattern.MatchString(s) }

// IsUUIDv4 reports whether s is a lowercase canonical UUID v4.
func IsUUIDv4(s string) bool { return uuidV4.MatchString(s) }

// IsDate reports whether s is a real calendar date in YYYY-MM-DD form.
func IsDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidateEvent checks ev against the frozen contract. It never stops at
// the first problem: every violation is returned. A nil result means ok.
func ValidateEvent(ev *Event, opts ValidateOptions) []FieldError {
	var errs []FieldError
	full := !opts.AllowPartial

	if full {
		if strings.TrimSpace(ev.ID) == "" {
			errs = append(errs, FieldError{"id", "required"})
		}
		if ev.Slug == "" {
			errs = append(errs, FieldError{"slug", "required"})
		} else if !IsSlug(ev.Slug) {
			errs = append(errs, FieldError{"slug", "must be lowercase letters, digits and single dashes"})
		}
	}

	errs = checkText(errs, "name", ev.Name, MaxNameLen, full)
	errs = checkDate(errs, "startDate", ev.StartDate, full)
	errs = checkText(errs, "venue", ev.Venue, MaxVenueLen, full)
	errs = checkCTAs(errs, "ctas", ev.CTAs)
	errs = checkSettings(errs, "settings", ev.Settings)
	errs = checkSchedule(errs, "schedule", ev.Schedule)
	errs = checkStandings(errs, "standings", ev.Standings)
	errs = checkBracket(errs, "bracket", ev.Bracket)
	errs = checkSponsors(errs, "sponsors", ev.Sponsors)
	errs = checkMedia(errs, "media", ev.Media)
	errs = checkExternalData(errs, "externalData", ev.ExternalData)

	if full {
		errs = checkRequiredURL(errs, "links.public", ev.Links.Public)
		errs = checkRequiredURL(errs, "links.display", ev.Links.Display)
		errs = checkRequiredURL(errs, "links.poster", ev.Links.Poster)
		errs = checkRequiredURL(errs, "links.signup", ev.Links.Signup)
		if ev.QR.Public == "" {
			errs = append(errs, FieldError{"qr.public", "required"})
		}
		errs = checkTimestamp(errs, "createdAt", ev.CreatedAt)
		errs = checkTimestamp(errs, "updatedAt", ev.UpdatedAt)
	}
	return errs
}

func checkText(errs []FieldError, field, v string, max int, required bool) []FieldError {
	switch {
	case strings.TrimSpace(v) == "":
		if required {
			errs = append(errs, FieldError{field, "required"})
		}
	case len(v) > max:
		errs = append(errs, FieldError{field, fmt.Sprintf("max length %d", max)})
	}
	return errs
}

func checkDate(errs []FieldError, field, v string, required bool) []FieldError {
	switch {
	case v == "":
		if required {
			errs = append(errs, FieldError{field, "required"})
		}
	case !IsDate(v):
		errs = append(errs, FieldError{field, "must be a calendar date (YYYY-MM-DD)"})
	}
	return errs
}

func checkURL(errs []FieldError, field, v string) []FieldError {
	if v != "" && !IsURL(v) {
		errs = append(errs, FieldError{field, "must be an http(s) URL"})
	}
	return errs
}

func checkRequiredURL(errs []FieldError, field, v string) []FieldError {
	if v == "" {
		return append(errs, FieldError{field, "required"})
	}
	return checkURL(errs, field, v)
}

func checkTimestamp(errs []FieldError, field, v string) []FieldError {
	if v == "" {
		return append(errs, FieldError{field, "required"})
	}
	if _, err := time.Parse(time.RFC3339, v); err != nil {
		errs = append(errs, FieldError{field, "must be an ISO-8601 timestamp"})
	}
	return errs
}

func checkCTAs(errs []FieldError, field string, c CTAs) []FieldError {
	if strings.TrimSpace(c.Primary.Label) == "" {
		errs = append(errs, FieldError{field + ".primary.label", "required"})
	}
	errs = checkURL(errs, field+".primary.url", c.Primary.URL)
	if c.Secondary != nil {
		if strings.TrimSpace(c.Secondary.Label) == "" {
			errs = append(errs, FieldError{field + ".secondary.label", "required"})
		}
		errs = checkURL(errs, field+".secondary.url", c.Secondary.URL)
	}
	return errs
}

func checkSettings(errs []FieldError, field string, s Settings) []FieldError {
	if s.ShowSchedule == nil {
		errs = append(errs, FieldError{field + ".showSchedule", "must be a boolean"})
	}
	if s.ShowStandings == nil {
		errs = append(errs, FieldError{field + ".showStandings", "must be a boolean"})
	}
	if s.ShowBracket == nil {
		errs = append(errs, FieldError{field + ".showBracket", "must be a boolean"})
	}
	return errs
}

func checkSchedule(errs []FieldError, field string, items []ScheduleItem) []FieldError {
	for i, it := range items {
		k := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(it.Time) == "" {
			errs = append(errs, FieldError{k + ".time", "required"})
		}
		if strings.TrimSpace(it.Title) == "" {
			errs = append(errs, FieldError{k + ".title", "required"})
		}
	}
	return errs
}

func checkStandings(errs []FieldError, field string, rows []Standing) []FieldError {
	for i, r := range rows {
		if strings.TrimSpace(r.Team) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("%s[%d].team", field, i), "required"})
		}
	}
	return errs
}

func checkBracket(errs []FieldError, field string, b *Bracket) []FieldError {
	if b == nil {
		return errs
	}
	for i, r := range b.Rounds {
		if strings.TrimSpace(r.Name) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("%s.rounds[%d].name", field, i), "required"})
		}
	}
	return errs
}

func checkSponsors(errs []FieldError, field string, sponsors []Sponsor) []FieldError {
	for i, s := range sponsors {
		k := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, FieldError{k + ".id", "required"})
		}
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, FieldError{k + ".name", "required"})
		}
		errs = checkRequiredURL(errs, k+".logoUrl", s.LogoURL)
		errs = checkURL(errs, k+".linkUrl", s.LinkURL)
		if s.Placement != "" && !s.Placement.Valid() {
			errs = append(errs, FieldError{k + ".placement", "must be one of poster, display, public, mobile-banner"})
		}
	}
	return errs
}

func checkMedia(errs []FieldError, field string, m *Media) []FieldError {
	if m == nil {
		return errs
	}
	errs = checkURL(errs, field+".videoUrl", m.VideoURL)
	errs = checkURL(errs, field+".mapEmbedUrl", m.MapEmbedURL)
	return checkURL(errs, field+".heroImageUrl", m.HeroImageURL)
}

func checkExternalData(errs []FieldError, field string, x *ExternalData) []FieldError {
	if x == nil {
		return errs
	}
	errs = checkURL(errs, field+".scheduleUrl", x.ScheduleURL)
	errs = checkURL(errs, field+".standingsUrl", x.StandingsURL)
	return checkURL(errs, field+".bracketUrl", x.BracketURL)
}
