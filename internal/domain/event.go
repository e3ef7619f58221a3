package domain

// Event is the canonical, versioned shape every read surface observes.
// Optional blocks are nil when absent; nil and empty are distinct.
type Event struct {
	ID           string         `json:"id"`
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	StartDate    string         `json:"startDate"`
	Venue        string         `json:"venue"`
	TemplateID   string         `json:"templateId"`
	Links        Links          `json:"links"`
	QR           QR             `json:"qr"`
	Schedule     []ScheduleItem `json:"schedule"`
	Standings    []Standing     `json:"standings"`
	Bracket      *Bracket       `json:"bracket"`
	CTAs         CTAs           `json:"ctas"`
	Sponsors     []Sponsor      `json:"sponsors"`
	Media        *Media         `json:"media"`
	ExternalData *ExternalData  `json:"externalData"`
	Settings     Settings       `json:"settings"`
	Analytics    *Reserved      `json:"analytics"`
	Payments     *Reserved      `json:"payments"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`
}

// Links are derived from (baseURL, tenantID, id) on every hydration.
type Links struct {
	Public  string `json:"public"`
	Display string `json:"display"`
	Poster  string `json:"poster"`
	Signup  string `json:"signup"`
}

// QR holds base64 PNG renderings of Links.Public and Links.Signup.
// A field is empty when rendering failed.
type QR struct {
	Public string `json:"public"`
	Signup string `json:"signup"`
}

type ScheduleItem struct {
	Time  string `json:"time"`
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}

type Standing struct {
	Rank   int    `json:"rank"`
	Team   string `json:"team"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Points int    `json:"points"`
}

type Bracket struct {
	Rounds []BracketRound `json:"rounds"`
}

type BracketRound struct {
	Name    string         `json:"name"`
	Matches []BracketMatch `json:"matches"`
}

type BracketMatch struct {
	Home   string `json:"home"`
	Away   string `json:"away"`
	Winner string `json:"winner,omitempty"`
}

// CTA is a call to action.
type CTA struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// CTAs always carries a primary CTA; Secondary is optional.
type CTAs struct {
	Primary   CTA  `json:"primary"`
	Secondary *CTA `json:"secondary"`
}

// Placement is where a sponsor is shown.
type Placement string

const (
	PlacementPoster       Placement = "poster"
	PlacementDisplay      Placement = "display"
	PlacementPublic       Placement = "public"
	PlacementMobileBanner Placement = "mobile-banner"
)

// Valid reports whether p is one of the known placements.
func (p Placement) Valid() bool {
	switch p {
	case PlacementPoster, PlacementDisplay, PlacementPublic, PlacementMobileBanner:
		return true
	}
	return false
}

type Sponsor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	LogoURL   string    `json:"logoUrl"`
	LinkURL   string    `json:"linkUrl,omitempty"`
	Placement Placement `json:"placement,omitempty"`
}

// Media is a closed set of media references.
type Media struct {
	VideoURL     string `json:"videoUrl,omitempty"`
	MapEmbedURL  string `json:"mapEmbedUrl,omitempty"`
	HeroImageURL string `json:"heroImageUrl,omitempty"`
}

// ExternalData is a closed set of links to externally hosted content.
type ExternalData struct {
	ScheduleURL  string `json:"scheduleUrl,omitempty"`
	StandingsURL string `json:"standingsUrl,omitempty"`
	BracketURL   string `json:"bracketUrl,omitempty"`
}

// Settings are display toggles. After hydration no field is nil.
type Settings struct {
	ShowSchedule  *bool `json:"showSchedule"`
	ShowStandings *bool `json:"showStandings"`
	ShowBracket   *bool `json:"showBracket"`
	ShowSponsors  *bool `json:"showSponsors"`
	ShowVideo     *bool `json:"showVideo"`
	ShowMap       *bool `json:"showMap"`
	ShowGallery   *bool `json:"showGallery"`
}

// Reserved is a placeholder for feature blocks that are not enabled yet.
type Reserved struct {
	Enabled bool `json:"enabled"`
}

// Defaults and limits.
const (
	DefaultTemplateID    = "event"
	DefaultCTALabel      = "Sign Up"
	DefaultName          = "Untitled Event"
	DefaultVenue         = "TBD"
	DefaultStartDate     = "1970-01-01"
	PlaceholderSponsor   = "Sponsor"
	MaxNameLen           = 200
	MaxVenueLen          = 200
	MaxSlugLen           = 64
	DateLayout           = "2006-01-02"
	DefaultScope         = "events"
	CurrentSchemaVersion = 4
)

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// WithDefaults fills every nil toggle. Schedule, standings and bracket
// default to false; the rest default to true so records written before a
// toggle existed keep showing that section.
func (s Settings) WithDefaults() Settings {
	fill := func(p **bool, def bool) {
		if *p == nil {
			*p = Bool(def)
		}
	}
	fill(&s.ShowSchedule, false)
	fill(&s.ShowStandings, false)
	fill(&s.ShowBracket, false)
	fill(&s.ShowSponsors, true)
	fill(&s.ShowVideo, true)
	fill(&s.ShowMap, true)
	fill(&s.ShowGallery, true)
	return s
}

// Clone returns a copy of s that shares no pointers with it.
func (s Settings) Clone() Settings {
	cp := func(b *bool) *bool {
		if b == nil {
			return nil
		}
		return Bool(*b)
	}
	return Settings{
		ShowSchedule:  cp(s.ShowSchedule),
		ShowStandings: cp(s.ShowStandings),
		ShowBracket:   cp(s.ShowBracket),
		ShowSponsors:  cp(s.ShowSponsors),
		ShowVideo:     cp(s.ShowVideo),
		ShowMap:       cp(s.ShowMap),
		ShowGallery:   cp(s.ShowGallery),
	}
}
