package domain

import (
	"net/url"
	"strings"
)

// Page names of the read surfaces that get a link.
const (
	PagePublic  = "public"
	PageDisplay = "display"
	PagePoster  = "poster"
	PageSignup  = "signup"
)

// BuildLinks derives the absolute surface URLs for an event. Links are
// never stored, so they always follow the current routing rules:
// {baseURL}/{tenantID}/{page}?id={id}.
func BuildLinks(baseURL, tenantID, id string) Links {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" || tenantID == "" || id == "" {
		return Links{}
	}
	link := func(page string) string {
		return base + "/" + url.PathEscape(tenantID) + "/" + page + "?id=" + url.QueryEscape(id)
	}
	return Links{
		Public:  link(PagePublic),
		Display: link(PageDisplay),
		Poster:  link(PagePoster),
		Signup:  link(PageSignup),
	}
}

// PlaceholderLogoURL is the logo shown for sponsors that no longer resolve.
func PlaceholderLogoURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/static/sponsor-placeholder.png"
}
