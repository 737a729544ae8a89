package ui

import (
	"net/http"
	"strings"
)

// Page is the navigation state of the single-page UI.
type Page int

const (
	PageDetect Page = iota
	PagePlants
)

const pageCookie = "hosplant_page"

func (p Page) String() string {
	switch p {
	case PagePlants:
		return "plants"
	default:
		return "detect"
	}
}

// ParsePage maps a stored or submitted page name back to a Page. Anything
// unrecognised is the default Detect page.
func ParsePage(s string) Page {
	if strings.EqualFold(s, PagePlants.String()) {
		return PagePlants
	}
	return PageDetect
}

// Event is a navigation action triggered from the UI.
type Event int

const (
	EventNone Event = iota
	EventShowDetect
	EventShowPlants
)

func ParseEvent(s string) Event {
	switch strings.ToLower(s) {
	case "detect":
		return EventShowDetect
	case "plants":
		return EventShowPlants
	default:
		return EventNone
	}
}

// Transition returns the page after applying e to p.
func Transition(p Page, e Event) Page {
	switch e {
	case EventShowDetect:
		return PageDetect
	case EventShowPlants:
		return PagePlants
	default:
		return p
	}
}

// CurrentPage reads the navigation state of the requesting browser.
func CurrentPage(r *http.Request) Page {
	c, err := r.Cookie(pageCookie)
	if err != nil {
		return PageDetect
	}
	return ParsePage(c.Value)
}

// StorePage remembers p for the requesting browser.
func StorePage(w http.ResponseWriter, p Page) {
	http.SetCookie(w, &http.Cookie{
		Name:     pageCookie,
		Value:    p.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
