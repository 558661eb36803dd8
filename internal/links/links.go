// Package links builds outbound URLs for messages: booking pages for
// lodging and tickets, and map searches for directions.
package links

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/companion/internal/model"
)

// ErrMissingParams is returned when there is nothing to build a link from.
var ErrMissingParams = errors.New("links: missing parameters")

// Params describe what the link is for. Fill what you have.
type Params struct {
	Activity *model.Activity
	City     string
	Query    string
	CheckIn  time.Time
	Nights   int
}

// Link is a ready-to-open URL.
type Link struct {
	URL      string `json:"url"`
	Label    string `json:"label"`
	Provider string `json:"provider"`
}

// Generator builds a link.
type Generator interface {
	Generate(p Params) (Link, error)
}

// Default provider endpoints.
const (
	DefaultLodgingURL = "https://www.booking.com/searchresults.html"
	DefaultTicketsURL = "https://www.getyourguide.com/s/"
	DefaultMapsURL    = "https://www.google.com/maps/search/"
)

// Booking links to lodging search for a city, or ticket search for an activity.
type Booking struct {
	LodgingURL string
	TicketsURL string
}

// NewBooking returns a booking generator with the default providers.
func NewBooking() *Booking {
	return &Booking{LodgingURL: DefaultLodgingURL, TicketsURL: DefaultTicketsURL}
}

func (b *Booking) Generate(p Params) (Link, error) {
	if p.Activity != nil {
		q := strings.TrimSpace(strings.Join([]string{p.Activity.Name, cityOf(p)}, " "))
		if q == "" {
			return Link{}, ErrMissingParams
		}
		return Link{
			URL:      b.TicketsURL + "?" + url.Values{"q": {q}}.Encode(),
			Label:    "Book " + p.Activity.Name,
			Provider: "getyourguide",
		}, nil
	}

	city := strings.TrimSpace(p.City)
	if city == "" {
		return Link{}, fmt.Errorf("%w: lodging needs a city", ErrMissingParams)
	}
	v := url.Values{"ss": {city}}
	if !p.CheckIn.IsZero() {
		nights := max(p.Nights, 1)
		v.Set("checkin", p.CheckIn.Format("2006-01-02"))
		v.Set("checkout", p.CheckIn.AddDate(0, 0, nights).Format("2006-01-02"))
		v.Set("group_adults", strconv.Itoa(2))
	}
	return Link{
		URL:      b.LodgingURL + "?" + v.Encode(),
		Label:    "Find a place in " + city,
		Provider: "booking.com",
	}, nil
}

// Search links to a map search for an activity or free-text query.
type Search struct {
	MapsURL string
}

// NewSearch returns a search generator for Google Maps.
func NewSearch() *Search {
	return &Search{MapsURL: DefaultMapsURL}
}

func (s *Search) Generate(p Params) (Link, error) {
	var query, label string
	switch {
	case p.Activity != nil && p.Activity.Coordinates != nil:
		c := p.Activity.Coordinates
		query = strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 6, 64)
		label = "Directions to " + p.Activity.Name
	case p.Activity != nil:
		query = strings.TrimSpace(p.Activity.Name + " " + cityOf(p))
		label = "Find " + p.Activity.Name
	default:
		query = strings.TrimSpace(strings.TrimSpace(p.Query) + " " + strings.TrimSpace(p.City))
		label = "Search nearby"
	}
	if query == "" {
		return Link{}, ErrMissingParams
	}

	return Link{
		URL:      s.MapsURL + "?" + url.Values{"api": {"1"}, "query": {query}}.Encode(),
		Label:    label,
		Provider: "google-maps",
	}, nil
}

func cityOf(p Params) string {
	if p.Activity != nil && p.Activity.City != "" {
		return p.Activity.City
	}
	return p.City
}
