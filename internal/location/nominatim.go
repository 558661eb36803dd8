package location

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/abelbrown/companion/internal/model"
)

// DefaultNominatimEndpoint is the public OpenStreetMap instance.
const DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org"

// Nominatim reverse-geocodes through an OpenStreetMap Nominatim server.
// The public instance allows one request per second and requires a
// User-Agent that identifies the application.
type Nominatim struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewNominatim creates a geocoder. An empty endpoint uses the public instance.
func NewNominatim(endpoint, userAgent string) *Nominatim {
	if endpoint == "" {
		endpoint = DefaultNominatimEndpoint
	}
	if userAgent == "" {
		userAgent = "companion/0.1"
	}
	c := resty.New().
		SetBaseURL(endpoint).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second)

	return &Nominatim{
		client:  c,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		CountryCode  string `json:"country_code"`
	} `json:"address"`
}

// Reverse returns the city and country code at c.
func (n *Nominatim) Reverse(ctx context.Context, c model.Coordinates) (Place, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return Place{}, fmt.Errorf("nominatim rate limit: %w", err)
	}

	var out nominatimResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":          "jsonv2",
			"lat":             fmt.Sprintf("%.6f", c.Lat),
			"lon":             fmt.Sprintf("%.6f", c.Lng),
			"zoom":            "10",
			"accept-language": "en",
		}).
		SetResult(&out).
		Get("/reverse")
	if err != nil {
		return Place{}, fmt.Errorf("nominatim request: %w", err)
	}
	if resp.IsError() {
		return Place{}, fmt.Errorf("nominatim status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return Place{}, fmt.Errorf("nominatim: %s", out.Error)
	}

	a := out.Address
	city := a.City
	for _, alt := range []string{a.Town, a.Village, a.Municipality} {
		if city != "" {
			break
		}
		city = alt
	}
	return Place{City: city, CountryCode: strings.ToUpper(a.CountryCode)}, nil
}
