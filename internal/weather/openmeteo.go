package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/abelbrown/companion/internal/model"
)

// DefaultOpenMeteoEndpoint is the public forecast API.
const DefaultOpenMeteoEndpoint = "https://api.open-meteo.com/v1/forecast"

// Open-Meteo times are requested in GMT and come back without an offset.
const openMeteoTimeLayout = "2006-01-02T15:04"

// OpenMeteo fetches forecasts from the Open-Meteo API. No key is needed.
type OpenMeteo struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter

	// retry tuning
	maxRetries  uint64
	baseBackoff time.Duration
}

// NewOpenMeteo creates a client. An empty endpoint uses the public API.
func NewOpenMeteo(endpoint string) *OpenMeteo {
	if endpoint == "" {
		endpoint = DefaultOpenMeteoEndpoint
	}
	return &OpenMeteo{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: 20 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 2),
		maxRetries:  3,
		baseBackoff: time.Second,
	}
}

type openMeteoResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Apparent    float64 `json:"apparent_temperature"`
		IsDay       int     `json:"is_day"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Precipitation []float64 `json:"precipitation_probability"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time    []string `json:"time"`
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// ConditionFromWMO maps a WMO weather interpretation code to a Condition.
func ConditionFromWMO(code int) model.Condition {
	switch {
	case code <= 1:
		return model.ConditionSunny
	case code <= 3:
		return model.ConditionCloudy
	case code == 45 || code == 48:
		return model.ConditionFoggy
	case code >= 51 && code <= 67, code >= 80 && code <= 82:
		return model.ConditionRainy
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return model.ConditionSnowy
	case code >= 95:
		return model.ConditionStormy
	default:
		return model.ConditionCloudy
	}
}

// Fetch returns current conditions, sun times and an hourly forecast.
func (o *OpenMeteo) Fetch(ctx context.Context, at model.Coordinates, days int) (*model.WeatherContext, error) {
	if days < 1 {
		days = 1
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(at.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(at.Lng, 'f', 4, 64))
	q.Set("current", "temperature_2m,apparent_temperature,is_day,weather_code")
	q.Set("hourly", "temperature_2m,precipitation_probability,weather_code")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "GMT")
	q.Set("forecast_days", strconv.Itoa(days))

	body, err := o.getWithRetry(ctx, o.endpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("weather: failed to parse response: %w", err)
	}
	w, err := resp.toContext()
	if err != nil {
		return nil, err
	}
	w.LocationKey = at.Key()
	return w, nil
}

func parseGMT(s string) (time.Time, error) {
	return time.ParseInLocation(openMeteoTimeLayout, s, time.UTC)
}

func (r *openMeteoResponse) toContext() (*model.WeatherContext, error) {
	now, err := parseGMT(r.Current.Time)
	if err != nil {
		return nil, fmt.Errorf("weather: bad current time %q: %w", r.Current.Time, err)
	}

	w := &model.WeatherContext{
		Condition:   ConditionFromWMO(r.Current.WeatherCode),
		Temperature: r.Current.Temperature,
		FeelsLike:   r.Current.Apparent,
		IsDaylight:  r.Current.IsDay == 1,
		FetchedAt:   time.Now(),
	}

	n := len(r.Hourly.Time)
	if len(r.Hourly.Temperature) < n || len(r.Hourly.Precipitation) < n || len(r.Hourly.WeatherCode) < n {
		return nil, errors.New("weather: hourly arrays have mismatched lengths")
	}
	hour := now.Truncate(time.Hour)
	for i := 0; i < n; i++ {
		t, err := parseGMT(r.Hourly.Time[i])
		if err != nil {
			return nil, fmt.Errorf("weather: bad hourly time %q: %w", r.Hourly.Time[i], err)
		}
		h := model.HourlyForecast{
			Time:                t,
			Condition:           ConditionFromWMO(r.Hourly.WeatherCode[i]),
			Temperature:         r.Hourly.Temperature[i],
			PrecipitationChance: r.Hourly.Precipitation[i],
		}
		if t.Equal(hour) {
			w.PrecipitationChance = h.PrecipitationChance
		}
		if t.Before(hour) {
			continue
		}
		w.Hourly = append(w.Hourly, h)
	}

	// Sun times for the current day.
	day := now.Format("2006-01-02")
	for i, d := range r.Daily.Time {
		if d != day || i >= len(r.Daily.Sunrise) || i >= len(r.Daily.Sunset) {
			continue
		}
		if t, err := parseGMT(r.Daily.Sunrise[i]); err == nil {
			w.Sunrise = t
		}
		if t, err := parseGMT(r.Daily.Sunset[i]); err == nil {
			w.Sunset = t
		}
	}
	return w, nil
}

// getWithRetry retries 429 and 5xx responses with exponential backoff.
// On 429, honors the Retry-After header if present.
func (o *OpenMeteo) getWithRetry(ctx context.Context, target string) ([]byte, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = 30 * time.Second
	exp.Reset()

	var lastErr error
	for attempt := uint64(0); attempt <= o.maxRetries; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("weather: rate limiter wait failed: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("weather: failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("weather: request cancelled: %w", ctx.Err())
			}
			return nil, fmt.Errorf("weather: request failed: %w", err)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("weather: failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		lastErr = fmt.Errorf("weather: open-meteo returned status %d: %s", resp.StatusCode, string(body))
		if !retryable {
			return nil, lastErr
		}
		if attempt == o.maxRetries {
			break
		}

		delay := exp.NextBackOff()
		if resp.StatusCode == http.StatusTooManyRequests {
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
				delay = min(time.Duration(seconds)*time.Second, 30*time.Second)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("weather: request cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("weather: all retries exhausted: %w", lastErr)
}
