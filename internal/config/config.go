package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/abelbrown/companion/internal/learning"
	"github.com/abelbrown/companion/internal/location"
	"github.com/abelbrown/companion/internal/ranking"
	"github.com/abelbrown/companion/internal/trigger"
)

// EnvPrefix prefixes every environment override, e.g. COMPANION_STORAGE_DRIVER.
const EnvPrefix = "COMPANION"

// Config is the persistent application configuration
type Config struct {
	Storage  StorageConfig  `json:"storage"`
	Weather  WeatherConfig  `json:"weather"`
	Geocoder GeocoderConfig `json:"geocoder"`
	Location LocationConfig `json:"location"`
	Engine   EngineConfig   `json:"engine"`
	Policy   PolicyConfig   `json:"policy"`
	UI       UIConfig       `json:"ui"`
}

// StorageConfig selects where learning data and cooldowns live
type StorageConfig struct {
	Driver       string `json:"driver"` // "sqlite", "memory" or "dynamo"
	Path         string `json:"path,omitempty"`
	DynamoTable  string `json:"dynamo_table,omitempty" split_words:"true"`
	DynamoRegion string `json:"dynamo_region,omitempty" split_words:"true"`
}

// WeatherConfig holds forecast fetching settings
type WeatherConfig struct {
	Enabled         bool     `json:"enabled"`
	Endpoint        string   `json:"endpoint,omitempty"`
	CacheTTL        Duration `json:"cache_ttl" split_words:"true"`
	RefreshInterval Duration `json:"refresh_interval" split_words:"true"`
	StaleAfter      Duration `json:"stale_after" split_words:"true"`
	ForecastDays    int      `json:"forecast_days" split_words:"true"`
}

// GeocoderConfig holds reverse-geocoding settings
type GeocoderConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint,omitempty"`
	UserAgent string `json:"user_agent,omitempty" split_words:"true"`
	Timezones bool   `json:"timezones"` // offline timezone lookup
}

// LocationConfig tunes movement detection
type LocationConfig struct {
	MovingSpeed     float64 `json:"moving_speed" split_words:"true"`     // m/s
	MinDisplacement float64 `json:"min_displacement" split_words:"true"` // meters
}

// EngineConfig holds event loop settings
type EngineConfig struct {
	TickInterval  Duration `json:"tick_interval" split_words:"true"`
	InboxCapacity int      `json:"inbox_capacity" split_words:"true"`
	EventLog      bool     `json:"event_log" split_words:"true"`
	EventLevel    string   `json:"event_level,omitempty" split_words:"true"`  // debug, info, warn, error
	MetricsAddr   string   `json:"metrics_addr,omitempty" split_words:"true"` // empty disables /metrics
}

// PolicyConfig holds trigger thresholds, cooldowns and learning rules
type PolicyConfig struct {
	ProximityRadius   float64  `json:"proximity_radius" split_words:"true"`
	ProximityTopN     int      `json:"proximity_top_n" split_words:"true"`
	ProximityCooldown Duration `json:"proximity_cooldown" split_words:"true"`

	TimeSensitiveMinScore float64  `json:"time_sensitive_min_score" split_words:"true"`
	TimeSensitiveCooldown Duration `json:"time_sensitive_cooldown" split_words:"true"`

	TempSwing       float64  `json:"temp_swing" split_words:"true"`
	PrecipLookahead Duration `json:"precip_lookahead" split_words:"true"`
	PrecipChance    float64  `json:"precip_chance" split_words:"true"`
	WeatherCooldown Duration `json:"weather_cooldown" split_words:"true"`

	RestAfter    Duration `json:"rest_after" split_words:"true"`
	RestCooldown Duration `json:"rest_cooldown" split_words:"true"`

	LodgingCooldown Duration `json:"lodging_cooldown" split_words:"true"`

	BookingTopN     int      `json:"booking_top_n" split_words:"true"`
	BookingCooldown Duration `json:"booking_cooldown" split_words:"true"`

	MinSamples    int     `json:"min_samples" split_words:"true"`
	SuppressBelow float64 `json:"suppress_below" split_words:"true"`

	Weights ranking.Weights `json:"weights" ignored:"true"`
}

// UIConfig holds terminal preferences
type UIConfig struct {
	Theme   string `json:"theme"`
	TopN    int    `json:"top_n" split_words:"true"`
	Compact bool   `json:"compact"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	tp := trigger.DefaultPolicy()
	lp := learning.DefaultPolicy()
	ls := location.DefaultSettings()

	return &Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(Dir(), "companion.db"),
		},
		Weather: WeatherConfig{
			Enabled:         true,
			CacheTTL:        Duration(10 * time.Minute),
			RefreshInterval: Duration(15 * time.Minute),
			StaleAfter:      Duration(time.Hour),
			ForecastDays:    2,
		},
		Geocoder: GeocoderConfig{
			Enabled:   true,
			UserAgent: "companion/0.1",
			Timezones: true,
		},
		Location: LocationConfig{
			MovingSpeed:     ls.MovingSpeed,
			MinDisplacement: ls.MinDisplacement,
		},
		Engine: EngineConfig{
			TickInterval:  Duration(time.Minute),
			InboxCapacity: 5,
			EventLog:      true,
			EventLevel:    "info",
		},
		Policy: PolicyConfig{
			ProximityRadius:       tp.ProximityRadius,
			ProximityTopN:         tp.ProximityTopN,
			ProximityCooldown:     Duration(tp.ProximityCooldown),
			TimeSensitiveMinScore: tp.TimeSensitiveMinScore,
			TimeSensitiveCooldown: Duration(tp.TimeSensitiveCooldown),
			TempSwing:             tp.TempSwing,
			PrecipLookahead:       Duration(tp.PrecipLookahead),
			PrecipChance:          tp.PrecipChance,
			WeatherCooldown:       Duration(tp.WeatherCooldown),
			RestAfter:             Duration(tp.RestAfter),
			RestCooldown:          Duration(tp.RestCooldown),
			LodgingCooldown:       Duration(tp.LodgingCooldown),
			BookingTopN:           tp.BookingTopN,
			BookingCooldown:       Duration(tp.BookingCooldown),
			MinSamples:            lp.MinSamples,
			SuppressBelow:         lp.SuppressBelow,
			Weights:               ranking.DefaultWeights(),
		},
		UI: UIConfig{
			Theme: "dark",
			TopN:  5,
		},
	}
}

// Dir is the companion's home directory, ~/.companion unless COMPANION_HOME is set.
func Dir() string {
	if d := os.Getenv("COMPANION_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".companion")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads the config file, or returns defaults, then applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom is Load for an explicit path. Fields missing from the file keep
// their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from COMPANION_* environment variables.
// Unset variables leave fields untouched.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}
	return nil
}

// Validate checks values that would make the engine misbehave.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case "dynamo":
		if c.Storage.DynamoTable == "" {
			errs = append(errs, errors.New("storage.dynamo_table is required for dynamo"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver: %q", c.Storage.Driver))
	}
	if c.Policy.SuppressBelow < 0 || c.Policy.SuppressBelow > 1 {
		errs = append(errs, fmt.Errorf("policy.suppress_below must be in [0,1], got %v", c.Policy.SuppressBelow))
	}
	if c.Policy.ProximityRadius <= 0 {
		errs = append(errs, errors.New("policy.proximity_radius must be positive"))
	}
	switch strings.ToLower(c.Engine.EventLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("engine.event_level must be debug, info, warn or error, got %q", c.Engine.EventLevel))
	}
	if c.Engine.TickInterval <= 0 {
		errs = append(errs, errors.New("engine.tick_interval must be positive"))
	}
	return errors.Join(errs...)
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// TriggerPolicy converts the policy section for the trigger registry.
func (c *Config) TriggerPolicy() trigger.Policy {
	p := c.Policy
	return trigger.Policy{
		ProximityRadius:       p.ProximityRadius,
		ProximityTopN:         p.ProximityTopN,
		ProximityCooldown:     p.ProximityCooldown.D(),
		TimeSensitiveMinScore: p.TimeSensitiveMinScore,
		TimeSensitiveCooldown: p.TimeSensitiveCooldown.D(),
		TempSwing:             p.TempSwing,
		PrecipLookahead:       p.PrecipLookahead.D(),
		PrecipChance:          p.PrecipChance,
		WeatherCooldown:       p.WeatherCooldown.D(),
		RestAfter:             p.RestAfter.D(),
		RestCooldown:          p.RestCooldown.D(),
		LodgingCooldown:       p.LodgingCooldown.D(),
		BookingTopN:           p.BookingTopN,
		BookingCooldown:       p.BookingCooldown.D(),
	}
}

// LearningPolicy converts the suppression rule.
func (c *Config) LearningPolicy() learning.Policy {
	return learning.Policy{MinSamples: c.Policy.MinSamples, SuppressBelow: c.Policy.SuppressBelow}
}

// LocationSettings converts the movement thresholds.
func (c *Config) LocationSettings() location.Settings {
	s := location.DefaultSettings()
	s.MovingSpeed = c.Location.MovingSpeed
	s.MinDisplacement = c.Location.MinDisplacement
	return s
}
