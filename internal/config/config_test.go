package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/companion/internal/learning"
	"github.com/abelbrown/companion/internal/ranking"
	"github.com/abelbrown/companion/internal/trigger"
)

func tempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COMPANION_HOME", dir)
	return dir
}

func TestDefaultsMatchPackageDefaults(t *testing.T) {
	tempHome(t)
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, trigger.DefaultPolicy(), cfg.TriggerPolicy())
	assert.Equal(t, learning.DefaultPolicy(), cfg.LearningPolicy())
	assert.Equal(t, ranking.DefaultWeights(), cfg.Policy.Weights)
	assert.Equal(t, 50.0, cfg.LocationSettings().MinDisplacement)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	home := tempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, filepath.Join(home, "companion.db"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join(home, "config.json"), ConfigPath())
}

func TestSaveAndLoad(t *testing.T) {
	tempHome(t)

	cfg := DefaultConfig()
	cfg.Policy.RestAfter = Duration(3 * time.Hour)
	cfg.Policy.Weights.Novelty = 2
	cfg.Storage.Driver = "memory"
	require.NoError(t, cfg.Save())

	raw, err := os.ReadFile(ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"rest_after": "3h0m0s"`)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, 3*time.Hour, loaded.TriggerPolicy().RestAfter)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	dir := tempHome(t)
	path := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"policy": {"rest_after": "90m", "min_samples": 8},
		"engine": {"tick_interval": 30}
	}`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Policy.RestAfter.D())
	assert.Equal(t, 8, cfg.LearningPolicy().MinSamples)
	assert.Equal(t, 30*time.Second, cfg.Engine.TickInterval.D())
	assert.Equal(t, 200.0, cfg.Policy.ProximityRadius)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
}

func TestEnvOverrides(t *testing.T) {
	tempHome(t)
	t.Setenv("COMPANION_STORAGE_DRIVER", "dynamo")
	t.Setenv("COMPANION_STORAGE_DYNAMO_TABLE", "companion-kv")
	t.Setenv("COMPANION_POLICY_PROXIMITY_RADIUS", "150")
	t.Setenv("COMPANION_POLICY_REST_AFTER", "2h")
	t.Setenv("COMPANION_WEATHER_ENABLED", "false")
	t.Setenv("COMPANION_UI_TOP_N", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dynamo", cfg.Storage.Driver)
	assert.Equal(t, "companion-kv", cfg.Storage.DynamoTable)
	assert.Equal(t, 150.0, cfg.TriggerPolicy().ProximityRadius)
	assert.Equal(t, 2*time.Hour, cfg.TriggerPolicy().RestAfter)
	assert.False(t, cfg.Weather.Enabled)
	assert.Equal(t, 8, cfg.UI.TopN)

	// Untouched fields keep their defaults.
	assert.Equal(t, 10, cfg.Policy.ProximityTopN)
}

func TestEnvBadDuration(t *testing.T) {
	tempHome(t)
	t.Setenv("COMPANION_ENGINE_TICK_INTERVAL", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "environment")
}

func TestLoadRejects(t *testing.T) {
	dir := tempHome(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"storage":`, "parse config"},
		{"unknown driver", `{"storage":{"driver":"postgres"}}`, "unsupported storage.driver"},
		{"dynamo without table", `{"storage":{"driver":"dynamo"}}`, "dynamo_table"},
		{"suppress out of range", `{"policy":{"suppress_below":1.5}}`, "suppress_below"},
		{"bad duration", `{"policy":{"rest_after":true}}`, "duration"},
		{"zero tick", `{"engine":{"tick_interval":"0s"}}`, "tick_interval"},
		{"event level", `{"engine":{"event_level":"verbose"}}`, "event_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0600))
			_, err := LoadFrom(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1h30m","b":2.5}`), &v))
	assert.Equal(t, 90*time.Minute, v.A.D())
	assert.Equal(t, 2500*time.Millisecond, v.B.D())

	out, err := json.Marshal(Duration(45 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"45m0s"`, string(out))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("COMPANION_UI_TOP_N=7\nCOMPANION_STORAGE_DRIVER=memory\n"), 0o644))

	t.Setenv("COMPANION_STORAGE_DRIVER", "sqlite")
	t.Setenv("COMPANION_UI_TOP_N", "")
	os.Unsetenv("COMPANION_UI_TOP_N")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "7", os.Getenv("COMPANION_UI_TOP_N"))
	assert.Equal(t, "sqlite", os.Getenv("COMPANION_STORAGE_DRIVER"), "existing variables win")
}
