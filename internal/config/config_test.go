package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 15, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 2, cfg.Fetch.MaxRetries)
	assert.Equal(t, int64(2<<20), cfg.Fetch.MaxBodyBytes)
	assert.False(t, cfg.Fetch.AllowInsecureTLS)
	assert.Equal(t, 35, cfg.Concurrency.Global)
	assert.Equal(t, 3, cfg.Concurrency.PerHost)
	assert.Equal(t, 10, cfg.Penalty.MaxFailures)
	assert.Equal(t, 5, cfg.Search.MinResults)
	assert.Equal(t, 2, cfg.Validation.JobOfferOverride)
	assert.Equal(t, 40, cfg.Scoring.MinScore)
	assert.Equal(t, 168, cfg.Dedup.URLTTLHours)
	assert.Equal(t, 36, cfg.Dedup.QueryCacheTTLHours)
	assert.InDelta(t, 0.25, cfg.Wasserfall.PhoneRateThreshold, 0.001)
	assert.Equal(t, 3, cfg.Wasserfall.MinRunsBeforeUpgrade)
	assert.Equal(t, model.ModeConservative, cfg.Wasserfall.Initial)
	assert.Equal(t, "standard", cfg.Run.Mode)
	assert.InDelta(t, 0.25, cfg.Dork.SourceSplit[EngineGoogle], 0.001)
	assert.InDelta(t, 0.75, cfg.Dork.SourceSplit[EngineDuckDuckGo], 0.001)
	assert.Contains(t, cfg.Industries, "versicherung")

	modes := cfg.Wasserfall.Modes()
	require.Len(t, modes, 3)
	assert.Equal(t, model.ModeConservative, modes[0].Name)
	assert.Equal(t, 2, modes[0].DorkSlotMin)
	assert.Equal(t, 12, modes[2].DorkSlotMax)
	assert.InDelta(t, 0.15, modes[1].ExploreRate, 0.001)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/leads
log:
  level: debug
  format: console
scoring:
  min_score: 55
wasserfall:
  moderate:
    rate_per_minute: 25
run:
  mode: talent_hunt
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 55, cfg.Scoring.MinScore)
	assert.Equal(t, 25, cfg.Wasserfall.Moderate.RatePerMinute)
	// Defaults still apply for unset values
	assert.Equal(t, 4, cfg.Wasserfall.Moderate.DorkSlotMin)
	assert.Equal(t, "talent_hunt", cfg.Run.Mode)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
scoring:
  min_score: 55
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("LEADSCOUT_SCORING_MIN_SCORE", "70")
	t.Setenv("LEADSCOUT_GOOGLE_API_KEY", "key-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Scoring.MinScore)
	assert.Equal(t, "key-123", cfg.Google.APIKey)
}

func TestLoadValidationSection(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
validate:
  job_offer_override: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Validation.JobOfferOverride)
	require.NoError(t, cfg.Validate())

	cfg.Validation.JobOfferOverride = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate.job_offer_override")
}

func TestLoadFileExplicitPathMissing(t *testing.T) {
	chdirTemp(t)

	_, err := LoadFile("/nonexistent/lead-scout.yaml")
	require.Error(t, err)
}

func TestValidate_ConfigurationErrors(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Run.Mode = "turbo"
	cfg.Google.Enabled = true
	cfg.Store.Driver = "postgres"
	cfg.Wasserfall.Aggressive.DorkSlotMin = 20

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, resilience.IsConfiguration(err))
	assert.Contains(t, err.Error(), "run.mode")
	assert.Contains(t, err.Error(), "google.api_key")
	assert.Contains(t, err.Error(), "store.database_url")
	assert.Contains(t, err.Error(), "wasserfall.aggressive")
}

func TestValidate_NoEngines(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.DuckDuckGo.Enabled = false
	cfg.Classifieds.Enabled = false

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one search backend")
}

func TestValidate_UnknownIndustry(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Run.Industry = "raumfahrt"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.industry")
}

func TestEnabledEngines_ChainOrder(t *testing.T) {
	cfg := &Config{
		Search:      SearchConfig{Chain: []string{EngineJina, EngineDuckDuckGo, EngineGoogle, EngineClassifieds}},
		Google:      GoogleConfig{Enabled: true},
		DuckDuckGo:  DuckDuckGoConfig{Enabled: true},
		Classifieds: ClassifiedsConfig{Enabled: false},
	}
	assert.Equal(t, []string{EngineDuckDuckGo, EngineGoogle}, cfg.EnabledEngines())
}

func TestPenaltyTracker(t *testing.T) {
	pc := PenaltyConfig{BaseSecs: 30, APIBaseSecs: 5, MaxPenaltySecs: 600, MaxFailures: 10}
	tr := pc.Tracker()
	assert.Equal(t, 30, int(tr.Base.Seconds()))
	assert.Equal(t, 600, int(tr.MaxPenalty.Seconds()))
}

func TestInitLogger(t *testing.T) {
	orig := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(orig) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
