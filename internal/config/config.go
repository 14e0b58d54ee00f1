package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-scout/internal/model"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// Engine names used in search.chain, dork.source_split and pricing.
const (
	EngineGoogle      = "google"
	EngineJina        = "jina"
	EngineDuckDuckGo  = "duckduckgo"
	EngineClassifieds = "classifieds"
)

// Config holds the full application configuration. It is treated as an
// immutable snapshot for the duration of a run.
type Config struct {
	Store       StoreConfig         `yaml:"store" mapstructure:"store"`
	Log         LogConfig           `yaml:"log" mapstructure:"log"`
	Fetch       FetchConfig         `yaml:"fetch" mapstructure:"fetch"`
	Concurrency ConcurrencyConfig   `yaml:"concurrency" mapstructure:"concurrency"`
	Penalty     PenaltyConfig       `yaml:"penalty" mapstructure:"penalty"`
	Search      SearchConfig        `yaml:"search" mapstructure:"search"`
	Google      GoogleConfig        `yaml:"google" mapstructure:"google"`
	Jina        JinaConfig          `yaml:"jina" mapstructure:"jina"`
	DuckDuckGo  DuckDuckGoConfig    `yaml:"duckduckgo" mapstructure:"duckduckgo"`
	Classifieds ClassifiedsConfig   `yaml:"classifieds" mapstructure:"classifieds"`
	Dedup       DedupConfig         `yaml:"dedup" mapstructure:"dedup"`
	Validation  ValidateConfig      `yaml:"validate" mapstructure:"validate"`
	Scoring     ScoringConfig       `yaml:"scoring" mapstructure:"scoring"`
	Dork        DorkConfig          `yaml:"dork" mapstructure:"dork"`
	Wasserfall  WasserfallConfig    `yaml:"wasserfall" mapstructure:"wasserfall"`
	Run         RunConfig           `yaml:"run" mapstructure:"run"`
	Monitoring  MonitoringConfig    `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing     PricingConfig       `yaml:"pricing" mapstructure:"pricing"`
	Server      ServerConfig        `yaml:"server" mapstructure:"server"`
	Industries  map[string][]string `yaml:"industries" mapstructure:"industries"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures page fetching.
type FetchConfig struct {
	TimeoutSecs         int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries          int      `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs    int      `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs        int      `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MaxBodyBytes        int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	AllowedContentTypes []string `yaml:"allowed_content_types" mapstructure:"allowed_content_types"`
	AllowInsecureTLS    bool     `yaml:"allow_insecure_tls" mapstructure:"allow_insecure_tls"`
	UserAgent           string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// Timeout returns the per-attempt fetch timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ConcurrencyConfig bounds in-flight fetches.
type ConcurrencyConfig struct {
	Global  int `yaml:"global" mapstructure:"global"`
	PerHost int `yaml:"per_host" mapstructure:"per_host"`
}

// PenaltyConfig configures the host penalty tracker.
type PenaltyConfig struct {
	BaseSecs       int      `yaml:"base_secs" mapstructure:"base_secs"`
	APIBaseSecs    int      `yaml:"api_base_secs" mapstructure:"api_base_secs"`
	MaxPenaltySecs int      `yaml:"max_penalty_secs" mapstructure:"max_penalty_secs"`
	MaxFailures    int      `yaml:"max_failures" mapstructure:"max_failures"`
	APISuffixes    []string `yaml:"api_suffixes" mapstructure:"api_suffixes"`
}

// Tracker converts the config into a resilience.PenaltyConfig.
func (c PenaltyConfig) Tracker() resilience.PenaltyConfig {
	return resilience.PenaltyConfig{
		Base:        time.Duration(c.BaseSecs) * time.Second,
		APIBase:     time.Duration(c.APIBaseSecs) * time.Second,
		MaxPenalty:  time.Duration(c.MaxPenaltySecs) * time.Second,
		MaxFailures: c.MaxFailures,
		APISuffixes: c.APISuffixes,
	}
}

// SearchConfig configures the search fallback chain.
type SearchConfig struct {
	Chain         []string `yaml:"chain" mapstructure:"chain"`
	MinResults    int      `yaml:"min_results" mapstructure:"min_results"`
	MaxResults    int      `yaml:"max_results" mapstructure:"max_results"`
	PositiveHints []string `yaml:"positive_hints" mapstructure:"positive_hints"`
	NegativeHints []string `yaml:"negative_hints" mapstructure:"negative_hints"`
}

// GoogleConfig configures the Google Custom Search backend.
type GoogleConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	CX      string `yaml:"cx" mapstructure:"cx"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig configures the Jina search backend.
type JinaConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey        string `yaml:"api_key" mapstructure:"api_key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// DuckDuckGoConfig configures the DuckDuckGo HTML backend.
type DuckDuckGoConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Region  string `yaml:"region" mapstructure:"region"`
}

// ClassifiedsConfig configures the last-resort classifieds crawl.
type ClassifiedsConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Category string `yaml:"category" mapstructure:"category"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// DedupConfig configures TTLs of the dedup caches.
type DedupConfig struct {
	URLTTLHours        int `yaml:"url_ttl_hours" mapstructure:"url_ttl_hours"`
	QueryCacheTTLHours int `yaml:"query_cache_ttl_hours" mapstructure:"query_cache_ttl_hours"`
	QueryDoneTTLHours  int `yaml:"query_done_ttl_hours" mapstructure:"query_done_ttl_hours"`
	SweepIntervalMins  int `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
}

// ValidateConfig configures the lead validator.
type ValidateConfig struct {
	JobOfferOverride  int      `yaml:"job_offer_override" mapstructure:"job_offer_override"`
	DenyDomains       []string `yaml:"deny_domains" mapstructure:"deny_domains"`
	PlaceholderPhones []string `yaml:"placeholder_phones" mapstructure:"placeholder_phones"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	MinScore    int            `yaml:"min_score" mapstructure:"min_score"`
	RecencyDays int            `yaml:"recency_days" mapstructure:"recency_days"`
	Weights     map[string]int `yaml:"weights" mapstructure:"weights"`
}

// DorkConfig configures the adaptive dork selector.
type DorkConfig struct {
	SeedFile       string             `yaml:"seed_file" mapstructure:"seed_file"`
	MinTrials      int                `yaml:"min_trials" mapstructure:"min_trials"`
	CorePercentile float64            `yaml:"core_percentile" mapstructure:"core_percentile"`
	SourceSplit    map[string]float64 `yaml:"source_split" mapstructure:"source_split"`
	Seed           int64              `yaml:"seed" mapstructure:"seed"`
}

// WasserfallConfig configures the 3-state throughput controller.
type WasserfallConfig struct {
	Initial              string     `yaml:"initial" mapstructure:"initial"`
	PhoneRateThreshold   float64    `yaml:"phone_rate_threshold" mapstructure:"phone_rate_threshold"`
	LowErrorRate         float64    `yaml:"low_error_rate" mapstructure:"low_error_rate"`
	ErrorSpikeRate       float64    `yaml:"error_spike_rate" mapstructure:"error_spike_rate"`
	MinRunsBeforeUpgrade int        `yaml:"min_runs_before_upgrade" mapstructure:"min_runs_before_upgrade"`
	Conservative         model.Mode `yaml:"conservative" mapstructure:"conservative"`
	Moderate             model.Mode `yaml:"moderate" mapstructure:"moderate"`
	Aggressive           model.Mode `yaml:"aggressive" mapstructure:"aggressive"`
}

// Modes returns the three modes ordered from conservative to aggressive,
// with names filled in.
func (c WasserfallConfig) Modes() []model.Mode {
	cons, mod, agg := c.Conservative, c.Moderate, c.Aggressive
	cons.Name = model.ModeConservative
	mod.Name = model.ModeModerate
	agg.Name = model.ModeAggressive
	return []model.Mode{cons, mod, agg}
}

// RunConfig holds per-run parameters. CLI flags override these.
type RunConfig struct {
	Industry           string   `yaml:"industry" mapstructure:"industry"`
	QueriesPerIndustry int      `yaml:"queries_per_industry" mapstructure:"queries_per_industry"`
	DateRestrict       string   `yaml:"date_restrict" mapstructure:"date_restrict"`
	Mode               string   `yaml:"mode" mapstructure:"mode"`
	DryRun             bool     `yaml:"dry_run" mapstructure:"dry_run"`
	DeadlineMins       int      `yaml:"deadline_mins" mapstructure:"deadline_mins"`
	QuerySleepMs       int      `yaml:"query_sleep_ms" mapstructure:"query_sleep_ms"`
	QueryJitterMs      int      `yaml:"query_jitter_ms" mapstructure:"query_jitter_ms"`
	LoopIntervalMins   int      `yaml:"loop_interval_mins" mapstructure:"loop_interval_mins"`
	RequireCandidate   bool     `yaml:"require_candidate" mapstructure:"require_candidate"`
	SourceAllowList    []string `yaml:"source_allow_list" mapstructure:"source_allow_list"`
}

// MonitoringConfig configures trailing-run alerting.
type MonitoringConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackRuns      int     `yaml:"lookback_runs" mapstructure:"lookback_runs"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	MinPhoneFindRate  float64 `yaml:"min_phone_find_rate" mapstructure:"min_phone_find_rate"`
	MaxErrorRate      float64 `yaml:"max_error_rate" mapstructure:"max_error_rate"`
	MaxFailedRuns     int     `yaml:"max_failed_runs" mapstructure:"max_failed_runs"`
	MaxDailySpendUSD  float64 `yaml:"max_daily_spend_usd" mapstructure:"max_daily_spend_usd"`
}

// PricingConfig holds per-query prices of the paid search backends.
type PricingConfig struct {
	GooglePerQuery float64 `yaml:"google_per_query" mapstructure:"google_per_query"`
	JinaPerQuery   float64 `yaml:"jina_per_query" mapstructure:"jina_per_query"`
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the given file (or ./config.yaml when
// path is empty) and the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register keys so AutomaticEnv can bind them on Unmarshal.
	for _, key := range []string{
		"store.database_url", "google.api_key", "google.cx", "jina.api_key",
		"monitoring.webhook_url", "run.industry", "run.date_restrict", "dork.seed_file",
	} {
		v.SetDefault(key, "")
	}

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "lead-scout.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 8000)
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.allowed_content_types", []string{"text/html", "application/xhtml+xml", "text/plain"})
	v.SetDefault("fetch.allow_insecure_tls", false)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	v.SetDefault("concurrency.global", 35)
	v.SetDefault("concurrency.per_host", 3)

	v.SetDefault("penalty.base_secs", 30)
	v.SetDefault("penalty.api_base_secs", 5)
	v.SetDefault("penalty.max_penalty_secs", 1800)
	v.SetDefault("penalty.max_failures", 10)
	v.SetDefault("penalty.api_suffixes", []string{"googleapis.com", "s.jina.ai", "html.duckduckgo.com"})

	v.SetDefault("search.chain", []string{EngineGoogle, EngineDuckDuckGo, EngineJina, EngineClassifieds})
	v.SetDefault("search.min_results", 5)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.positive_hints", []string{
		"/s-anzeige/*", "/stellengesuch*", "/profil*", "/profile/*", "/in/*",
		"/kontakt*", "/contact*", "/ueber-mich*", "/about*", "/team*",
	})
	v.SetDefault("search.negative_hints", []string{
		"/login*", "/signin*", "/register*", "/jobs/*", "/stellenangebote/*",
		"/job/*", "/karriere/*", "/impressum*", "/datenschutz*", "/agb*",
	})

	v.SetDefault("google.enabled", false)
	v.SetDefault("google.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("jina.enabled", false)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("duckduckgo.enabled", true)
	v.SetDefault("duckduckgo.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("duckduckgo.region", "de-de")
	v.SetDefault("classifieds.enabled", true)
	v.SetDefault("classifieds.base_url", "https://www.kleinanzeigen.de")
	v.SetDefault("classifieds.category", "s-stellengesuche")
	v.SetDefault("classifieds.max_pages", 2)

	v.SetDefault("dedup.url_ttl_hours", 7*24)
	v.SetDefault("dedup.query_cache_ttl_hours", 36)
	v.SetDefault("dedup.query_done_ttl_hours", 24)
	v.SetDefault("dedup.sweep_interval_mins", 30)

	v.SetDefault("validate.job_offer_override", 2)
	v.SetDefault("validate.deny_domains", []string{
		"stepstone.de", "indeed.com", "indeed.de", "monster.de", "arbeitsagentur.de",
		"stellenanzeigen.de", "jobware.de", "kimeta.de", "glassdoor.de",
		"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com", "youtube.com",
	})
	v.SetDefault("validate.placeholder_phones", []string{"0123456789", "01234567890", "0800123456", "01711234567"})

	v.SetDefault("scoring.min_score", 40)
	v.SetDefault("scoring.recency_days", 30)

	v.SetDefault("dork.min_trials", 3)
	v.SetDefault("dork.core_percentile", 0.3)
	v.SetDefault("dork.source_split", map[string]float64{EngineGoogle: 0.25, EngineDuckDuckGo: 0.75})
	v.SetDefault("dork.seed", 0)

	v.SetDefault("wasserfall.initial", model.ModeConservative)
	v.SetDefault("wasserfall.phone_rate_threshold", 0.25)
	v.SetDefault("wasserfall.low_error_rate", 0.10)
	v.SetDefault("wasserfall.error_spike_rate", 0.30)
	v.SetDefault("wasserfall.min_runs_before_upgrade", 3)
	v.SetDefault("wasserfall.conservative.rate_per_minute", 10)
	v.SetDefault("wasserfall.conservative.dork_slot_min", 2)
	v.SetDefault("wasserfall.conservative.dork_slot_max", 4)
	v.SetDefault("wasserfall.conservative.explore_rate", 0.10)
	v.SetDefault("wasserfall.moderate.rate_per_minute", 20)
	v.SetDefault("wasserfall.moderate.dork_slot_min", 4)
	v.SetDefault("wasserfall.moderate.dork_slot_max", 8)
	v.SetDefault("wasserfall.moderate.explore_rate", 0.15)
	v.SetDefault("wasserfall.aggressive.rate_per_minute", 40)
	v.SetDefault("wasserfall.aggressive.dork_slot_min", 8)
	v.SetDefault("wasserfall.aggressive.dork_slot_max", 12)
	v.SetDefault("wasserfall.aggressive.explore_rate", 0.20)

	v.SetDefault("run.mode", string(model.OperatingStandard))
	v.SetDefault("run.queries_per_industry", 0)
	v.SetDefault("run.dry_run", false)
	v.SetDefault("run.require_candidate", false)
	v.SetDefault("run.deadline_mins", 30)
	v.SetDefault("run.query_sleep_ms", 1500)
	v.SetDefault("run.query_jitter_ms", 1000)
	v.SetDefault("run.loop_interval_mins", 30)

	v.SetDefault("monitoring.lookback_runs", 10)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.min_phone_find_rate", 0.05)
	v.SetDefault("monitoring.max_error_rate", 0.4)
	v.SetDefault("monitoring.max_failed_runs", 3)
	v.SetDefault("monitoring.max_daily_spend_usd", 5.0)

	v.SetDefault("pricing.google_per_query", 0.005)
	v.SetDefault("pricing.jina_per_query", 0.002)

	v.SetDefault("server.metrics_addr", ":9090")

	v.SetDefault("industries", map[string][]string{
		"versicherung": {"versicherung", "versicherungsvertreter", "makler", "finanzberater"},
		"energie":      {"energie", "strom", "gas", "photovoltaik", "solar"},
		"telekom":      {"telekommunikation", "glasfaser", "mobilfunk", "dsl"},
		"immobilien":   {"immobilien", "makler", "bauträger"},
		"medizin":      {"medizintechnik", "pharma", "außendienst medizin"},
	})
}

// Validate checks the configuration for problems that must abort a run
// before any network activity. The returned error wraps a
// *resilience.ConfigurationError.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if !model.OperatingMode(c.Run.Mode).Valid() {
		problems = append(problems, fmt.Sprintf("unknown run.mode %q", c.Run.Mode))
	}
	if c.Run.Industry != "" {
		if _, ok := c.Industries[strings.ToLower(c.Run.Industry)]; !ok {
			problems = append(problems, fmt.Sprintf("unknown run.industry %q", c.Run.Industry))
		}
	}
	if c.Run.QueriesPerIndustry < 0 {
		problems = append(problems, "run.queries_per_industry must be >= 0")
	}

	if c.Google.Enabled && (c.Google.APIKey == "" || c.Google.CX == "") {
		problems = append(problems, "google.api_key and google.cx are required when google is enabled")
	}
	if c.Jina.Enabled && c.Jina.APIKey == "" {
		problems = append(problems, "jina.api_key is required when jina is enabled")
	}
	if len(c.EnabledEngines()) == 0 {
		problems = append(problems, "at least one search backend must be enabled")
	}
	known := []string{EngineGoogle, EngineJina, EngineDuckDuckGo, EngineClassifieds}
	for _, name := range c.Search.Chain {
		if !slices.Contains(known, name) {
			problems = append(problems, fmt.Sprintf("unknown search.chain engine %q", name))
		}
	}
	for name, share := range c.Dork.SourceSplit {
		if !slices.Contains(known, name) {
			problems = append(problems, fmt.Sprintf("unknown dork.source_split engine %q", name))
		}
		if share < 0 {
			problems = append(problems, fmt.Sprintf("dork.source_split.%s must be >= 0", name))
		}
	}

	if c.Concurrency.Global <= 0 || c.Concurrency.PerHost <= 0 {
		problems = append(problems, "concurrency.global and concurrency.per_host must be > 0")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		problems = append(problems, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		problems = append(problems, "fetch.max_body_bytes must be > 0")
	}
	if c.Validation.JobOfferOverride < 1 {
		problems = append(problems, "validate.job_offer_override must be >= 1")
	}
	if c.Scoring.MinScore < 0 {
		problems = append(problems, "scoring.min_score must be >= 0")
	}
	if c.Dork.CorePercentile <= 0 || c.Dork.CorePercentile > 1 {
		problems = append(problems, "dork.core_percentile must be in (0, 1]")
	}

	names := []string{model.ModeConservative, model.ModeModerate, model.ModeAggressive}
	if !slices.Contains(names, c.Wasserfall.Initial) {
		problems = append(problems, fmt.Sprintf("unknown wasserfall.initial %q", c.Wasserfall.Initial))
	}
	for _, m := range c.Wasserfall.Modes() {
		if m.DorkSlotMin < 1 || m.DorkSlotMax < m.DorkSlotMin {
			problems = append(problems, fmt.Sprintf("wasserfall.%s: need 1 <= dork_slot_min <= dork_slot_max", m.Name))
		}
		if m.ExploreRate < 0 || m.ExploreRate > 1 {
			problems = append(problems, fmt.Sprintf("wasserfall.%s.explore_rate must be in [0, 1]", m.Name))
		}
		if m.RatePerMinute <= 0 {
			problems = append(problems, fmt.Sprintf("wasserfall.%s.rate_per_minute must be > 0", m.Name))
		}
	}

	if len(problems) > 0 {
		return eris.Wrap(&resilience.ConfigurationError{Problems: problems}, "config: validate")
	}
	return nil
}

// EnabledEngines returns the enabled search backends in chain order.
func (c *Config) EnabledEngines() []string {
	enabled := map[string]bool{
		EngineGoogle:      c.Google.Enabled,
		EngineJina:        c.Jina.Enabled,
		EngineDuckDuckGo:  c.DuckDuckGo.Enabled,
		EngineClassifieds: c.Classifieds.Enabled,
	}
	var out []string
	for _, name := range c.Search.Chain {
		if enabled[name] && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
