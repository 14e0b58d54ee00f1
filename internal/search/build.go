package search

import (
	"net/http"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/pkg/google"
	"github.com/sells-group/lead-scout/pkg/jina"
)

// BuildEngines constructs the enabled engines in chain order. Disabled
// engines are never constructed.
func BuildEngines(cfg *config.Config, f fetcher.Fetcher) []Engine {
	timeout := cfg.Fetch.Timeout()
	var engines []Engine
	for _, name := range cfg.EnabledEngines() {
		switch name {
		case config.EngineGoogle:
			opts := []google.Option{google.WithHTTPClient(&http.Client{Timeout: timeout})}
			if cfg.Google.BaseURL != "" {
				opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
			}
			engines = append(engines, NewGoogleEngine(google.NewClient(cfg.Google.APIKey, cfg.Google.CX, opts...), cfg.Google.BaseURL))
		case config.EngineJina:
			var opts []jina.Option
			if cfg.Jina.SearchBaseURL != "" {
				opts = append(opts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
			}
			engines = append(engines, NewJinaEngine(jina.NewClient(cfg.Jina.APIKey, opts...), cfg.Jina.SearchBaseURL))
		case config.EngineDuckDuckGo:
			engines = append(engines, NewDuckDuckGoEngine(cfg.DuckDuckGo.BaseURL, cfg.DuckDuckGo.Region,
				WithDuckDuckGoHTTPClient(&http.Client{Timeout: timeout}),
				WithDuckDuckGoUserAgent(cfg.Fetch.UserAgent),
				WithDuckDuckGoMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
			))
		case config.EngineClassifieds:
			engines = append(engines, NewClassifiedsEngine(f, cfg.Classifieds.BaseURL, cfg.Classifieds.Category, cfg.Classifieds.MaxPages))
		}
	}
	return engines
}

// OptionsFromConfig maps the search section onto Options.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		MinResults:    cfg.MinResults,
		MaxResults:    cfg.MaxResults,
		PositiveHints: cfg.PositiveHints,
		NegativeHints: cfg.NegativeHints,
	}
}
