package flagsmith

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Flagsmith/flagsmith-mobile-go-client/store"
)

const (
	// Number of seconds to wait for a request to
	// complete before terminating the request.
	DefaultTimeout = 10 * time.Second

	// Default base URL for the API.
	DefaultBaseURL = "https://edge.api.flagsmith.com/api/v1/"

	// Period between two analytics flushes.
	DefaultAnalyticsFlushPeriod = 10 * time.Second
)

// config contains all configurable Client settings.
type config struct {
	baseURL              string
	timeout              time.Duration
	enableAnalytics      bool
	analyticsFlushPeriod time.Duration
	analyticsStore       AnalyticsStore
	customHeaders        map[string]string
	proxyURL             string
}

func defaultConfig() config {
	return config{
		baseURL:              DefaultBaseURL,
		timeout:              DefaultTimeout,
		analyticsFlushPeriod: DefaultAnalyticsFlushPeriod,
	}
}

// EnvConfig holds the client settings that can be supplied through the
// process environment.
type EnvConfig struct {
	EnvironmentKey       string        `env:"FLAGSMITH_ENVIRONMENT_KEY,required,notEmpty"`
	BaseURL              string        `env:"FLAGSMITH_BASE_URL" envDefault:"https://edge.api.flagsmith.com/api/v1/"`
	EnableAnalytics      bool          `env:"FLAGSMITH_ENABLE_ANALYTICS" envDefault:"false"`
	AnalyticsFlushPeriod int           `env:"FLAGSMITH_ANALYTICS_FLUSH_PERIOD" envDefault:"10"`
	AnalyticsStore       string        `env:"FLAGSMITH_ANALYTICS_STORE" envDefault:"memory"`
	RequestTimeout       time.Duration `env:"FLAGSMITH_REQUEST_TIMEOUT" envDefault:"10s"`
}

// LoadEnvConfig reads the given dotenv files (".env" when none are given),
// then parses the environment into an EnvConfig. Missing dotenv files are
// not an error.
func LoadEnvConfig(files ...string) (EnvConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return EnvConfig{}, err
		}
	}
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, err
	}
	if cfg.AnalyticsFlushPeriod <= 0 {
		return EnvConfig{}, errors.New("FLAGSMITH_ANALYTICS_FLUSH_PERIOD must be greater than zero")
	}
	return cfg, nil
}

// Options converts the configuration into client options. When analytics
// is enabled the analytics store is opened, namespaced by the environment key.
func (c EnvConfig) Options(ctx context.Context) ([]Option, error) {
	opts := []Option{
		WithBaseURL(c.BaseURL),
		WithRequestTimeout(c.RequestTimeout),
	}
	if !c.EnableAnalytics {
		return opts, nil
	}
	s, err := store.Open(ctx, c.AnalyticsStore, c.EnvironmentKey)
	if err != nil {
		return nil, err
	}
	return append(opts,
		WithAnalytics(),
		WithAnalyticsStore(s),
		WithAnalyticsFlushPeriod(time.Duration(c.AnalyticsFlushPeriod)*time.Second),
	), nil
}

func normalizeBaseURL(url string) string {
	if url == "" {
		return DefaultBaseURL
	}
	if !strings.HasSuffix(url, "/") {
		return url + "/"
	}
	return url
}
