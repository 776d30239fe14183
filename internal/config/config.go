// Package config holds the typed runtime configuration and loads it through
// viper from a YAML file, PDFSEARCH_* environment variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/FranksOps/pdfsearch/internal/fingerprint"
	"github.com/FranksOps/pdfsearch/internal/pdfdoc"
	"github.com/FranksOps/pdfsearch/internal/report"
	"github.com/FranksOps/pdfsearch/internal/serp"
	"github.com/FranksOps/pdfsearch/pkg/useragent"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PDFSEARCH_FILTER_TIMEOUT.
const EnvPrefix = "PDFSEARCH"

// SearchConfig controls discovery.
type SearchConfig struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Region     string        `mapstructure:"region" yaml:"region"`
	SafeSearch string        `mapstructure:"safe_search" yaml:"safe_search"`
	MaxPages   int           `mapstructure:"max_pages" yaml:"max_pages"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// NumResults is used when a request does not specify a count.
	NumResults int `mapstructure:"num_results" yaml:"num_results"`
}

// ValidateConfig controls the HEAD stage.
type ValidateConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Concurrency caps in-flight checks; 0 runs every check at once.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// FilterConfig controls the download-and-count stage.
type FilterConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	TempDir     string        `mapstructure:"temp_dir" yaml:"temp_dir"`
	Parser      string        `mapstructure:"parser" yaml:"parser"`
}

// TransportConfig is shared by every outbound request.
type TransportConfig struct {
	Fingerprint string `mapstructure:"fingerprint" yaml:"fingerprint"`
	// InsecureSkipVerify disables certificate checks on validation and
	// filter sessions. On by default to maximise link coverage.
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	MaxRedirects       int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	UserAgents         []string      `mapstructure:"user_agents" yaml:"user_agents"`
	UserAgentMode      string        `mapstructure:"user_agent_mode" yaml:"user_agent_mode"`
	Proxies            []string      `mapstructure:"proxies" yaml:"proxies"`
	ProxyFile          string        `mapstructure:"proxy_file" yaml:"proxy_file"`
	ProxyMaxFailures   int           `mapstructure:"proxy_max_failures" yaml:"proxy_max_failures"`
	ProxyCooldown      time.Duration `mapstructure:"proxy_cooldown" yaml:"proxy_cooldown"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// MetricsConfig controls Prometheus exposure.
type MetricsConfig struct {
	// Enabled mounts /metrics on the API server.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Addr, when set, starts a standalone metrics listener.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the full runtime configuration.
type Config struct {
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Validate  ValidateConfig  `mapstructure:"validate" yaml:"validate"`
	Filter    FilterConfig    `mapstructure:"filter" yaml:"filter"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Search: SearchConfig{
			BaseURL:    serp.DefaultDuckDuckGoURL,
			Region:     "wt-wt",
			SafeSearch: string(serp.SafeModerate),
			MaxPages:   5,
			Timeout:    15 * time.Second,
			NumResults: 10,
		},
		Validate: ValidateConfig{
			Timeout: 10 * time.Second,
		},
		Filter: FilterConfig{
			Timeout: 15 * time.Second,
			TempDir: os.TempDir(),
			Parser:  string(pdfdoc.BackendLedongthuc),
		},
		Transport: TransportConfig{
			Fingerprint:        string(fingerprint.ProfileGo),
			InsecureSkipVerify: true,
			MaxRedirects:       10,
			UserAgents:         []string{useragent.Default},
			UserAgentMode:      string(useragent.ModeFixed),
			ProxyMaxFailures:   3,
			ProxyCooldown:      5 * time.Minute,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8000",
			AllowedOrigins:    []string{"http://localhost:5173", "http://127.0.0.1:5173"},
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			ServiceName: "pdfsearch",
			SampleRatio: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: string(report.FormatText),
		},
	}
}

// SetDefaults registers Default() under its viper keys so environment
// variables resolve for every key.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("search.base_url", d.Search.BaseURL)
	v.SetDefault("search.region", d.Search.Region)
	v.SetDefault("search.safe_search", d.Search.SafeSearch)
	v.SetDefault("search.max_pages", d.Search.MaxPages)
	v.SetDefault("search.timeout", d.Search.Timeout)
	v.SetDefault("search.num_results", d.Search.NumResults)

	v.SetDefault("validate.timeout", d.Validate.Timeout)
	v.SetDefault("validate.concurrency", d.Validate.Concurrency)

	v.SetDefault("filter.timeout", d.Filter.Timeout)
	v.SetDefault("filter.concurrency", d.Filter.Concurrency)
	v.SetDefault("filter.temp_dir", d.Filter.TempDir)
	v.SetDefault("filter.parser", d.Filter.Parser)

	v.SetDefault("transport.fingerprint", d.Transport.Fingerprint)
	v.SetDefault("transport.insecure_skip_verify", d.Transport.InsecureSkipVerify)
	v.SetDefault("transport.max_redirects", d.Transport.MaxRedirects)
	v.SetDefault("transport.user_agents", d.Transport.UserAgents)
	v.SetDefault("transport.user_agent_mode", d.Transport.UserAgentMode)
	v.SetDefault("transport.proxies", d.Transport.Proxies)
	v.SetDefault("transport.proxy_file", d.Transport.ProxyFile)
	v.SetDefault("transport.proxy_max_failures", d.Transport.ProxyMaxFailures)
	v.SetDefault("transport.proxy_cooldown", d.Transport.ProxyCooldown)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("output.format", d.Output.Format)
}

// Load resolves the configuration from v. The caller is expected to have
// already read any config file into v.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: dotenv %s: %w", path, err)
	}
	return nil
}

// Merge applies the non-zero fields of override on top of base. Zero values
// in override never clear base, so a boolean cannot be switched off this way.
func Merge(base, override Config) (Config, error) {
	out := base
	if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("config: merge: %w", err)
	}
	return out, nil
}

// Check rejects values the pipeline cannot run with.
func (c Config) Check() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Search.NumResults > 0, "search.num_results must be positive, got %d", c.Search.NumResults)
	check(c.Search.MaxPages >= 0, "search.max_pages cannot be negative")
	check(c.Search.Timeout > 0, "search.timeout must be positive")
	check(c.Validate.Timeout > 0, "validate.timeout must be positive")
	check(c.Filter.Timeout > 0, "filter.timeout must be positive")
	check(c.Validate.Concurrency >= 0, "validate.concurrency cannot be negative")
	check(c.Filter.Concurrency >= 0, "filter.concurrency cannot be negative")
	check(c.Server.Addr != "", "server.addr is required")
	check(c.Tracing.SampleRatio >= 0 && c.Tracing.SampleRatio <= 1, "tracing.sample_ratio must be within [0, 1]")
	check(!c.Tracing.Enabled || c.Tracing.Endpoint != "", "tracing.endpoint is required when tracing is enabled")

	if _, err := serp.ParseSafeSearch(c.Search.SafeSearch); err != nil {
		errs = append(errs, err)
	}
	if _, err := fingerprint.ParseProfile(c.Transport.Fingerprint); err != nil {
		errs = append(errs, err)
	}
	if _, err := useragent.ParseMode(c.Transport.UserAgentMode); err != nil {
		errs = append(errs, err)
	}
	if _, err := pdfdoc.New(pdfdoc.Backend(c.Filter.Parser)); err != nil {
		errs = append(errs, err)
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	check(c.Log.Format == "" || c.Log.Format == "text" || c.Log.Format == "json", "log.format must be text or json, got %q", c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses Level. Empty means info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
