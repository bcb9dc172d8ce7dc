// Package config loads the scanner configuration. Values come from built-in
// defaults, then an optional YAML file (CONFIG_FILE), then environment
// variables, which may themselves be loaded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/indicator"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/marketdata"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/signal"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfig is wrapped by every load and validation error.
var ErrConfig = errors.New("invalid configuration")

// Data source kinds.
const (
	SourceBinance = marketdata.SourceBinance
	SourceOKX     = marketdata.SourceOKX
	SourceSQLite  = marketdata.SourceSQLite
)

// Indicator holds the oscillator parameters.
type Indicator struct {
	FisherLength int     `yaml:"fisher_length"`
	EMALength    int     `yaml:"ema_length"`
	RangeOffset  float64 `yaml:"range_offset"`
	SignalPolicy string  `yaml:"signal_policy"`
}

// DataSource selects and configures where candle windows come from.
type DataSource struct {
	Kind           string `yaml:"kind"`
	WindowSize     int    `yaml:"window_size"`
	BinanceBaseURL string `yaml:"binance_base_url"`
	OKXBaseURL     string `yaml:"okx_base_url"`
	SQLitePath     string `yaml:"sqlite_path"`
	RecordCandles  bool   `yaml:"record_candles"`
}

// Telegram holds the bot credentials. Both empty means log-only delivery.
type Telegram struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	BaseURL  string `yaml:"base_url"`
}

// Redis enables cross-replica dedup when Addr is set.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// Scheduler tunes the tick loop and job timeouts.
type Scheduler struct {
	Timezone         string        `yaml:"timezone"`
	SafetyScanPeriod time.Duration `yaml:"safety_scan_period"`
	MaxConcurrency   int           `yaml:"max_concurrency"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
	NotifyTimeout    time.Duration `yaml:"notify_timeout"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
	RunOnStart       bool          `yaml:"run_on_start"`
	StartupProbe     bool          `yaml:"startup_probe"`
}

// Breaker configures the per-pair market data circuit breaker.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Reset       time.Duration `yaml:"reset"`
}

// Config holds all application configuration. It is static for the process
// lifetime.
type Config struct {
	Symbols    []string   `yaml:"symbols"`
	Intervals  []string   `yaml:"intervals"`
	Indicator  Indicator  `yaml:"indicator"`
	DataSource DataSource `yaml:"data_source"`
	Telegram   Telegram   `yaml:"telegram"`
	WebhookURL string     `yaml:"webhook_url"`
	Redis      Redis      `yaml:"redis"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Breaker    Breaker    `yaml:"breaker"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	Debug       bool   `yaml:"debug"`

	// Filled by Validate.
	intervals []model.Interval
	location  *time.Location
	policy    signal.Policy
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Symbols:   []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "AVAXUSDT"},
		Intervals: []string{"5m", "15m"},
		Indicator: Indicator{
			FisherLength: 21,
			EMALength:    89,
			RangeOffset:  2.5,
			SignalPolicy: string(signal.RepeatOnEveryTick),
		},
		DataSource: DataSource{
			Kind:       SourceBinance,
			WindowSize: 100,
			SQLitePath: "data/candles.db",
		},
		Scheduler: Scheduler{
			Timezone:         "Europe/Istanbul",
			SafetyScanPeriod: time.Minute,
			MaxConcurrency:   4,
			FetchTimeout:     10 * time.Second,
			NotifyTimeout:    10 * time.Second,
			ShutdownGrace:    15 * time.Second,
			RunOnStart:       true,
			StartupProbe:     true,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Reset:       2 * time.Minute,
		},
		MetricsAddr: ":9090",
		LogLevel:    "info",
	}
}

// Load reads .env (if present), CONFIG_FILE (if set) and the environment,
// then validates the result.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("[config] no %s file found, using environment variables", envFile)
	}
	cfg, err := LoadFrom(os.Getenv("CONFIG_FILE"), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom builds a config from defaults, the YAML file at path (skipped when
// empty) and lookup. It does not validate.
func LoadFrom(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open config: %v", ErrConfig, err)
	}
	defer file.Close()

	// Decoding into the populated struct keeps defaults for absent keys.
	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("%w: decode yaml %s: %v", ErrConfig, path, err)
	}
	return nil
}

// envReader applies environment overrides and remembers the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) fail(key, v string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s=%q: %v", ErrConfig, key, v, err)
	}
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v, ok := r.get(key); ok {
		*dst = splitList(v)
	}
}

func (r *envReader) int(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) bool(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	r := &envReader{lookup: lookup}

	r.list("SYMBOLS", &c.Symbols)
	r.list("INTERVALS", &c.Intervals)

	r.int("FISHER_LENGTH", &c.Indicator.FisherLength)
	r.int("EMA_LENGTH", &c.Indicator.EMALength)
	r.float("RANGE_OFFSET", &c.Indicator.RangeOffset)
	r.str("SIGNAL_POLICY", &c.Indicator.SignalPolicy)

	r.str("DATA_SOURCE", &c.DataSource.Kind)
	r.int("WINDOW_SIZE", &c.DataSource.WindowSize)
	r.str("BINANCE_BASE_URL", &c.DataSource.BinanceBaseURL)
	r.str("OKX_BASE_URL", &c.DataSource.OKXBaseURL)
	r.str("SQLITE_PATH", &c.DataSource.SQLitePath)
	r.bool("RECORD_CANDLES", &c.DataSource.RecordCandles)

	r.str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	r.str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	r.str("TELEGRAM_BASE_URL", &c.Telegram.BaseURL)
	r.str("WEBHOOK_URL", &c.WebhookURL)

	r.str("REDIS_ADDR", &c.Redis.Addr)
	r.str("REDIS_PASSWORD", &c.Redis.Password)

	r.str("TIMEZONE", &c.Scheduler.Timezone)
	r.duration("SAFETY_SCAN_PERIOD", &c.Scheduler.SafetyScanPeriod)
	r.int("MAX_CONCURRENCY", &c.Scheduler.MaxConcurrency)
	r.duration("FETCH_TIMEOUT", &c.Scheduler.FetchTimeout)
	r.duration("NOTIFY_TIMEOUT", &c.Scheduler.NotifyTimeout)
	r.duration("SHUTDOWN_GRACE", &c.Scheduler.ShutdownGrace)
	r.bool("RUN_ON_START", &c.Scheduler.RunOnStart)
	r.bool("STARTUP_PROBE", &c.Scheduler.StartupProbe)

	r.int("BREAKER_MAX_FAILURES", &c.Breaker.MaxFailures)
	r.duration("BREAKER_RESET", &c.Breaker.Reset)

	r.str("METRICS_ADDR", &c.MetricsAddr)
	r.str("LOG_LEVEL", &c.LogLevel)
	r.bool("DEBUG", &c.Debug)

	return r.err
}

// Validate checks the configuration and resolves derived values. Every
// error wraps ErrConfig.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	c.Symbols = normalizeSymbols(c.Symbols)
	if len(c.Symbols) == 0 {
		add("at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if seen[s] {
			add("duplicate symbol %q", s)
		}
		seen[s] = true
	}

	intervals, err := model.ParseIntervals(c.Intervals)
	switch {
	case err != nil:
		add("%v", err)
	case len(intervals) == 0:
		add("at least one interval is required")
	}
	c.intervals = intervals

	p := c.IndicatorParams()
	if err := p.Validate(); err != nil {
		add("%v", err)
	}
	if c.Indicator.RangeOffset < 0 {
		add("RANGE_OFFSET must be >= 0, got %v", c.Indicator.RangeOffset)
	}
	if c.DataSource.WindowSize < p.MinWindow() {
		add("WINDOW_SIZE %d is smaller than FISHER_LENGTH+1 (%d)", c.DataSource.WindowSize, p.MinWindow())
	}
	if c.policy, err = signal.ParsePolicy(c.Indicator.SignalPolicy); err != nil {
		add("%v", err)
	}

	switch c.DataSource.Kind {
	case SourceBinance, SourceOKX:
	case SourceSQLite:
		if c.DataSource.RecordCandles {
			add("RECORD_CANDLES cannot be used with DATA_SOURCE=sqlite")
		}
	default:
		add("unknown DATA_SOURCE %q", c.DataSource.Kind)
	}
	if c.DataSource.Kind == SourceBinance || c.DataSource.Kind == SourceOKX {
		for _, iv := range intervals {
			if err := marketdata.CheckInterval(c.DataSource.Kind, iv); err != nil {
				add("INTERVALS: %v", err)
			}
		}
	}
	if (c.DataSource.Kind == SourceSQLite || c.DataSource.RecordCandles) && c.DataSource.SQLitePath == "" {
		add("SQLITE_PATH is required")
	}

	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		add("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	if c.location, err = time.LoadLocation(c.Scheduler.Timezone); err != nil {
		add("TIMEZONE: %v", err)
	}
	if sp := c.Scheduler.SafetyScanPeriod; sp != 0 {
		// Rules count minutes from midnight, so the period must divide a day.
		if m := int(sp / time.Minute); sp < 0 || sp%time.Minute != 0 || m > 24*60 || (24*60)%m != 0 {
			add("SAFETY_SCAN_PERIOD must be 0 or a whole number of minutes dividing a day, got %v", sp)
		}
	}
	if c.Scheduler.MaxConcurrency < 1 {
		add("MAX_CONCURRENCY must be >= 1")
	}
	if c.Scheduler.FetchTimeout <= 0 || c.Scheduler.NotifyTimeout <= 0 {
		add("FETCH_TIMEOUT and NOTIFY_TIMEOUT must be positive")
	}
	if c.Scheduler.ShutdownGrace < 0 {
		add("SHUTDOWN_GRACE must be >= 0")
	}
	if c.Breaker.MaxFailures < 1 {
		add("BREAKER_MAX_FAILURES must be >= 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// IndicatorParams returns the oscillator parameters.
func (c *Config) IndicatorParams() indicator.Params {
	return indicator.Params{
		Length:          c.Indicator.FisherLength,
		SmoothingLength: c.Indicator.EMALength,
		BandOffset:      c.Indicator.RangeOffset,
	}
}

// ParsedIntervals returns the intervals resolved by Validate.
func (c *Config) ParsedIntervals() []model.Interval { return c.intervals }

// Location returns the scheduling time zone resolved by Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Policy returns the signal repeat policy resolved by Validate.
func (c *Config) Policy() signal.Policy { return c.policy }

// Pairs returns the symbol x interval matrix.
func (c *Config) Pairs() []model.Pair {
	return model.Pairs(c.Symbols, c.intervals)
}

// TelegramEnabled reports whether Telegram credentials are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
