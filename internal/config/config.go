// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/forumtrail/forumtrail/internal/archive"
	"github.com/forumtrail/forumtrail/internal/extract"
)

// Service modes. Production hides the operator-only crawl endpoints.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Storage providers.
const (
	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Store     StoreConfig     `mapstructure:"store"`
	DB        DBConfig        `mapstructure:"db"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// SiteConfig describes the one site this service archives.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	ListingPath    string `mapstructure:"listing_path"`
	FirstDate      string `mapstructure:"first_date"`
	UTCOffsetHours int    `mapstructure:"utc_offset_hours"`
}

// ListingURL is the root listing page crawls start from.
func (s SiteConfig) ListingURL() string {
	if s.ListingPath == "" {
		return s.BaseURL
	}
	return strings.TrimSuffix(s.BaseURL, "/") + "/" + strings.TrimPrefix(s.ListingPath, "/")
}

// Location is the site's fixed publishing zone. Date math (seeding,
// anniversary lookups) happens in this zone, not in server local time.
func (s SiteConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", s.UTCOffsetHours), s.UTCOffsetHours*3600)
}

// CrawlConfig governs the page loop and the historical endpoints.
type CrawlConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	PageDelayMs     int    `mapstructure:"page_delay_ms"`
	DeadlineSeconds int    `mapstructure:"deadline_seconds"`
	BatchMaxDays    int    `mapstructure:"batch_max_days"`
	DayPacingMs     int    `mapstructure:"day_pacing_ms"`
	LightBudget     int    `mapstructure:"light_budget"`
}

// Timeout bounds a single page fetch.
func (c CrawlConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PageDelay is the fixed pause between listing pages.
func (c CrawlConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

// Deadline bounds one whole crawl invocation.
func (c CrawlConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// DayPacing is the pause between dates in batch and month/day crawls.
func (c CrawlConfig) DayPacing() time.Duration {
	return time.Duration(c.DayPacingMs) * time.Millisecond
}

// ScheduleConfig controls the in-process periodic runner.
type ScheduleConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	Light           bool `mapstructure:"light"`
	Backfill        bool `mapstructure:"backfill"`
}

// Interval is the tick period of the runner.
func (s ScheduleConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// StoreConfig selects and tunes the persistence layer.
type StoreConfig struct {
	Provider      string `mapstructure:"provider"`
	BulkInsert    bool   `mapstructure:"bulk_insert"`
	ArticlesTable string `mapstructure:"articles_table"`
	ProgressTable string `mapstructure:"progress_table"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int    `mapstructure:"max_conns"`
	MinConns               int    `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// MaxConnLifetime converts the lifetime knob into a duration.
func (d DBConfig) MaxConnLifetime() time.Duration {
	return time.Duration(d.MaxConnLifetimeMinutes) * time.Minute
}

// ExtractorConfig selects the listing-page extraction strategy.
type ExtractorConfig struct {
	Profile string `mapstructure:"profile"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FORUMTRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", ModeDevelopment)
	// Required keys get empty defaults so environment-only values are
	// visible to Unmarshal; Validate still rejects them when unset.
	v.SetDefault("site.base_url", "")
	v.SetDefault("site.listing_path", "")
	v.SetDefault("site.first_date", "20090707")
	v.SetDefault("site.utc_offset_hours", 9)
	v.SetDefault("crawl.user_agent", "forumtrail-bot/0.1")
	v.SetDefault("crawl.timeout_seconds", 15)
	v.SetDefault("crawl.page_delay_ms", 500)
	v.SetDefault("crawl.deadline_seconds", 120)
	v.SetDefault("crawl.batch_max_days", 7)
	v.SetDefault("crawl.day_pacing_ms", 500)
	v.SetDefault("crawl.light_budget", 1)
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.interval_seconds", 60)
	v.SetDefault("schedule.light", true)
	v.SetDefault("schedule.backfill", true)
	v.SetDefault("store.provider", ProviderPostgres)
	v.SetDefault("store.bulk_insert", true)
	v.SetDefault("store.articles_table", "article_urls")
	v.SetDefault("store.progress_table", "scrape_progress")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("extractor.profile", extract.ProfileDOM)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.Mode != ModeDevelopment && c.Server.Mode != ModeProduction {
		return fmt.Errorf("server.mode must be %q or %q", ModeDevelopment, ModeProduction)
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if u, err := url.Parse(c.Site.BaseURL); err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL")
	}
	if !archive.ValidDate(c.Site.FirstDate) {
		return fmt.Errorf("site.first_date must be a YYYYMMDD date")
	}
	if c.Crawl.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawl.timeout_seconds must be > 0")
	}
	if c.Crawl.DeadlineSeconds <= 0 {
		return fmt.Errorf("crawl.deadline_seconds must be > 0")
	}
	if c.Crawl.BatchMaxDays <= 0 {
		return fmt.Errorf("crawl.batch_max_days must be > 0")
	}
	if c.Crawl.LightBudget <= 0 {
		return fmt.Errorf("crawl.light_budget must be > 0")
	}
	if c.Schedule.Enabled && c.Schedule.IntervalSeconds <= 0 {
		return fmt.Errorf("schedule.interval_seconds must be > 0 when the schedule is enabled")
	}
	switch c.Store.Provider {
	case ProviderPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when store.provider is %q", ProviderPostgres)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("store.provider must be %q or %q", ProviderPostgres, ProviderMemory)
	}
	if c.Extractor.Profile != extract.ProfileDOM && c.Extractor.Profile != extract.ProfilePattern {
		return fmt.Errorf("extractor.profile must be %q or %q", extract.ProfileDOM, extract.ProfilePattern)
	}
	return nil
}
