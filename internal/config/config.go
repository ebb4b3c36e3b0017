// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/jobboard-crawler/internal/crawler"
	"github.com/JakeFAU/jobboard-crawler/internal/logging"
)

// EnvPrefix is prepended to every environment override, e.g. JOBCRAWLER_CRAWLER_JOB_TITLE.
const EnvPrefix = "JOBCRAWLER"

// Output backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig     `mapstructure:"crawler"`
	Selectors crawler.Selectors `mapstructure:"selectors"`
	Output    OutputConfig      `mapstructure:"output"`
	DB        DBConfig          `mapstructure:"db"`
	PubSub    PubSubConfig      `mapstructure:"pubsub"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Logging   logging.Config    `mapstructure:"logging"`
}

// CrawlerConfig governs what is searched and how politely it is fetched.
type CrawlerConfig struct {
	BaseURL               string   `mapstructure:"base_url"`
	JobTitle              string   `mapstructure:"job_title"`
	States                []string `mapstructure:"states"`
	UserAgent             string   `mapstructure:"user_agent"`
	Parallelism           int      `mapstructure:"parallelism"`
	DelayMs               int      `mapstructure:"delay_ms"`
	RequestTimeoutSeconds int      `mapstructure:"request_timeout_seconds"`
	AllowRevisit          bool     `mapstructure:"allow_revisit"`
	MaxBodyBytes          int      `mapstructure:"max_body_bytes"`
}

// OutputConfig selects where the JSON artifact is written.
type OutputConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	Suffix    string `mapstructure:"suffix"`
}

// DBConfig enables optional Postgres persistence when DSN is set.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RunsTable string `mapstructure:"runs_table"`
	MaxConns  int32  `mapstructure:"max_conns"`
}

// PubSubConfig enables the run-completion notification when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig enables the /metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"job-title":    "crawler.job_title",
	"states":       "crawler.states",
	"base-url":     "crawler.base_url",
	"parallelism":  "crawler.parallelism",
	"output-dir":   "output.dir",
	"backend":      "output.backend",
	"metrics-addr": "metrics.addr",
	"log-level":    "logging.level",
	"dev":          "logging.development",
}

// Load builds a Config from defaults, an optional file, the environment and
// any flags in flags that were registered under a known name.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Crawler.States = normalizeStates(cfg.Crawler.States)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", crawler.DefaultBaseURL)
	v.SetDefault("crawler.job_title", "")
	v.SetDefault("crawler.states", crawler.DefaultStates())
	v.SetDefault("crawler.user_agent", "jobboard-crawler/1.0 (+https://github.com/JakeFAU/jobboard-crawler)")
	v.SetDefault("crawler.parallelism", 8)
	v.SetDefault("crawler.delay_ms", 250)
	v.SetDefault("crawler.request_timeout_seconds", 30)
	v.SetDefault("crawler.allow_revisit", false)
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)

	sel := crawler.DefaultSelectors()
	v.SetDefault("selectors.card", sel.Card)
	v.SetDefault("selectors.title_link", sel.TitleLink)
	v.SetDefault("selectors.company", sel.Company)
	v.SetDefault("selectors.company_fallback", sel.CompanyFallback)
	v.SetDefault("selectors.location", sel.Location)
	v.SetDefault("selectors.next_page", sel.NextPage)
	v.SetDefault("selectors.description", sel.DescriptionBlock)

	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.suffix", crawler.DefaultOutputSuffix)
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "job_postings")
	v.SetDefault("db.runs_table", "crawl_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawler.JobTitle) == "" {
		return fmt.Errorf("crawler.job_title is required")
	}
	if strings.Trim(crawler.SanitizeTerm(c.Crawler.JobTitle, "_"), "_") == "" {
		return fmt.Errorf("crawler.job_title %q has no searchable characters", c.Crawler.JobTitle)
	}
	u, err := url.Parse(c.Crawler.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("crawler.base_url must be an absolute http(s) url, got %q", c.Crawler.BaseURL)
	}
	if len(c.Crawler.States) == 0 {
		return fmt.Errorf("crawler.states must not be empty")
	}
	if c.Crawler.Parallelism <= 0 {
		return fmt.Errorf("crawler.parallelism must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.request_timeout_seconds must be > 0")
	}
	switch c.Output.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir is required for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Output.GCSBucket) == "" {
			return fmt.Errorf("output.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("output.backend must be one of local, gcs, memory; got %q", c.Output.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// Delay returns the pause between requests to the same domain.
func (c CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout.
func (c CrawlerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// normalizeStates upper-cases codes and splits comma-joined entries that come
// from a single environment variable or flag value.
func normalizeStates(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, code := range strings.Split(entry, ",") {
			code = strings.ToUpper(strings.TrimSpace(code))
			if code != "" {
				out = append(out, code)
			}
		}
	}
	return out
}
