// Package config defines the JSON-serializable (and TOML-compatible)
// configuration model for the echoair dashboard core. A single document
// describes where the emissions dataset comes from, how it is parsed, the
// dashboard defaults and variants, and the ambient services (metrics, HTTP
// server, logging).
//
// Example (trimmed):
//
//	{
//	  "job":       "echo_air",
//	  "source":    { "kind": "file", "file": { "path": "data/filtered_echo_data.zip", "member": "filtered_echo_data.csv" } },
//	  "parser":    { "kind": "csv", "options": { "lazy_quotes": true } },
//	  "dashboard": { "default_program": "E-GGRT", "default_state": "TX", "default_top_n": 10 },
//	  "metrics":   { "backend": "pushgateway", "pushgateway_url": "http://localhost:9091" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Job names this deployment for metrics grouping and log fields.
	Job string `json:"job" toml:"job"`

	// Source describes where the emissions rows come from.
	Source Source `json:"source" toml:"source"`

	// Parser configures how source bytes are turned into rows (CSV only today).
	Parser Parser `json:"parser" toml:"parser"`

	// Dashboard carries selector defaults and the two display variants.
	Dashboard Dashboard `json:"dashboard" toml:"dashboard"`

	Metrics Metrics `json:"metrics" toml:"metrics"`
	Server  Server  `json:"server" toml:"server"`
	Log     Log     `json:"log" toml:"log"`
}

// Source identifies the data source. Kind selects which of the nested blocks
// is read; the others are ignored.
type Source struct {
	// Kind is one of "file", "http", "s3", "sql".
	Kind string `json:"kind" toml:"kind"`

	File SourceFile `json:"file" toml:"file"`
	HTTP SourceHTTP `json:"http" toml:"http"`
	S3   SourceS3   `json:"s3" toml:"s3"`
	SQL  SourceSQL  `json:"sql" toml:"sql"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to a CSV file or a .zip archive.
	Path string `json:"path" toml:"path"`

	// Member names the CSV entry inside a .zip archive. When empty and the
	// archive holds exactly one .csv entry, that entry is used.
	Member string `json:"member" toml:"member"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL                string `json:"url" toml:"url"`
	Member             string `json:"member" toml:"member"`
	TimeoutSeconds     int    `json:"timeout_seconds" toml:"timeout_seconds"`
	MaxRetries         int    `json:"max_retries" toml:"max_retries"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify" toml:"insecure_skip_verify"`

	// CacheDir keeps the downloaded archive between runs when set.
	CacheDir string `json:"cache_dir" toml:"cache_dir"`
}

// SourceS3 holds configuration for the "s3" source kind. Credentials come from
// the default AWS chain.
type SourceS3 struct {
	Bucket    string `json:"bucket" toml:"bucket"`
	Key       string `json:"key" toml:"key"`
	Member    string `json:"member" toml:"member"`
	Region    string `json:"region" toml:"region"`
	Endpoint  string `json:"endpoint" toml:"endpoint"`
	PathStyle bool   `json:"path_style" toml:"path_style"`
}

// SourceSQL holds configuration for the "sql" source kind.
type SourceSQL struct {
	// Driver is one of "sqlite", "postgres", "mssql", "mysql".
	Driver string `json:"driver" toml:"driver"`
	DSN    string `json:"dsn" toml:"dsn"`

	// Table is read with SELECT * when Query is empty.
	Table string `json:"table" toml:"table"`
	Query string `json:"query" toml:"query"`
}

// Parser selects how to parse the raw source into rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind" toml:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   comma (string), lazy_quotes (bool), trim_space (bool)
	Options Options `json:"options" toml:"options"`
}

// Dashboard configures selector defaults and the display variants.
type Dashboard struct {
	DefaultProgram string `json:"default_program" toml:"default_program"`
	DefaultState   string `json:"default_state" toml:"default_state"`
	DefaultTopN    int    `json:"default_top_n" toml:"default_top_n"`
	TopNChoices    []int  `json:"top_n_choices" toml:"top_n_choices"`

	// NonContinental lists state codes excluded from "Continental US".
	NonContinental []string `json:"non_continental" toml:"non_continental"`

	// IncludeTopPollutants adds the per-facility pollutant list to ranked rows.
	IncludeTopPollutants bool `json:"include_top_pollutants" toml:"include_top_pollutants"`

	// YearSortDescending orders year choices newest first.
	YearSortDescending bool `json:"year_sort_descending" toml:"year_sort_descending"`
}

// Metrics selects and configures the metrics backend.
type Metrics struct {
	// Backend is one of "none", "pushgateway", "datadog".
	Backend        string  `json:"backend" toml:"backend"`
	PushgatewayURL string  `json:"pushgateway_url" toml:"pushgateway_url"`
	Datadog        Datadog `json:"datadog" toml:"datadog"`
}

// Datadog configures the DogStatsD backend.
type Datadog struct {
	Addr      string   `json:"addr" toml:"addr"`
	Namespace string   `json:"namespace" toml:"namespace"`
	Tags      []string `json:"tags" toml:"tags"`
}

// Server configures the HTTP API.
type Server struct {
	Addr                   string `json:"addr" toml:"addr"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds" toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds" toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" toml:"shutdown_timeout_seconds"`
}

// Log configures the process logger.
type Log struct {
	// Level is a logrus level name ("debug", "info", ...).
	Level string `json:"level" toml:"level"`
	// Format is "text" or "json".
	Format string `json:"format" toml:"format"`
}

// DefaultNonContinental is the fixed list of territories and non-contiguous
// states excluded from "Continental US".
var DefaultNonContinental = []string{"HI", "AK", "GU", "VI", "AS", "MP", "PR"}

// DefaultTopNChoices is the fixed set of top-N sizes offered to users.
var DefaultTopNChoices = []int{5, 10, 25, 50, 100}

// Default returns a Config populated with the dashboard's stock settings.
// Load decodes files on top of this value, so omitted keys keep defaults.
func Default() Config {
	return Config{
		Job: "echo_air",
		Source: Source{
			Kind: "file",
			File: SourceFile{
				Path:   "data/filtered_echo_data.zip",
				Member: "filtered_echo_data.csv",
			},
			HTTP: SourceHTTP{TimeoutSeconds: 60, MaxRetries: 3},
		},
		Parser: Parser{Kind: "csv", Options: Options{}},
		Dashboard: Dashboard{
			DefaultProgram:       "E-GGRT",
			DefaultState:         "TX",
			DefaultTopN:          10,
			TopNChoices:          append([]int(nil), DefaultTopNChoices...),
			NonContinental:       append([]string(nil), DefaultNonContinental...),
			IncludeTopPollutants: true,
			YearSortDescending:   true,
		},
		Metrics: Metrics{Backend: "none"},
		Server: Server{
			Addr:                   ":8080",
			ReadTimeoutSeconds:     15,
			WriteTimeoutSeconds:    60,
			ShutdownTimeoutSeconds: 10,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path on top of Default. Files ending in
// ".toml" are decoded with BurntSushi/toml, everything else as JSON. An empty
// path returns the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	c := Default()
	if strings.TrimSpace(path) != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.NewDecoder(f).Decode(&c); err != nil {
				return Config{}, fmt.Errorf("decode toml config %s: %w", path, err)
			}
		} else {
			dec := json.NewDecoder(f)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&c); err != nil {
				return Config{}, fmt.Errorf("decode json config %s: %w", path, err)
			}
		}
	}
	if c.Parser.Options == nil {
		c.Parser.Options = Options{}
	}
	ApplyEnv(&c, os.Getenv)
	return c, nil
}

// ApplyEnv overrides selected settings from the environment (12-factor
// style). getenv is injected for tests.
func ApplyEnv(c *Config, getenv func(string) string) {
	if v := getenv("ECHOAIR_SOURCE_PATH"); v != "" {
		c.Source.Kind = "file"
		c.Source.File.Path = v
	}
	if v := getenv("METRICS_BACKEND"); v != "" {
		c.Metrics.Backend = v
	}
	if v := getenv("PUSHGATEWAY_URL"); v != "" {
		c.Metrics.PushgatewayURL = v
	}
	if v := getenv("DD_AGENT_ADDR"); v != "" {
		c.Metrics.Datadog.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Options is a small helper to fetch typed values from free-form option maps
// decoded from JSON or TOML. It performs only minimal coercion and returns
// the provided default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers arrive as float64
// and TOML integers as int64; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def when the key
// is missing or empty. Used for single-character settings such as a CSV
// delimiter; the literal "\t" is accepted for tab.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			if s == `\t` {
				return '\t'
			}
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON makes a missing or null "options" object decode to a
// non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
