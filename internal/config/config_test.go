package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"unicode/utf8"
)

// -----------------------------------------------------------------------------
// Config decoding tests
// -----------------------------------------------------------------------------
//
// These tests validate that the JSON and TOML document shapes decode into the
// intended Go struct graph, and that Load layers files over Default.

func TestConfig_DecodeJSON(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "echo_air_ci",
	  "source": { "kind": "http", "http": { "url": "https://example.org/echo.zip", "member": "echo.csv", "max_retries": 5 } },
	  "parser": { "kind": "csv", "options": { "comma": ";", "lazy_quotes": true } },
	  "dashboard": {
	    "default_program": "E-GGRT",
	    "default_state": "CA",
	    "default_top_n": 25,
	    "top_n_choices": [5, 25],
	    "non_continental": ["HI", "AK"],
	    "include_top_pollutants": false
	  },
	  "metrics": { "backend": "datadog", "datadog": { "addr": "127.0.0.1:8125", "tags": ["env:ci"] } }
	}`

	var c Config
	if err := json.Unmarshal([]byte(js), &c); err != nil {
		t.Fatalf("json.Unmarshal(Config): %v", err)
	}

	if c.Job != "echo_air_ci" {
		t.Fatalf("job = %q, want echo_air_ci", c.Job)
	}
	if c.Source.Kind != "http" || c.Source.HTTP.URL != "https://example.org/echo.zip" || c.Source.HTTP.Member != "echo.csv" {
		t.Fatalf("source decoded = %#v", c.Source)
	}
	if c.Source.HTTP.MaxRetries != 5 {
		t.Fatalf("max_retries = %d, want 5", c.Source.HTTP.MaxRetries)
	}
	if got := c.Parser.Options.Rune("comma", ','); got != ';' {
		t.Fatalf("parser.options.comma = %q, want ';'", got)
	}
	if !c.Parser.Options.Bool("lazy_quotes", false) {
		t.Fatalf("parser.options.lazy_quotes = false, want true")
	}
	d := c.Dashboard
	if d.DefaultState != "CA" || d.DefaultTopN != 25 || d.IncludeTopPollutants {
		t.Fatalf("dashboard decoded = %#v", d)
	}
	if !reflect.DeepEqual(d.TopNChoices, []int{5, 25}) {
		t.Fatalf("top_n_choices = %v, want [5 25]", d.TopNChoices)
	}
	if !reflect.DeepEqual(d.NonContinental, []string{"HI", "AK"}) {
		t.Fatalf("non_continental = %v, want [HI AK]", d.NonContinental)
	}
	if c.Metrics.Backend != "datadog" || c.Metrics.Datadog.Addr != "127.0.0.1:8125" {
		t.Fatalf("metrics decoded = %#v", c.Metrics)
	}
}

/*
TestLoad_TOMLOverDefaults writes a partial TOML document and checks that set
keys override the defaults while omitted keys keep them.
*/
func TestLoad_TOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echoair.toml")
	const doc = `
job = "echo_air_toml"

[source]
kind = "sql"

[source.sql]
driver = "sqlite"
dsn = "file:echo.db"
table = "echo_air"

[dashboard]
default_state = "OH"

[parser.options]
comma = ";"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("METRICS_BACKEND", "")
	t.Setenv("ECHOAIR_SOURCE_PATH", "")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Job != "echo_air_toml" {
		t.Fatalf("job = %q", c.Job)
	}
	if c.Source.Kind != "sql" || c.Source.SQL.Driver != "sqlite" || c.Source.SQL.Table != "echo_air" {
		t.Fatalf("source = %#v", c.Source)
	}
	if c.Dashboard.DefaultState != "OH" {
		t.Fatalf("default_state = %q, want OH", c.Dashboard.DefaultState)
	}
	// Untouched defaults survive.
	if c.Dashboard.DefaultProgram != "E-GGRT" || c.Dashboard.DefaultTopN != 10 {
		t.Fatalf("defaults lost: %#v", c.Dashboard)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("server.addr = %q, want :8080", c.Server.Addr)
	}
	if got := c.Parser.Options.Rune("comma", ','); got != ';' {
		t.Fatalf("comma = %q, want ';'", got)
	}
}

func TestLoad_JSONRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "echoair.json")
	if err := os.WriteFile(path, []byte(`{"jobb":"typo"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Load with unknown field: want error, got nil")
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv("ECHOAIR_SOURCE_PATH", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("METRICS_BACKEND", "")
	t.Setenv("PUSHGATEWAY_URL", "")
	t.Setenv("DD_AGENT_ADDR", "")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if !reflect.DeepEqual(c, Default()) {
		t.Fatalf("Load(\"\") = %#v, want Default()", c)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"ECHOAIR_SOURCE_PATH": "/data/echo.csv",
		"METRICS_BACKEND":     "pushgateway",
		"PUSHGATEWAY_URL":     "http://pgw:9091",
		"LOG_LEVEL":           "debug",
	}
	c := Default()
	c.Source.Kind = "s3"
	ApplyEnv(&c, func(k string) string { return env[k] })

	if c.Source.Kind != "file" || c.Source.File.Path != "/data/echo.csv" {
		t.Fatalf("source after env = %#v", c.Source)
	}
	if c.Metrics.Backend != "pushgateway" || c.Metrics.PushgatewayURL != "http://pgw:9091" {
		t.Fatalf("metrics after env = %#v", c.Metrics)
	}
	if c.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want debug", c.Log.Level)
	}
	if c.Metrics.Datadog.Addr != "" {
		t.Fatalf("unset DD_AGENT_ADDR changed addr to %q", c.Metrics.Datadog.Addr)
	}
}

func TestDefault_ReturnsIndependentSlices(t *testing.T) {
	t.Parallel()

	a := Default()
	a.Dashboard.NonContinental[0] = "XX"
	a.Dashboard.TopNChoices[0] = 999

	b := Default()
	if b.Dashboard.NonContinental[0] != "HI" || b.Dashboard.TopNChoices[0] != 5 {
		t.Fatalf("Default() shares slices between calls: %#v", b.Dashboard)
	}
}

// -----------------------------------------------------------------------------
// Options helper tests (hermetic).
// -----------------------------------------------------------------------------

func TestOptions_String_Bool_Int_Rune_DefaultsAndCoercion(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":   "hello",
		"b":   true,
		"i":   float64(42), // encoding/json decodes numbers as float64
		"i64": int64(7),    // TOML integers
		"r":   ",",
		"tab": `\t`,
	}

	if got := o.String("s", "def"); got != "hello" {
		t.Fatalf("String(s) = %q, want hello", got)
	}
	if got := o.String("missing", "def"); got != "def" {
		t.Fatalf("String(missing) = %q, want def", got)
	}
	if got := o.Bool("b", false); got != true {
		t.Fatalf("Bool(b) = %v, want true", got)
	}
	if got := o.Bool("s", true); got != true {
		t.Fatalf("Bool(wrong type) = %v, want default true", got)
	}
	if got := o.Int("i", 0); got != 42 {
		t.Fatalf("Int(i) = %d, want 42", got)
	}
	if got := o.Int("i64", 0); got != 7 {
		t.Fatalf("Int(i64) = %d, want 7", got)
	}
	if got := o.Int("missing", 3); got != 3 {
		t.Fatalf("Int(missing) = %d, want 3", got)
	}
	if got := o.Rune("r", ';'); got != ',' {
		t.Fatalf("Rune(r) = %q, want ','", got)
	}
	if got := o.Rune("tab", ','); got != '\t' {
		t.Fatalf("Rune(tab) = %q, want tab", got)
	}
	if got := o.Rune("missing", 'X'); got != 'X' {
		t.Fatalf("Rune(missing) = %q, want 'X'", got)
	}

	o["r2"] = "ž"
	r := o.Rune("r2", 'x')
	if !utf8.ValidRune(r) || string(r) != "ž" {
		t.Fatalf("Rune(r2) = %#U, want ž", r)
	}
}

func TestOptions_StringMap(t *testing.T) {
	t.Parallel()

	o := Options{"m": map[string]any{"A": "a", "B": "b", "X": 1}}
	if sm := o.StringMap("m"); !reflect.DeepEqual(sm, map[string]string{"A": "a", "B": "b"}) {
		t.Fatalf("StringMap(m) = %#v, want {A:a B:b}", sm)
	}
	if sm := o.StringMap("missing"); sm == nil || len(sm) != 0 {
		t.Fatalf("StringMap(missing) = %#v, want empty map", sm)
	}
}

func TestOptions_UnmarshalJSON_NullAndMissingYieldEmptyMap(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Opts Options `json:"options"`
	}
	for _, js := range []string{`{"options": null}`, `{}`} {
		var w wrapper
		w.Opts = nil
		if err := json.Unmarshal([]byte(js), &w); err != nil {
			t.Fatalf("unmarshal %s: %v", js, err)
		}
		// encoding/json does not call UnmarshalJSON for a missing key, so the
		// zero value stays nil there; helpers on a nil map still return defaults.
		if got := w.Opts.String("any", "def"); got != "def" {
			t.Fatalf("%s: String(any) = %q, want def", js, got)
		}
	}
	var w wrapper
	if err := json.Unmarshal([]byte(`{"options": null}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Opts == nil || len(w.Opts) != 0 {
		t.Fatalf("Opts after null unmarshal = %#v, want non-nil empty map", w.Opts)
	}
}
