package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/xuri/excelize/v2"

	"echoair/internal/config"
	"echoair/internal/logging"
	"echoair/internal/metrics"
	"echoair/internal/records"
)

var fixtureRows = [][]string{
	{"A", "2020", "E-GGRT", "CO2", "Metric Tons", "150", "TX", "Austin", "78701", "48453", "06", "Plant A", "30.2", "-97.7"},
	{"B", "2020", "E-GGRT", "CO2", "Metric Tons", "300", "TX", "Dallas", "75201", "48113", "06", "Plant B", "32.7", "-96.8"},
	{"A", "2019", "E-GGRT", "CO2", "Metric Tons", "70", "TX", "Austin", "78701", "48453", "06", "Plant A", "30.2", "-97.7"},
	{"", "2020", "E-GGRT", "CO2", "Metric Tons", "5", "TX", "Austin", "78701", "48453", "06", "Orphan", "", ""},
}

func header() []string {
	h := make([]string, len(records.RequiredColumns))
	for i, c := range records.RequiredColumns {
		h[i] = string(c)
	}
	return h
}

// makeTempCSV creates a CSV with the required header and the fixture rows.
func makeTempCSV(tb testing.TB) string {
	tb.Helper()
	p := filepath.Join(tb.TempDir(), "echo.csv")
	var b strings.Builder
	b.WriteString(strings.Join(header(), ","))
	b.WriteByte('\n')
	for _, r := range fixtureRows {
		b.WriteString(strings.Join(r, ","))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		tb.Fatalf("write csv: %v", err)
	}
	return p
}

// writeConfig stores cfg as JSON and returns its path.
func writeConfig(tb testing.TB, cfg config.Config) string {
	tb.Helper()
	b, err := json.Marshal(cfg)
	if err != nil {
		tb.Fatalf("marshal config: %v", err)
	}
	p := filepath.Join(tb.TempDir(), "echoair.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		tb.Fatalf("write config: %v", err)
	}
	return p
}

func fileConfig(tb testing.TB) config.Config {
	tb.Helper()
	cfg := config.Default()
	cfg.Source.File = config.SourceFile{Path: makeTempCSV(tb)}
	cfg.Log.Level = "error"
	return cfg
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSummary_Text(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, fileConfig(t))
	out, err := run(t, "summary", "--config", cfgPath, "--top", "5")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{
		"Total Emissions for 'TX' (2020): 450.0 Metric Tons",
		"Total Reporting Facilities: 2",
		"Proportion of Total Emissions from Top 5 Facilities: 100.0%",
		"Top 5 Facilities for 2020 in TX (Metric Tons)",
		"Plant B",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Plant B") > strings.Index(out, "Plant A") {
		t.Fatalf("facilities not ranked by emission:\n%s", out)
	}
}

func TestSummary_JSONAndInvalidTop(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, fileConfig(t))
	out, err := run(t, "summary", "--config", cfgPath, "--year", "2019", "--json")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var res struct {
		Stats struct {
			TotalEmissions float64 `json:"total_emissions"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Stats.TotalEmissions != 70 {
		t.Fatalf("total = %v", res.Stats.TotalEmissions)
	}

	if _, err := run(t, "summary", "--config", cfgPath, "--top", "7"); err == nil {
		t.Fatalf("top 7 should be rejected")
	}
}

func TestOptionsCmd(t *testing.T) {
	t.Parallel()

	out, err := run(t, "options", "--config", writeConfig(t, fileConfig(t)))
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	var o struct {
		States []string `json:"states"`
		Cities []string `json:"cities"`
		Years  []string `json:"years"`
	}
	if err := json.Unmarshal([]byte(out), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(o.Years) != 2 || o.Years[0] != "2020" || len(o.Cities) != 3 || o.States[0] != "Continental US" {
		t.Fatalf("options = %+v", o)
	}
}

func TestChartAndExport(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, fileConfig(t))
	dir := t.TempDir()

	svg := filepath.Join(dir, "series.svg")
	if _, err := run(t, "chart", "--config", cfgPath, "--kind", "series", "--format", "svg", "-o", svg); err != nil {
		t.Fatalf("chart: %v", err)
	}
	if b, err := os.ReadFile(svg); err != nil || !bytes.Contains(b, []byte("<svg")) {
		t.Fatalf("svg file: %v", err)
	}
	if _, err := run(t, "chart", "--config", cfgPath, "--kind", "pie"); err == nil {
		t.Fatalf("unknown chart kind should fail")
	}

	xlsx := filepath.Join(dir, "out.xlsx")
	if _, err := run(t, "export", "--config", cfgPath, "-o", xlsx); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenFile(xlsx)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	if len(f.GetSheetList()) != 4 {
		t.Fatalf("sheets = %v", f.GetSheetList())
	}
}

func TestValidateCmd(t *testing.T) {
	t.Parallel()

	out, err := run(t, "validate", "--config", writeConfig(t, fileConfig(t)), "--load")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "dataset: 3 rows, 1 dropped, 0 skipped") || !strings.Contains(out, "configuration is valid") {
		t.Fatalf("output = %q", out)
	}

	bad := config.Default()
	bad.Dashboard.DefaultTopN = 7
	out, err = run(t, "validate", "--config", writeConfig(t, bad))
	if err == nil || !strings.Contains(out, "dashboard.default_top_n") {
		t.Fatalf("invalid config: err = %v, out = %q", err, out)
	}
}

func TestLoadTable_SQLite(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "echo.db")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	cols := header()
	ddl := "CREATE TABLE echo (" + strings.Join(cols, " TEXT, ") + " TEXT)"
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create: %v", err)
	}
	ins := "INSERT INTO echo VALUES (" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	for _, r := range fixtureRows {
		args := make([]any, len(r))
		for i, v := range r {
			args[i] = v
		}
		if _, err := db.Exec(ins, args...); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	cfg := config.Default()
	cfg.Source = config.Source{Kind: "sql", SQL: config.SourceSQL{Driver: "sqlite", DSN: dsn, Table: "echo"}}
	tbl, err := loadTable(t.Context(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("loadTable: %v", err)
	}
	if tbl.Len() != 3 || tbl.Stats().DroppedRows != 1 {
		t.Fatalf("rows = %d, dropped = %d", tbl.Len(), tbl.Stats().DroppedRows)
	}
}

func TestNewSource_Unsupported(t *testing.T) {
	t.Parallel()

	if _, err := newSource(t.Context(), config.Source{Kind: "ftp"}); err == nil {
		t.Fatalf("ftp source should be rejected")
	}
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, metrics.Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (nopBackend) Flush() error                                     { return nil }

/*
TestSetupMetrics_Pushgateway installs the Pushgateway backend from flags and
checks that the load metrics reach the gateway on flush. It swaps the global
backend, so it does not run in parallel.
*/
func TestSetupMetrics_Pushgateway(t *testing.T) {
	var pushes atomic.Int32
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/metrics/job/echo_air") {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()
	defer metrics.SetBackend(nopBackend{})

	cfgPath := writeConfig(t, fileConfig(t))
	if _, err := run(t, "summary", "--config", cfgPath, "--metrics-backend", "pushgateway", "--pushgateway-url", gw.URL); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if pushes.Load() == 0 {
		t.Fatalf("no push reached the gateway")
	}
}
