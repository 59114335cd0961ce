package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"echoair/internal/config"
	"echoair/internal/dashboard"
	"echoair/internal/logging"
	"echoair/internal/records"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	rec := func(id, year string, em float64) records.Record {
		return records.Record{
			FacilityID: id,
			Name:       records.Str("Plant " + id),
			Year:       records.Str(year),
			Program:    records.Str("E-GGRT"),
			Pollutant:  records.Str("CO2"),
			Unit:       records.Str("Metric Tons"),
			State:      records.Str("TX"),
			City:       records.Str("Austin"),
			Emission:   records.Num(em),
			Latitude:   records.Num(30.2),
			Longitude:  records.Num(-97.7),
		}
	}
	tbl := records.NewTable([]records.Record{
		rec("A", "2020", 150), rec("B", "2020", 300), rec("A", "2019", 70),
	})
	d := dashboard.New(tbl, config.Default(), logging.Discard())
	srv := httptest.NewServer(NewServer(Config{Job: "test"}, d, logging.Discard()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, hdr http.Header) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" || got["rows"] != float64(3) {
		t.Fatalf("health = %v", got)
	}
}

func TestSummary_DefaultsAndETag(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/api/summary?top=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var got struct {
		Selection  dashboard.Selection `json:"selection"`
		Location   string              `json:"location"`
		Facilities []dashboard.Facility `json:"facilities"`
		Lines      []string            `json:"summary_lines"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Selection.Year != "2020" || got.Selection.Program != "E-GGRT" || got.Location != "TX" {
		t.Fatalf("selection = %+v, location = %q", got.Selection, got.Location)
	}
	if len(got.Facilities) != 2 || got.Facilities[0].FacilityID != "B" {
		t.Fatalf("facilities = %+v", got.Facilities)
	}
	if len(got.Lines) != 4 || !strings.Contains(got.Lines[0], "450.0 Metric Tons") {
		t.Fatalf("lines = %q", got.Lines)
	}

	tag := resp.Header.Get("ETag")
	if tag == "" {
		t.Fatalf("missing ETag")
	}
	resp, _ = get(t, srv.URL+"/api/summary?top=5", http.Header{"If-None-Match": {tag}})
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("conditional status = %d", resp.StatusCode)
	}
}

func TestSummary_BadSelection(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	for _, q := range []string{"top=7", "top=ten"} {
		resp, body := get(t, srv.URL+"/api/summary?"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", q, resp.StatusCode)
		}
		if !bytes.Contains(body, []byte(`"error"`)) {
			t.Fatalf("%s: body = %s", q, body)
		}
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	_, body := get(t, srv.URL+"/api/options", nil)
	var o dashboard.Options
	if err := json.Unmarshal(body, &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.Program != "E-GGRT" || o.State != "TX" || len(o.Years) != 2 || o.Years[0] != "2020" {
		t.Fatalf("options = %+v", o)
	}
}

func TestCharts(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	cases := []struct {
		path, ctype string
		code        int
	}{
		{"/api/chart/lorenz.png", "image/png", http.StatusOK},
		{"/api/chart/series.svg", "image/svg+xml", http.StatusOK},
		{"/api/chart/lorenz.gif", "", http.StatusNotFound},
		{"/api/chart/pie.png", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		resp, body := get(t, srv.URL+tc.path, nil)
		if resp.StatusCode != tc.code {
			t.Fatalf("%s: status = %d", tc.path, resp.StatusCode)
		}
		if tc.code == http.StatusOK && (resp.Header.Get("Content-Type") != tc.ctype || len(body) == 0) {
			t.Fatalf("%s: content-type = %q, %d bytes", tc.path, resp.Header.Get("Content-Type"), len(body))
		}
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/api/export.xlsx?year=2019", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != xlsxType {
		t.Fatalf("status = %d, type = %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Fatalf("body is not a zip archive")
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "echoair_2019.xlsx") {
		t.Fatalf("content-disposition = %q", cd)
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{"Top 10 Facilities for 2020 in TX", "Plant B", "/api/chart/lorenz.svg?"} {
		if !bytes.Contains(body, []byte(want)) {
			t.Fatalf("page lacks %q", want)
		}
	}
	if resp, _ := get(t, srv.URL+"/nope", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", resp.StatusCode)
	}
}
