package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"echoair/internal/chart"
	"echoair/internal/dashboard"
	"echoair/internal/display"
	"echoair/internal/export"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var templateFuncs = template.FuncMap{
	"amount":     display.Amount,
	"pollutants": display.Pollutants,
}

// Summary is the /api/summary payload: the computed result plus the
// formatted lines shown beside it.
type Summary struct {
	dashboard.Result
	Lines       []string `json:"summary_lines"`
	TableTitle  string   `json:"table_title"`
	SeriesTitle string   `json:"series_title"`
}

func summaryOf(r dashboard.Result) Summary {
	return Summary{
		Result:      r,
		Lines:       display.Summary(r),
		TableTitle:  display.TableTitle(r),
		SeriesTitle: display.SeriesTitle(r),
	}
}

// parseSelection reads the selection from query parameters.
func parseSelection(q url.Values) (dashboard.Selection, error) {
	sel := dashboard.Selection{
		Program:   strings.TrimSpace(q.Get("program")),
		Pollutant: strings.TrimSpace(q.Get("pollutant")),
		State:     strings.TrimSpace(q.Get("state")),
		City:      strings.TrimSpace(q.Get("city")),
		Year:      strings.TrimSpace(q.Get("year")),
	}
	if v := strings.TrimSpace(q.Get("top")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return sel, fmt.Errorf("%w: top %q is not a number", dashboard.ErrInvalidSelection, v)
		}
		sel.TopN = n
	}
	return sel, nil
}

// compute parses, completes and runs the selection in r.
func (s *Server) compute(r *http.Request) (dashboard.Result, error) {
	sel, err := parseSelection(r.URL.Query())
	if err != nil {
		return dashboard.Result{}, err
	}
	return s.dash.Run(s.dash.Complete(sel))
}

// etag is derived from the table fingerprint and the effective selection.
func (s *Server) etag(sel dashboard.Selection) string {
	b, _ := json.Marshal(sel)
	return fmt.Sprintf(`"%016x-%016x"`, s.dash.Table().Fingerprint(), xxh3.Hash(b))
}

// notModified sets the ETag and reports whether the client copy is current.
func (s *Server) notModified(w http.ResponseWriter, r *http.Request, sel dashboard.Selection) bool {
	tag := s.etag(sel)
	w.Header().Set("ETag", tag)
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, dashboard.ErrInvalidSelection) {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	t := s.dash.Table()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rows":        t.Len(),
		"fingerprint": fmt.Sprintf("%016x", t.Fingerprint()),
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.Options(sel))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.notModified(w, r, res.Selection) {
		return
	}
	writeJSON(w, http.StatusOK, summaryOf(res))
}

// handleChart serves lorenz.{png,svg} and series.{png,svg}.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ext, ok := strings.Cut(r.PathValue("file"), ".")
	format, ferr := chart.Format(ext)
	if !ok || ferr != nil || (name != "lorenz" && name != "series") {
		http.NotFound(w, r)
		return
	}
	res, err := s.compute(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.notModified(w, r, res.Selection) {
		return
	}

	var buf bytes.Buffer
	if name == "lorenz" {
		err = chart.Lorenz(res.Lorenz, &buf, format)
	} else {
		err = chart.Series(res.Series, display.SeriesTitle(res), &buf, format)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if format == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
	} else {
		w.Header().Set("Content-Type", "image/png")
	}
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(res, &buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "echoair_"+res.Selection.Year+".xlsx"))
	_, _ = w.Write(buf.Bytes())
}

// handleIndex renders the selector form and the computed result.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sel, err := parseSelection(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := s.dash.Options(sel)
	res, err := s.dash.Run(s.dash.Complete(sel))
	data := struct {
		Options dashboard.Options
		Summary Summary
		Query   template.URL
		Error   string
	}{Options: opts}
	if err != nil {
		data.Error = err.Error()
	} else {
		data.Summary = summaryOf(res)
		data.Query = template.URL(queryOf(res.Selection).Encode())
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.WithError(err).Error("template error")
	}
}

func queryOf(sel dashboard.Selection) url.Values {
	return url.Values{
		"program":   {sel.Program},
		"pollutant": {sel.Pollutant},
		"state":     {sel.State},
		"city":      {sel.City},
		"year":      {sel.Year},
		"top":       {strconv.Itoa(sel.TopN)},
	}
}
