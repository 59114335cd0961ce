// Package dashboard runs one full recomputation of the emissions summary for
// a user selection: filter, aggregate, rank, then the per-year series, the
// Lorenz curve and the map view. A Dashboard holds only the immutable loaded
// table and configuration, so one value may serve concurrent requests.
package dashboard

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"echoair/internal/aggregate"
	"echoair/internal/config"
	"echoair/internal/filter"
	"echoair/internal/geo"
	"echoair/internal/lorenz"
	"echoair/internal/metrics"
	"echoair/internal/rank"
	"echoair/internal/records"
	"echoair/internal/series"
)

// ContinentalUS is the state choice that selects every continental state.
const ContinentalUS = "Continental US"

// TopPollutantCount is how many pollutant names are listed per facility.
const TopPollutantCount = 3

// ErrInvalidSelection is wrapped by Run when a selection cannot be computed.
var ErrInvalidSelection = errors.New("invalid selection")

// Warning codes.
const (
	WarnEmptyResult = "empty_result"
	WarnMixedUnits  = "mixed_units"
)

// Selection is one set of user choices.
type Selection struct {
	Program   string `json:"program"`
	Pollutant string `json:"pollutant"`
	State     string `json:"state"`
	City      string `json:"city"`
	Year      string `json:"year"`
	TopN      int    `json:"top_n"`
}

// Warning is a non-fatal condition attached to a Result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Facility is one ranked row prepared for display.
type Facility struct {
	Rank          int      `json:"rank"`
	FacilityID    string   `json:"facility_id"`
	Name          string   `json:"name"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	Postal        string   `json:"postal_code"`
	Latitude      *float64 `json:"lat"`
	Longitude     *float64 `json:"lon"`
	Emission      float64  `json:"emission"`
	TopPollutants []string `json:"top_pollutants,omitempty"`
}

// Result is everything the presentation layer shows for a selection.
type Result struct {
	Selection  Selection       `json:"selection"`
	Location   string          `json:"location"`
	Unit       string          `json:"unit"`
	Units      []string        `json:"units"`
	Stats      rank.Stats      `json:"stats"`
	Rounded    rank.Rounded    `json:"rounded"`
	Facilities []Facility      `json:"facilities"`
	Series     series.Combined `json:"series"`
	Lorenz     lorenz.Curve    `json:"lorenz"`
	Gini       float64         `json:"gini"`
	Equality   [2]lorenz.Point `json:"equality_line"`
	Map        geo.View        `json:"map"`
	Empty      bool            `json:"empty"`
	Warnings   []Warning       `json:"warnings,omitempty"`
}

// Dashboard computes Results over a loaded table.
type Dashboard struct {
	table *records.Table
	cfg   config.Dashboard
	job   string
	log   logrus.FieldLogger
}

// New returns a Dashboard over t. A nil log discards output.
func New(t *records.Table, cfg config.Config, log logrus.FieldLogger) *Dashboard {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if len(cfg.Dashboard.TopNChoices) == 0 {
		cfg.Dashboard.TopNChoices = config.DefaultTopNChoices
	}
	if cfg.Dashboard.NonContinental == nil {
		cfg.Dashboard.NonContinental = config.DefaultNonContinental
	}
	return &Dashboard{table: t, cfg: cfg.Dashboard, job: cfg.Job, log: log}
}

// Table returns the loaded table.
func (d *Dashboard) Table() *records.Table { return d.table }

// Location is the display label of a selection: "<city>, <state>", the state
// code, or "Continental US".
func Location(sel Selection) string {
	if sel.City != "" && sel.City != filter.AllCities && sel.State != ContinentalUS {
		return sel.City + ", " + sel.State
	}
	return sel.State
}

func (d *Dashboard) geography(state string) filter.Geography {
	if state == ContinentalUS {
		return filter.ContinentalExcluding(d.cfg.NonContinental)
	}
	return filter.State(state)
}

func (d *Dashboard) predicates(sel Selection) filter.Predicates {
	p := filter.Predicates{
		Program:   sel.Program,
		Pollutant: sel.Pollutant,
		Geography: d.geography(sel.State),
		City:      sel.City,
		Year:      sel.Year,
	}
	if p.Pollutant == "" {
		p.Pollutant = filter.AllPollutants
	}
	return p
}

func (d *Dashboard) validate(sel Selection) error {
	switch {
	case sel.Program == "":
		return fmt.Errorf("%w: program is required", ErrInvalidSelection)
	case sel.State == "":
		return fmt.Errorf("%w: state is required", ErrInvalidSelection)
	case sel.Year == "":
		return fmt.Errorf("%w: year is required", ErrInvalidSelection)
	case !rank.ValidTopN(sel.TopN, d.cfg.TopNChoices):
		return fmt.Errorf("%w: top %d is not one of %v", ErrInvalidSelection, sel.TopN, d.cfg.TopNChoices)
	}
	return nil
}

// stage times fn and records it under name.
func (d *Dashboard) stage(name string, fn func()) {
	start := time.Now()
	fn()
	metrics.RecordStep(d.job, name, nil, time.Since(start))
}

// Run recomputes every output for sel from the full table.
func (d *Dashboard) Run(sel Selection) (Result, error) {
	if err := d.validate(sel); err != nil {
		metrics.RecordStep(d.job, "validate", err, 0)
		return Result{}, err
	}
	if sel.Pollutant == "" {
		sel.Pollutant = filter.AllPollutants
	}
	if sel.City == "" || sel.State == ContinentalUS {
		sel.City = filter.AllCities
	}
	p := d.predicates(sel)
	res := Result{
		Selection: sel,
		Location:  Location(sel),
		Equality:  lorenz.EqualityLine,
	}

	var (
		selection, year *records.Table
		rows            []aggregate.FacilityRow
		top             rank.Table
	)
	d.stage("filter", func() {
		selection = filter.Selection(d.table, p)
		year = filter.Year(selection, sel.Year)

		// The label comes from the program slice; the mix check covers only
		// the rows left after the geography filter.
		unit := filter.ResolveUnit(filter.Program(d.table, p.Program, p.Pollutant))
		unit.Seen = selection.Distinct(records.ColUnit)
		res.Unit, res.Units = unit.Name, unit.Seen
		if unit.Mixed() {
			res.Warnings = append(res.Warnings, Warning{
				Code:    WarnMixedUnits,
				Message: fmt.Sprintf("%d units of measure in the selection; totals mix %v", len(unit.Seen), unit.Seen),
			})
		}
	})
	d.stage("aggregate", func() { rows = aggregate.ByFacility(year) })
	d.stage("rank", func() {
		top, res.Stats = rank.Rank(rows, sel.TopN)
		res.Rounded = res.Stats.Rounded()
		res.Facilities = d.facilities(top, sel.Program)
	})
	d.stage("series", func() {
		res.Series = series.Reconcile(d.table, top.FacilityIDs(), p, sel.TopN)
	})
	d.stage("lorenz", func() {
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = r.Emission
		}
		res.Lorenz = lorenz.Compute(lorenz.Positive(vals))
		res.Gini = res.Lorenz.Gini()
	})
	d.stage("map", func() { res.Map = geo.ViewOf(top.Rows) })

	if year.Len() == 0 {
		res.Empty = true
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnEmptyResult,
			Message: fmt.Sprintf("no data available for %s in %s for the %s program", sel.Year, res.Location, sel.Program),
		})
	}

	d.log.WithFields(logrus.Fields{
		"program":    sel.Program,
		"pollutant":  sel.Pollutant,
		"location":   res.Location,
		"year":       sel.Year,
		"top":        sel.TopN,
		"rows":       year.Len(),
		"facilities": res.Stats.TotalFacilities,
		"warnings":   len(res.Warnings),
	}).Debug("dashboard recomputed")
	return res, nil
}

func (d *Dashboard) facilities(top rank.Table, program string) []Facility {
	var polls map[string][]string
	if d.cfg.IncludeTopPollutants {
		polls = topPollutants(d.table, top.FacilityIDs(), program)
	}
	out := make([]Facility, len(top.Rows))
	for i, r := range top.Rows {
		k := r.Key
		f := Facility{
			Rank:          i + 1,
			FacilityID:    k.FacilityID,
			Name:          k.Name.String,
			City:          k.City.String,
			State:         k.State.String,
			Postal:        k.Postal.String,
			Emission:      r.Emission,
			TopPollutants: polls[k.FacilityID],
		}
		if k.Latitude.Valid {
			f.Latitude = &k.Latitude.Float64
		}
		if k.Longitude.Valid {
			f.Longitude = &k.Longitude.Float64
		}
		out[i] = f
	}
	return out
}

// topPollutants lists, per facility, the first TopPollutantCount distinct
// pollutant names reported under program in dataset order.
func topPollutants(t *records.Table, ids []string, program string) map[string][]string {
	out := make(map[string][]string, len(ids))
	for _, id := range ids {
		out[id] = []string{}
	}
	for _, r := range t.All() {
		list, ok := out[r.FacilityID]
		if !ok || len(list) >= TopPollutantCount || !r.Is(records.ColProgram, program) || !r.Pollutant.Valid {
			continue
		}
		if !slices.Contains(list, r.Pollutant.String) {
			out[r.FacilityID] = append(list, r.Pollutant.String)
		}
	}
	return out
}
