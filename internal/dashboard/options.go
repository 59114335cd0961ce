package dashboard

import (
	"slices"

	"echoair/internal/filter"
	"echoair/internal/records"
	"echoair/internal/series"
)

// Options are the selector choices valid for a partial selection, with the
// defaults the UI preselects.
type Options struct {
	Programs   []string `json:"programs"`
	Program    string   `json:"program"`
	Pollutants []string `json:"pollutants"`
	States     []string `json:"states"`
	State      string   `json:"state"`
	Cities     []string `json:"cities"`
	Years      []string `json:"years"`
	Year       string   `json:"year"`
	TopN       []int    `json:"top_n"`
	DefaultTop int      `json:"default_top_n"`
}

// Options lists the choices for each selector given the upstream choices in
// sel. Blank program and state fall back to the configured defaults; the
// chosen values are echoed in the result.
func (d *Dashboard) Options(sel Selection) Options {
	o := Options{
		TopN:       slices.Clone(d.cfg.TopNChoices),
		DefaultTop: d.cfg.DefaultTopN,
	}
	if !slices.Contains(o.TopN, o.DefaultTop) && len(o.TopN) > 0 {
		o.DefaultTop = o.TopN[0]
	}

	o.Programs = sorted(d.table.Distinct(records.ColProgram))
	o.Program = pick(sel.Program, d.cfg.DefaultProgram, o.Programs)

	pollutant := sel.Pollutant
	if pollutant == "" {
		pollutant = filter.AllPollutants
	}
	byProgram := filter.Program(d.table, o.Program, filter.AllPollutants)
	o.Pollutants = append([]string{filter.AllPollutants}, sorted(byProgram.Distinct(records.ColPollutant))...)

	continental := filter.ContinentalExcluding(d.cfg.NonContinental)
	o.States = append([]string{ContinentalUS}, sorted(continental.Apply(d.table).Distinct(records.ColState))...)
	o.State = pick(sel.State, d.cfg.DefaultState, o.States)

	p := d.predicates(Selection{Program: o.Program, Pollutant: pollutant, State: o.State})
	o.Cities = []string{filter.AllCities}
	if o.State != ContinentalUS {
		o.Cities = append(o.Cities, sorted(filter.Selection(d.table, p).Distinct(records.ColCity))...)
	}

	if sel.City != "" && sel.City != filter.AllCities && o.State != ContinentalUS {
		p.City = sel.City
	}
	o.Years = filter.Selection(d.table, p).Distinct(records.ColYear)
	slices.SortFunc(o.Years, series.CompareYears)
	if d.cfg.YearSortDescending {
		slices.Reverse(o.Years)
	}
	if len(o.Years) > 0 {
		o.Year = o.Years[0]
	}
	return o
}

// Complete fills blank fields of sel with the defaults from Options.
func (d *Dashboard) Complete(sel Selection) Selection {
	o := d.Options(sel)
	sel.Program = o.Program
	sel.State = o.State
	if sel.Pollutant == "" {
		sel.Pollutant = filter.AllPollutants
	}
	if sel.City == "" {
		sel.City = filter.AllCities
	}
	if sel.Year == "" {
		sel.Year = o.Year
	}
	if sel.TopN == 0 {
		sel.TopN = o.DefaultTop
	}
	return sel
}

// pick returns want when set, else def when it is one of choices, else the
// first choice.
func pick(want, def string, choices []string) string {
	switch {
	case want != "":
		return want
	case slices.Contains(choices, def):
		return def
	case len(choices) > 0:
		return choices[0]
	}
	return ""
}

func sorted(xs []string) []string {
	slices.Sort(xs)
	return xs
}
