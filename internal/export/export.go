// Package export writes a computed dashboard Result to an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"echoair/internal/dashboard"
	"echoair/internal/display"
)

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetFacilities = "Top Facilities"
	SheetSeries     = "Series"
	SheetLorenz     = "Lorenz"
)

var facilityHeaders = []any{
	"Rank", "FACILITY_ID", "FACILITY_NAME", "CITY", "STATE", "POSTAL_CODE",
	"LATITUDE", "LONGITUDE", "ANNUAL_EMISSION", "TOP_POLLUTANTS",
}

// Workbook builds the workbook for r.
func Workbook(r dashboard.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetFacilities, SheetSeries, SheetLorenz} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("export: new sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	sel := r.Selection
	summary := [][]any{
		{"Field", "Value"},
		{"Program", sel.Program},
		{"Pollutant", sel.Pollutant},
		{"Location", r.Location},
		{"Year", sel.Year},
		{"Top N", sel.TopN},
		{"Unit", r.Unit},
		{"Total Emissions", r.Stats.TotalEmissions},
		{"Total Reporting Facilities", r.Stats.TotalFacilities},
		{"Top Emissions", r.Stats.TopEmissions},
		{"Proportion From Top (%)", r.Rounded.ProportionFromTop.InexactFloat64()},
		{"Gini", r.Gini},
	}
	for _, line := range display.Summary(r) {
		summary = append(summary, []any{"", line})
	}
	for _, w := range r.Warnings {
		summary = append(summary, []any{"Warning", w.Message})
	}

	rows := [][]any{facilityHeaders}
	for _, fc := range r.Facilities {
		row := []any{fc.Rank, fc.FacilityID, fc.Name, fc.City, fc.State, fc.Postal, nil, nil, fc.Emission, display.Pollutants(fc.TopPollutants)}
		if fc.Latitude != nil {
			row[6] = *fc.Latitude
		}
		if fc.Longitude != nil {
			row[7] = *fc.Longitude
		}
		rows = append(rows, row)
	}

	ser := [][]any{{"REPORTING_YEAR", r.Series.SelectionColumn, r.Series.TopColumn}}
	for _, p := range r.Series.Points {
		ser = append(ser, []any{p.Year, p.Selection, p.Top})
	}

	lz := [][]any{{"Facility Share", "Emission Share"}}
	for _, p := range r.Lorenz.Points() {
		lz = append(lz, []any{p.X, p.Y})
	}

	for _, s := range []struct {
		name  string
		rows  [][]any
		width float64
	}{
		{SheetSummary, summary, 30},
		{SheetFacilities, rows, 18},
		{SheetSeries, ser, 24},
		{SheetLorenz, lz, 18},
	} {
		if err := writeRows(f, s.name, s.rows); err != nil {
			return nil, err
		}
		if err := f.SetRowStyle(s.name, 1, 1, header); err != nil {
			return nil, err
		}
		last, _ := excelize.ColumnNumberToName(len(s.rows[0]))
		if err := f.SetColWidth(s.name, "A", last, s.width); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(SheetSummary, "B", "B", 80); err != nil {
		return nil, err
	}
	return f, nil
}

// Write builds the workbook for r and writes it to w.
func Write(r dashboard.Result, w io.Writer) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("export: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
