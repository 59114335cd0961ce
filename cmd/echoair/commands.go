package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"echoair/internal/chart"
	"echoair/internal/config"
	"echoair/internal/dashboard"
	"echoair/internal/display"
	"echoair/internal/export"
)

// selectionFlags registers the selector flags shared by the one-shot
// commands. Blank values take the dashboard defaults.
func selectionFlags(fs *pflag.FlagSet, sel *dashboard.Selection) {
	fs.StringVar(&sel.Program, "program", "", "reporting program")
	fs.StringVar(&sel.Pollutant, "pollutant", "", `pollutant name, or "All"`)
	fs.StringVar(&sel.State, "state", "", `state code, or "Continental US"`)
	fs.StringVar(&sel.City, "city", "", `city name, or "All"`)
	fs.StringVar(&sel.Year, "year", "", "reporting year (default newest)")
	fs.IntVar(&sel.TopN, "top", 0, "number of top facilities")
}

// compute loads the dataset and runs sel with defaults filled in.
func (a *app) compute(cmd *cobra.Command, sel dashboard.Selection) (dashboard.Result, error) {
	d, err := newDashboard(cmd.Context(), a.cfg, a.log)
	if err != nil {
		return dashboard.Result{}, err
	}
	return d.Run(d.Complete(sel))
}

// output returns a writer for path, or the command output for "" and "-".
func (a *app) output(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{a.out}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) summaryCmd() *cobra.Command {
	var (
		sel    dashboard.Selection
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the statistics and top-facility table for one selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.compute(cmd, sel)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.out, res)
			}
			return printSummary(a.out, res)
		},
	}
	selectionFlags(cmd.Flags(), &sel)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printSummary(w io.Writer, r dashboard.Result) error {
	for _, wr := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", wr.Message)
	}
	for _, line := range display.Summary(r) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%s\n", display.TableTitle(r))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tFACILITY_ID\tFACILITY_NAME\tCITY\tSTATE\tANNUAL_EMISSION\tTOP_POLLUTANTS")
	for _, f := range r.Facilities {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Rank, f.FacilityID, f.Name, f.City, f.State, display.Amount(f.Emission), display.Pollutants(f.TopPollutants))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nGini: %.3f\n", r.Gini)
	return err
}

func (a *app) optionsCmd() *cobra.Command {
	var sel dashboard.Selection
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the selector choices for a partial selection as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDashboard(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			return writeJSON(a.out, d.Options(sel))
		},
	}
	selectionFlags(cmd.Flags(), &sel)
	return cmd
}

func (a *app) chartCmd() *cobra.Command {
	var (
		sel          dashboard.Selection
		kind, format string
		out          string
	)
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the Lorenz curve or the per-year comparison",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := chart.Format(format); err != nil {
				return err
			}
			if kind != "lorenz" && kind != "series" {
				return fmt.Errorf("unknown chart kind %q (want lorenz or series)", kind)
			}
			res, err := a.compute(cmd, sel)
			if err != nil {
				return err
			}
			w, err := a.output(out)
			if err != nil {
				return err
			}
			if kind == "lorenz" {
				err = chart.Lorenz(res.Lorenz, w, format)
			} else {
				err = chart.Series(res.Series, display.SeriesTitle(res), w, format)
			}
			return errors.Join(err, w.Close())
		},
	}
	selectionFlags(cmd.Flags(), &sel)
	cmd.Flags().StringVar(&kind, "kind", "lorenz", "chart kind: lorenz or series")
	cmd.Flags().StringVar(&format, "format", "png", "image format: png or svg")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		sel dashboard.Selection
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the computed selection to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.compute(cmd, sel)
			if err != nil {
				return err
			}
			w, err := a.output(out)
			if err != nil {
				return err
			}
			return errors.Join(export.Write(res, w), w.Close())
		},
	}
	selectionFlags(cmd.Flags(), &sel)
	cmd.Flags().StringVarP(&out, "out", "o", "echoair.xlsx", `output file ("-" for stdout)`)
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var load bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and optionally load the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := config.ValidateConfig(a.cfg)
			for _, iss := range issues {
				fmt.Fprintf(a.out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if config.HasErrors(issues) {
				return fmt.Errorf("configuration is invalid: %s", a.cfgPath)
			}
			if load {
				t, err := loadTable(cmd.Context(), a.cfg, a.log)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "dataset: %d rows, %d dropped, %d skipped\n", t.Stats().Rows, t.Stats().DroppedRows, t.Stats().SkippedRows)
			}
			fmt.Fprintln(a.out, "configuration is valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&load, "load", false, "also load the dataset")
	return cmd
}
