// Command echoair loads the facility air-emissions dataset and serves the
// dashboard, or computes one selection from the command line.
//
// Usage:
//
//	echoair serve    --config echoair.toml
//	echoair summary  --program E-GGRT --state TX --year 2022 --top 10
//	echoair chart    --kind lorenz --format svg --out lorenz.svg
//	echoair export   --out summary.xlsx
//	echoair options  --program E-GGRT
//	echoair validate --config echoair.json
package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"echoair/internal/config"
	"echoair/internal/logging"
)

// app carries state shared by every subcommand once the root pre-run has
// resolved configuration and logging.
type app struct {
	cfgPath        string
	logLevel       string
	metricsBackend string
	pushgatewayURL string

	cfg config.Config
	log *logrus.Logger
	out io.Writer
	err io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree writing results to out and logs to
// errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, err: errOut}

	root := &cobra.Command{
		Use:          "echoair",
		Short:        "Facility air-emissions dashboard",
		Long:         "Ranks reporting facilities by annual air emissions and shows how concentrated emissions are among them.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.startup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			flushMetrics(a.log)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "configuration file (.json or .toml); defaults apply when empty")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (overrides config and LOG_LEVEL)")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog")
	pf.StringVar(&a.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")

	root.AddCommand(
		a.serveCmd(),
		a.summaryCmd(),
		a.optionsCmd(),
		a.chartCmd(),
		a.exportCmd(),
		a.validateCmd(),
	)
	return root
}

// startup resolves configuration (file, then env, then flags) and builds the
// logger and metrics backend.
func (a *app) startup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsBackend != "" {
		cfg.Metrics.Backend = a.metricsBackend
	}
	if a.pushgatewayURL != "" {
		cfg.Metrics.PushgatewayURL = a.pushgatewayURL
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Log, a.err)
	if err != nil {
		return err
	}
	a.log = log

	if cmd.Name() != "validate" {
		setupMetrics(cfg, log)
	}
	return nil
}
