package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"echoair/internal/server"
)

// flushEvery is how often metrics are pushed while serving.
const flushEvery = 30 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset once and serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (a *app) serve(ctx context.Context) error {
	d, err := newDashboard(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	sc := a.cfg.Server
	srv := server.NewServer(server.Config{
		Addr:         sc.Addr,
		Job:          a.cfg.Job,
		ReadTimeout:  time.Duration(sc.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(sc.WriteTimeoutSeconds) * time.Second,
	}, d, a.log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.WithField("addr", sc.Addr).Info("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		a.log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		t := time.NewTicker(flushEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				flushMetrics(a.log)
			}
		}
	})
	return g.Wait()
}
