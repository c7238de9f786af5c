package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/DatanoiseTV/midiclock-go/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	Long:  `Starts the clock engine and exposes its commands as a JSON API, with Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		a, err := newApp(cmd, os.Stderr, reg)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Output != "" {
			if err := a.selectOutput(); err != nil {
				return err
			}
		}
		if a.cfg.Input != "" {
			if err := a.follow(); err != nil {
				return err
			}
		}

		srv := &http.Server{
			Addr:              a.cfg.Listen,
			Handler:           httpapi.NewHandler(a.engine, reg, a.log),
			ReadHeaderTimeout: 5 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			a.log.WithField("addr", srv.Addr).Info("Starting HTTP server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case sig := <-shutdown:
			a.log.WithField("signal", sig).Info("Shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				a.log.WithError(err).Warn("Graceful shutdown did not complete")
				return srv.Close()
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}
