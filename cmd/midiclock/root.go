package main

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	midiclock "github.com/DatanoiseTV/midiclock-go"
	"github.com/DatanoiseTV/midiclock-go/internal/config"
	"github.com/DatanoiseTV/midiclock-go/internal/logging"
	"github.com/DatanoiseTV/midiclock-go/rtmidi"
)

const clientName = "midiclock"

var rootCmd = &cobra.Command{
	Use:           "midiclock",
	Short:         "Send and follow MIDI clock",
	Long:          `midiclock drives an outbound MIDI clock, follows an inbound one and sends Control and Program Change messages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output port index or name")
	rootCmd.PersistentFlags().StringP("input", "i", "", "Input port index or name")
	rootCmd.PersistentFlags().Bool("realtime", false, "Run the clock goroutine with real-time priority")
}

// app bundles what every command needs.
type app struct {
	cfg    config.Config
	log    *logrus.Logger
	drv    *rtmidi.Driver
	engine *midiclock.Engine
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.LogLevel = f.Value.String()
	}
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		cfg.Output = f.Value.String()
	}
	if f := cmd.Flags().Lookup("input"); f != nil && f.Changed {
		cfg.Input = f.Value.String()
	}
	if cmd.Flags().Changed("realtime") {
		cfg.Realtime, _ = cmd.Flags().GetBool("realtime")
	}
	if cmd.Flags().Changed("channel") {
		cfg.Channel, _ = cmd.Flags().GetInt("channel")
	}
	if cmd.Flags().Changed("bpm") {
		cfg.BPM, _ = cmd.Flags().GetFloat64("bpm")
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	return cfg, cfg.Validate()
}

// newApp opens the MIDI backend and builds the engine. logOut receives the
// log stream; reg, if set, gets the engine's metrics.
func newApp(cmd *cobra.Command, logOut io.Writer, reg prometheus.Registerer) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel, logOut)
	if err != nil {
		return nil, err
	}

	drv, err := rtmidi.New(clientName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MIDI: %w", err)
	}

	opts := []midiclock.Option{
		midiclock.WithLogger(log),
		midiclock.WithRetryBackoff(cfg.RetryBackoff),
		midiclock.WithRealtimePriority(cfg.Realtime),
	}
	if reg != nil {
		opts = append(opts, midiclock.WithMetrics(reg))
	}

	return &app{
		cfg:    cfg,
		log:    log,
		drv:    drv,
		engine: midiclock.New(drv, opts...),
	}, nil
}

func (a *app) Close() {
	if err := a.engine.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close engine")
	}
	if err := a.drv.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close MIDI driver")
	}
}

// selectOutput opens the configured output port.
func (a *app) selectOutput() error {
	if a.cfg.Output == "" {
		return fmt.Errorf("%w: use --output or set output in the config", midiclock.ErrNoOutputSelected)
	}
	ref, err := config.ParsePort(a.cfg.Output)
	if err != nil {
		return err
	}
	if ref.ByIndex() {
		return a.engine.SelectOutput(ref.Index)
	}
	return a.engine.SelectOutputByName(ref.Name)
}

// follow enables clock follow on the configured input port.
func (a *app) follow() error {
	if a.cfg.Input == "" {
		return fmt.Errorf("no input port: use --input or set input in the config")
	}
	ref, err := config.ParsePort(a.cfg.Input)
	if err != nil {
		return err
	}
	if ref.ByIndex() {
		return a.engine.EnableClockFollow(ref.Index)
	}
	return a.engine.EnableClockFollowByName(ref.Name)
}
