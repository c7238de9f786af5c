package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/DatanoiseTV/midiclock-go/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive console UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logs go nowhere until the UI exists to receive them.
		a, err := newApp(cmd, io.Discard, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := tui.Config{BPM: a.cfg.BPM}
		if a.cfg.Input != "" {
			cfg.InputName = a.cfg.Input
			cfg.Follow = a.follow
		}

		if a.cfg.Output != "" {
			if err := a.selectOutput(); err != nil {
				return err
			}
			cfg.OutputName = a.cfg.Output
		}

		m := tui.New(a.engine, cfg)
		a.log.SetOutput(m.LogWriter())
		a.log.Info("Monitor started")
		return m.Run()
	},
}

func init() {
	monitorCmd.Flags().Float64P("bpm", "b", 120, "Initial send tempo in BPM")
	rootCmd.AddCommand(monitorCmd)
}
