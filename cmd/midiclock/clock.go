package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send MIDI clock until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectOutput(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.engine.StartClockSend(a.cfg.BPM); err != nil {
			// A failed Start leaves the pulses running; anything else is fatal.
			if !a.engine.SendStatus().Running {
				return err
			}
			a.log.WithError(err).Warn("Start message not delivered")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sending MIDI clock at %.1f BPM... Press Ctrl+C to stop\n", a.cfg.BPM)

		<-ctx.Done()
		a.engine.StopClockSend()
		return nil
	},
}

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Follow incoming MIDI clock and print its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.follow(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interval, _ := cmd.Flags().GetDuration("interval")
		return printStatus(ctx, cmd, a, interval)
	},
}

func printStatus(ctx context.Context, cmd *cobra.Command, a *app, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w := cmd.OutOrStdout()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := a.engine.ClockStatus()
			state := "stopped"
			if st.Running {
				state = "running"
			}
			if st.BPM != nil {
				fmt.Fprintf(w, "%s  %.2f BPM\n", state, *st.BPM)
			} else {
				fmt.Fprintf(w, "%s  no estimate\n", state)
			}
		}
	}
}

func init() {
	sendCmd.Flags().Float64P("bpm", "b", 120, "Tempo in BPM")
	followCmd.Flags().Duration("interval", time.Second, "Status print interval")
	rootCmd.AddCommand(sendCmd, followCmd)
}
