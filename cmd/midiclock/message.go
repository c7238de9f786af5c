package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var ccCmd = &cobra.Command{
	Use:   "cc <control> <value>",
	Short: "Send a Control Change",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		control, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid control %q: %w", args[0], err)
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[1], err)
		}

		a, err := newApp(cmd, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectOutput(); err != nil {
			return err
		}
		return a.engine.SendCC(a.cfg.Channel, control, value)
	},
}

var pcCmd = &cobra.Command{
	Use:   "pc <program>",
	Short: "Send a Program Change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid program %q: %w", args[0], err)
		}

		a, err := newApp(cmd, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectOutput(); err != nil {
			return err
		}
		return a.engine.SendPC(a.cfg.Channel, program)
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send Active Sensing and report the send latency",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.selectOutput(); err != nil {
			return err
		}
		latency, err := a.engine.Ping()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok %v\n", latency)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{ccCmd, pcCmd} {
		c.Flags().IntP("channel", "c", 1, "MIDI channel (1-16)")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(pingCmd)
}
