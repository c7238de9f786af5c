package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, os.Stderr, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ins, err := a.engine.ListInputs()
		if err != nil {
			return err
		}
		outs, err := a.engine.ListOutputs()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Available MIDI Input Ports:")
		for i, port := range ins {
			fmt.Fprintf(w, "  %d: %s\n", i, port)
		}
		fmt.Fprintln(w, "\nAvailable MIDI Output Ports:")
		for i, port := range outs {
			fmt.Fprintf(w, "  %d: %s\n", i, port)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
