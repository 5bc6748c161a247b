package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/0xlemi/tunesuite/internal/pitch"
)

func newInstrumentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List instrument presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("NAME", "INSTRUMENT", "RANGE")
			for _, in := range pitch.Instruments() {
				t.Row(in.Name, in.Label, fmt.Sprintf("%.0f-%.0f Hz", in.MinFreq, in.MaxFreq))
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return err
		},
	}
}
