package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List built-in and configured presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return usageError(err)
			}
			presets := cfg.ListPresets()
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				source := "config"
				if p.Builtin {
					source = "built-in"
				}
				rows = append(rows, []string{p.Name, source, p.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(tableSpec{
				Headers: []string{"Preset", "Source", "Description"},
				Rows:    rows,
			}))
			return nil
		},
	}
}
