package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/martinemde/tmcore/provider"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the built-in model catalog",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Provider", "Model", "Context", "Input $/M", "Output $/M"})
		table.SetAutoWrapText(false)
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetCenterSeparator("")
		table.SetColumnSeparator("")
		table.SetRowSeparator("")

		for _, m := range provider.ListModels(modelsProvider) {
			table.Append([]string{
				m.Provider,
				m.ID,
				fmt.Sprint(m.ContextWindow),
				fmt.Sprintf("%.2f", m.InputCostPerMillion),
				fmt.Sprintf("%.2f", m.OutputCostPerMillion),
			})
		}
		table.Render()
	},
}

func init() {
	modelsCmd.Flags().StringVarP(&modelsProvider, "provider", "p", "", "only list models for this provider")
}
