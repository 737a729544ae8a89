package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hosplant/hosplant/internal/catalog"
	"github.com/hosplant/hosplant/internal/labels"
)

func NewPlantsCmd() *cobra.Command {
	check := false
	cmd := &cobra.Command{
		Use:   "plants",
		Short: "list supported plants",
		Long:  "List the plants and diseases shown on the supported plants page",
		Example: `
	# List supported plants

		hosplant plants

	# Compare the list with the model labels

		hosplant plants --check
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plants, err := catalog.Default()
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Scientific Name", "Diseases"})
			for _, p := range plants.Plants {
				t.AppendRow(table.Row{p.Name, p.ScientificName, strings.Join(p.Diseases, ", ")})
			}
			t.Render()

			if !check {
				return nil
			}
			report := plants.Check(labels.Table[:])
			r := table.NewWriter()
			r.SetOutputMirror(cmd.OutOrStdout())
			r.AppendHeader(table.Row{"Check", "Entries"})
			r.AppendRow(table.Row{"In catalog, not in model", strings.Join(report.NotInModel, ", ")})
			r.AppendRow(table.Row{"In model, not in catalog", strings.Join(report.NotInCatalog, ", ")})
			r.AppendRow(table.Row{"Diseases unknown to the model", strings.Join(report.UnknownDiseases, ", ")})
			r.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", check, "compare the catalog with the model label table")
	return cmd
}
