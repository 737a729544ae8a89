package main

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/go-logr/logr"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/hosplant/hosplant/internal/model"
	"github.com/hosplant/hosplant/internal/preprocess"
)

func NewPredictCmd() *cobra.Command {
	options := model.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "classify one leaf image",
		Args:  cobra.ExactArgs(1),
		Example: `
	# Classify a photo with the default model

		hosplant predict leaf.jpg
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := newContext()
			defer cancel()

			path := args[0]
			format, err := imaging.FormatFromFilename(path)
			if err != nil || (format != imaging.JPEG && format != imaging.PNG) {
				return fmt.Errorf("%s: unsupported image, expected JPEG or PNG", path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			img, _, err := preprocess.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			loader := model.NewLoader(options)
			m, err := loader.Load(ctx)
			if err != nil {
				return fmt.Errorf("unable to load the plant disease model: %w", err)
			}
			defer loader.Close()

			logr.FromContextOrDiscard(ctx).V(1).Info("classifying", "image", path)
			result, err := model.NewServer(m).Predict(ctx, img)
			if err != nil {
				return err
			}

			status := "DISEASED"
			if result.Healthy() {
				status = "HEALTHY"
			}
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Plant", "Status", "Confidence", "Condition"})
			t.AppendRow(table.Row{result.Plant, status, result.DisplayConfidence(), result.DisplayCondition()})
			t.Render()
			return nil
		},
	}
	bindModelFlags(cmd, options)
	return cmd
}
