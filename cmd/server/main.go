package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/hosplant/hosplant/internal/model"
)

const ErrExitCode = 1

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(ErrExitCode)
	}
}

func NewRootCmd() *cobra.Command {
	verbosity := 0
	serve := NewServeCmd()
	cmd := &cobra.Command{
		Use:           "hosplant",
		Short:         "Plant leaf disease detection",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		stdr.SetVerbosity(verbosity)
	}
	cmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", verbosity, "log verbosity")
	cmd.Flags().AddFlagSet(serve.Flags())
	cmd.AddCommand(
		serve,
		NewPlantsCmd(),
		NewPredictCmd(),
	)
	return cmd
}

func newContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error})
	return logr.NewContext(ctx, logger), cancel
}

func bindModelFlags(cmd *cobra.Command, options *model.Options) {
	flags := cmd.Flags()
	flags.StringVar(&options.ModelPath, "model", options.ModelPath, "path of the ONNX model artifact")
	flags.StringVar(&options.MetadataPath, "metadata", options.MetadataPath, "path of the model metadata sidecar (yaml or json)")
	flags.StringVar(&options.Normalization, "normalization", options.Normalization, "input normalization: auto, scale or none (overrides metadata)")
	flags.StringVar(&options.SharedLibraryPath, "onnxruntime-lib", options.SharedLibraryPath, "path of the onnxruntime shared library")
}
