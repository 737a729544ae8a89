package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hosplant/hosplant/internal/catalog"
	"github.com/hosplant/hosplant/internal/handlers"
	"github.com/hosplant/hosplant/internal/labels"
	"github.com/hosplant/hosplant/internal/model"
)

const (
	readTimeout     = 60 * time.Second
	writeTimeout    = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Options struct {
	Listen string
	Model  *model.Options
}

func DefaultOptions() *Options {
	return &Options{
		Listen: ":8080",
		Model:  model.DefaultOptions(),
	}
}

func NewServeCmd() *cobra.Command {
	options := DefaultOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the web interface and the prediction API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := newContext()
			defer cancel()
			return Run(ctx, options)
		},
	}
	cmd.Flags().StringVar(&options.Listen, "listen", options.Listen, "listen address")
	bindModelFlags(cmd, options.Model)
	return cmd
}

func Run(ctx context.Context, opts *Options) error {
	log := logr.FromContextOrDiscard(ctx)

	loader := model.NewLoader(opts.Model)
	m, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("unable to load the plant disease model, check that %s exists: %w", opts.Model.ModelPath, err)
	}
	defer loader.Close()
	if m.Classes != labels.Len() {
		log.Info("model class count differs from the label table", "classes", m.Classes, "labels", labels.Len())
	}

	plants, err := catalog.Default()
	if err != nil {
		return err
	}
	logCatalogReport(log, plants.Check(labels.Table[:]))

	handler, err := handlers.NewHandler(model.NewServer(m), plants)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         opts.Listen,
		Handler:      handler.Router(log, os.Stdout),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("server listening", "http", opts.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func logCatalogReport(log logr.Logger, report catalog.Report) {
	if report.Consistent() {
		return
	}
	log.Info("supported plants catalog differs from the model labels",
		"notInModel", report.NotInModel,
		"notInCatalog", report.NotInCatalog,
		"unknownDiseases", report.UnknownDiseases)
}
