package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"photoTagger/internal/batch"
	"photoTagger/internal/config"
	"photoTagger/internal/exiftool"
	"photoTagger/internal/geo"
	"photoTagger/internal/progress"
	"photoTagger/internal/tags"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "phototagger",
		Short: "Batch geotagging service that writes location metadata with exiftool",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML config file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newReapCmd(&configPath))
	cmd.AddCommand(newSampleCmd())
	return cmd
}

// app holds the components shared by the subcommands.
type app struct {
	cfg   config.Config
	log   *logrus.Logger
	store progress.Store
	ws    *batch.Workspace
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := config.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err := os.MkdirAll(cfg.WorkDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	store, err := progress.Open(cfg.ProgressDB)
	if err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	return &app{cfg: cfg, log: log, store: store, ws: batch.NewWorkspace(cfg.WorkDir)}, nil
}

func (a *app) reaper() *batch.Reaper {
	return &batch.Reaper{Workspace: a.ws, Progress: a.store, Retention: a.cfg.Retention, Log: a.log}
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.store.Close()
			if addr != "" {
				a.cfg.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	orch := &batch.Orchestrator{
		Workspace: a.ws,
		Resolver:  tags.NewResolver(geo.NewSampler(), a.cfg.Denylist, a.log),
		Writer:    exiftool.NewWriter(a.cfg.ExifTool, a.cfg.ExifToolTimeout, a.log),
		Progress:  a.store,
		Log:       a.log,
	}
	s := &server{
		orch:      orch,
		ws:        a.ws,
		progress:  a.store,
		log:       a.log,
		maxUpload: a.cfg.MaxUploadMB << 20,
	}

	accessLog := a.log.Writer()
	defer accessLog.Close()

	reapCtx, cancelReap := context.WithCancel(ctx)
	defer cancelReap()
	go a.reaper().Run(reapCtx, a.cfg.ReapInterval)

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           s.routes(accessLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.cfg.Addr).Info("serving HTTP API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.WithError(err).Error("server shutdown failed")
			return err
		}
		a.log.Info("server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}

func newReapCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Remove batches older than the retention window and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.store.Close()
			n, err := a.reaper().Reap(time.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired batches\n", n)
			return err
		},
	}
}

func newSampleCmd() *cobra.Command {
	var (
		presetPath string
		count      int
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print random points inside a region preset",
		Example: `  # Five points inside a preset exported as JSON
  phototagger sample --preset paris.json -n 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(presetPath)
			if err != nil {
				return err
			}
			var region geo.Region
			if err := json.Unmarshal(data, &region); err != nil {
				return fmt.Errorf("parse preset %s: %w", presetPath, err)
			}
			sampler := geo.NewSampler()
			for i := 0; i < count; i++ {
				p := sampler.Sample(region)
				fmt.Fprintf(cmd.OutOrStdout(), "%.7f,%.7f\n", p.Lat, p.Lng)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&presetPath, "preset", "", "Region preset JSON file")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of points")
	_ = cmd.MarkFlagRequired("preset")
	return cmd
}
