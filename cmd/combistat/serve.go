package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	patternrec "github.com/PiyushKumar010/Pattern-Recognition"
	"github.com/PiyushKumar010/Pattern-Recognition/internal/api"
	"github.com/PiyushKumar010/Pattern-Recognition/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger := newLogger(cfg.LogLevel)

		svc, err := patternrec.Open(patternrec.Config{
			DatasetPath:             cfg.DatasetPath,
			HistoryPath:             cfg.HistoryPath,
			MaxTotalCombinations:    cfg.MaxTotalCombinations,
			PreviewRowLimit:         cfg.PreviewRowLimit,
			Workers:                 cfg.Workers,
			DefaultFragmentEstimate: cfg.DefaultFragmentEstimate,
			Logger:                  logger,
		})
		if err != nil {
			return err
		}
		defer svc.Close()

		handler := api.NewServer(svc.Engine(), api.Options{
			MaxTotalCombinations:    cfg.MaxTotalCombinations,
			DefaultFragmentEstimate: cfg.DefaultFragmentEstimate,
			Logger:                  logger,
		})

		srv := &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", cfg.ListenAddr,
				"dataset", cfg.DatasetPath, "history", cfg.HistoryPath)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-stop:
			logger.Info("shutting down", "signal", sig.String())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}
