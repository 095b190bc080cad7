package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	patternrec "github.com/PiyushKumar010/Pattern-Recognition"
	"github.com/PiyushKumar010/Pattern-Recognition/engine"
	"github.com/PiyushKumar010/Pattern-Recognition/internal/config"
)

var analyzeFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis from a request file and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		logger := newLogger(cfg.LogLevel)

		data, err := os.ReadFile(analyzeFile)
		if err != nil {
			return fmt.Errorf("read request file: %w", err)
		}
		var req engine.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decode request file: %w", err)
		}

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

		res, err := svc.Submit(cmd.Context(), req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "request.json", "analysis request file")
}
