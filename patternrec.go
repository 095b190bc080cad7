// Package patternrec analyzes tabular datasets by exhaustive combination:
// per-column filter conditions are compiled into predicate fragments, the
// cartesian product of fragments is enumerated lazily, and every combination
// is answered with a single aggregate query. Completed runs are cached by
// configuration hash and browsable as history.
package patternrec

import (
	"context"
	"fmt"

	"github.com/PiyushKumar010/Pattern-Recognition/dataset"
	"github.com/PiyushKumar010/Pattern-Recognition/engine"
	"github.com/PiyushKumar010/Pattern-Recognition/history"
)

// Service bundles the dataset store, history store, and run engine behind
// one lifecycle. Safe for concurrent use.
type Service struct {
	cfg    Config
	data   dataset.Store
	runs   history.Store
	engine *engine.Engine
}

// Open wires a Service from the given configuration: a DuckDB dataset store,
// a SQLite history store, and the engine on top.
func Open(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	data, err := dataset.OpenDuckDB(dataset.DuckDBOptions{
		Path:         cfg.DatasetPath,
		MaxOpenConns: cfg.Workers,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	runs, err := history.OpenSQLite(cfg.HistoryPath, cfg.Logger)
	if err != nil {
		data.Close()
		return nil, err
	}

	eng, err := engine.New(data, runs, engine.Options{
		MaxTotalCombinations: cfg.MaxTotalCombinations,
		PreviewRowLimit:      cfg.PreviewRowLimit,
		Workers:              cfg.Workers,
		Logger:               cfg.Logger,
	})
	if err != nil {
		runs.Close()
		data.Close()
		return nil, err
	}

	return &Service{cfg: cfg, data: data, runs: runs, engine: eng}, nil
}

// Engine exposes the run orchestrator, for callers mounting their own
// transport over it.
func (s *Service) Engine() *engine.Engine { return s.engine }

// Config returns the effective configuration after defaulting.
func (s *Service) Config() Config { return s.cfg }

// Submit runs (or serves from cache) one analysis.
func (s *Service) Submit(ctx context.Context, req engine.Request) (*engine.Result, error) {
	return s.engine.Submit(ctx, req)
}

// Status returns a run's record without its preview rows.
func (s *Service) Status(ctx context.Context, id string) (*history.Run, error) {
	return s.engine.Status(ctx, id)
}

// Preview returns a run's persisted preview rows.
func (s *Service) Preview(ctx context.Context, id string) ([]history.PreviewRow, error) {
	return s.engine.Preview(ctx, id)
}

// History lists past runs, newest first.
func (s *Service) History(ctx context.Context, limit, offset int) ([]history.Run, error) {
	return s.engine.History(ctx, limit, offset)
}

// Close releases both stores.
func (s *Service) Close() error {
	err := s.runs.Close()
	if derr := s.data.Close(); err == nil {
		err = derr
	}
	return err
}
