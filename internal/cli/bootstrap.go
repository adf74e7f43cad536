package cli

import (
	"context"
	"fmt"

	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/logger"
	"github.com/recallhq/recall/internal/metrics"
	"github.com/recallhq/recall/pkg/automation"
	"github.com/recallhq/recall/pkg/dedup"
	"github.com/recallhq/recall/pkg/index"
	"github.com/recallhq/recall/pkg/linker"
	"github.com/recallhq/recall/pkg/relevance"
	"github.com/recallhq/recall/pkg/service"
	"github.com/recallhq/recall/pkg/store"
)

// runtime holds everything a command needs after bootstrap.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store
	index   *index.Index
	service *service.Service
	engine  *automation.Engine
	metrics *metrics.Metrics
}

func (r *runtime) close() {
	if r.log != nil {
		r.log.Close()
	}
}

// bootstrap loads config, builds the component stack and loads the
// index from disk.
func bootstrap(ctx context.Context, console bool) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}
	zl := log.GetZerolog()

	st, err := store.New(store.Config{BaseDir: cfg.Storage.BaseDir, Logger: zl})
	if err != nil {
		log.Close()
		return nil, err
	}

	var m *metrics.Metrics
	ixCfg := index.Config{Loader: st, Logger: zl}
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
		ixCfg.OnRebuild = m.IndexRebuilds.Inc
	}

	ix := index.New(ixCfg)
	if err := ix.Rebuild(ctx); err != nil {
		log.Close()
		return nil, err
	}

	patterns := relevance.DefaultPatterns()
	if cfg.Relevance.PatternsFile != "" {
		if patterns, err = relevance.LoadPatterns(cfg.Relevance.PatternsFile); err != nil {
			log.Close()
			return nil, err
		}
	}
	classifier := relevance.NewPatternClassifier(patterns)

	ranker := relevance.NewRanker(relevance.Config{Logger: zl})
	lk := linker.New(linker.Config{
		Ranker: ranker,
		Index:  ix,
		Store:  st,
		Options: relevance.Options{
			Threshold: cfg.Relevance.Threshold,
			Limit:     cfg.Relevance.Limit,
		},
		Logger: zl,
	})
	dd := dedup.New(dedup.Config{Index: ix, Store: st, Logger: zl})
	eng := automation.New(automation.Config{
		Index:      ix,
		Store:      st,
		Classifier: classifier,
		BatchSize:  cfg.Automation.BatchSize,
		Logger:     zl,
	})

	svc := service.New(service.Config{
		Store:      st,
		Index:      ix,
		Linker:     lk,
		Dedup:      dd,
		Automation: eng,
		Metrics:    m,
		Logger:     zl,
	})

	return &runtime{
		cfg:     cfg,
		log:     log,
		store:   st,
		index:   ix,
		service: svc,
		engine:  eng,
		metrics: m,
	}, nil
}
