package common

import (
	"errors"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/seo-pipeline/internal/pipeline"
	"github.com/dtnitsch/seo-pipeline/models"
	"github.com/dtnitsch/seo-pipeline/pkg/db"
)

// Env is everything an action needs, built once from the global flags.
type Env struct {
	Config  *models.Config
	Logger  *slog.Logger
	Store   *db.DB
	Service *pipeline.Service
}

// Setup loads config, opens the store and builds the pipeline service.
func Setup(c *cli.Context) (*Env, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(c, cfg.Logging.Level)

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := pipeline.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Env{Config: cfg, Logger: logger, Store: store, Service: svc}, nil
}

// Close shuts down the browser and the store.
func (e *Env) Close() error {
	return errors.Join(e.Service.Close(), e.Store.Close())
}
