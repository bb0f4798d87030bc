package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kelsos/chainbot/internal/account"
	"github.com/kelsos/chainbot/internal/chain"
	"github.com/kelsos/chainbot/internal/config"
	"github.com/kelsos/chainbot/internal/keys"
	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/metrics"
	"github.com/kelsos/chainbot/internal/models"
	"github.com/kelsos/chainbot/internal/process"
	"github.com/kelsos/chainbot/internal/router"
	"github.com/kelsos/chainbot/internal/store"
	"github.com/kelsos/chainbot/internal/store/db"
)

// app holds the collaborators shared by every command
type app struct {
	cfg         *config.Config
	store       store.Store
	keys        *keys.Generator
	provisioner *account.Provisioner
	chain       *chain.ProcessClient
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	runner, err := process.NewClientProcess(cfg.ClientPath, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s, err := db.New(ctx, cfg.StoreType, cfg.StoreConn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreType, err)
	}
	logger.Info("Using %s account store", cfg.StoreType)

	generator := keys.NewGenerator(runner)
	provisioner := account.NewProvisioner(s, generator)
	provisioner.OnCreate(func(models.Account) { m.AccountCreated() })

	return &app{
		cfg:         cfg,
		store:       s,
		keys:        generator,
		provisioner: provisioner,
		chain:       chain.NewProcessClient(runner).WithObserver(m),
		registry:    registry,
		metrics:     m,
	}, nil
}

func (a *app) router() (*router.Router, error) {
	r := router.New(a.provisioner).
		ProvisionOnSight(a.cfg.ProvisionOnSight).
		WithObserver(a.metrics)

	commands := router.NewCommands(a.chain, a.provisioner, a.cfg.PullRequestAward)
	if err := commands.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close store: %v", err)
	}
}
