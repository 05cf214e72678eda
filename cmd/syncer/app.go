package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"terrarium_jobs/internal/config"
	"terrarium_jobs/internal/lock"
	"terrarium_jobs/internal/publisher"
	"terrarium_jobs/internal/service"
	"terrarium_jobs/internal/source"
	"terrarium_jobs/internal/storage/postgres"
)

// app is the wired dependency graph shared by all commands.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *sqlx.DB
	jobs        *postgres.JobStore
	communities *postgres.CommunityStore
	service     *service.SyncService
	closers     []func() error
}

type appOptions struct {
	publish bool
}

func newApp(ctx context.Context, opts *RootOptions, appOpts appOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(os.Stderr, cfg.LogLevel)

	a := &app{cfg: cfg, logger: logger}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	logger.Debug("connected to database")

	var pub service.Publisher
	if appOpts.publish && cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rabbitMQ.Close)
		pub = rabbitMQ
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.jobs = postgres.NewJobStore(db)
	a.communities = postgres.NewCommunityStore(db)

	a.service = service.NewSyncService(
		source.NewFactory(cfg.RecruitCRM, cfg.Sync.PageSize, logger),
		a.jobs,
		postgres.NewCompanyStore(db),
		a.communities,
		postgres.NewTransactionManager(db),
		pub,
		locker,
		logger,
		cfg.Sync,
	)

	return a, nil
}

func (a *app) newLocker(ctx context.Context) (service.Locker, error) {
	if a.cfg.Sync.LockBackend != config.LockRedis {
		return lock.NewMemory(), nil
	}

	client, err := lock.NewRedisClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)

	return lock.NewRedis(client, a.cfg.Redis.KeyPrefix, a.cfg.Sync.LockTTL, a.logger), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
