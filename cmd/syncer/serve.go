package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"terrarium_jobs/internal/scheduler"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled syncs for every enabled community",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, rootOpts *RootOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, rootOpts, appOptions{publish: true})
	if err != nil {
		return err
	}
	defer a.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			a.logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a.logger.Info("starting job syncer",
		"page_size", a.cfg.Sync.PageSize,
		"max_pages", a.cfg.Sync.MaxPages,
		"lock_backend", a.cfg.Sync.LockBackend,
		"publish_events", a.cfg.RabbitMQ.Enabled,
	)

	sched := scheduler.NewScheduler(a.service, a.communities, a.cfg.Sync, a.logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
