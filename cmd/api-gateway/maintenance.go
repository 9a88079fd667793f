package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/docaccess-api/internal/repository"
	"github.com/noah-isme/docaccess-api/internal/service"
	"github.com/noah-isme/docaccess-api/pkg/cache"
)

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run housekeeping tasks on demand",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "sweep-ratelimits",
			Short: "Delete rate limit counters older than the sweep age",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(commandContext(cmd))
			},
		},
		&cobra.Command{
			Use:   "archive-requests",
			Short: "Move requests past the retention window into the archive collection",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runArchive(commandContext(cmd))
			},
		},
	)
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runSweep(ctx context.Context) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.sync()

	client, err := cache.NewRedis(rt.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer client.Close()

	svc := service.NewRateLimitService(repository.NewRateLimitRepository(client), service.RateLimitConfig{
		Limit:    rt.cfg.RateLimit.PerDay,
		SweepAge: rt.cfg.RateLimit.SweepAge,
	}, rt.logger, nil)
	deleted, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("rate limit sweep finished", zap.Int64("deleted", deleted))
	return nil
}

func runArchive(ctx context.Context) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.sync()

	repo, closeMongo, err := rt.openRequests(ctx)
	if err != nil {
		return err
	}
	defer closeMongo()

	svc := service.NewRequestService(repo, nil, nil, nil, service.RequestServiceConfig{
		ArchiveRetention: rt.cfg.Archive.Retention,
	}, rt.logger, nil)
	moved, err := svc.Archive(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("archive finished", zap.Int64("moved", moved))
	return nil
}
