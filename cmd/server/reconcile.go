package main

import (
	"context"
	"fmt"

	"github.com/anonto42/garage-club/backend/internal/cache"
	"github.com/anonto42/garage-club/backend/internal/events"
	"github.com/anonto42/garage-club/backend/internal/relations"
	"github.com/anonto42/garage-club/backend/pkg/config"
	"github.com/spf13/cobra"
)

func reconcileCmd(cfg func() *config.Config) *cobra.Command {
	var kind, target string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recount a target's relation records and repair its counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return reconcile(cmd.Context(), cfg(), kind, target)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Relation kind (like, save, follow)")
	cmd.Flags().StringVar(&target, "target", "", "Target post or user ID")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func reconcile(ctx context.Context, cfg *config.Config, kind, target string) error {
	app, err := initFirebase(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	notifier, _, closeNotifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := relations.NewService(store, notifier, relations.Config{})
	before, after, err := svc.Reconcile(ctx, kind, target)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %d -> %d\n", kind, target, before, after)
	return nil
}

// buildNotifier fans invalidation out to Redis and NATS, whichever are
// configured. The returned cache is nil without Redis.
func buildNotifier(cfg *config.Config) (events.Notifier, *cache.Cache, func(), error) {
	var fanout events.Fanout
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	rdb, err := config.InitRedis(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	var renderCache *cache.Cache
	if rdb != nil {
		renderCache = cache.New(rdb, cfg.CacheTTL)
		fanout = append(fanout, renderCache)
		closers = append(closers, func() { _ = rdb.Close() })
	}

	if cfg.NatsURL != "" {
		nc, err := events.Connect(cfg.NatsURL)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		fanout = append(fanout, events.NewNatsNotifier(nc))
		closers = append(closers, nc.Close)
	}
	return fanout, renderCache, closeAll, nil
}
