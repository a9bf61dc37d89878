package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/postbridge-go/internal/bridge"
	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/server"
	redistransport "github.com/wagiedev/postbridge-go/internal/transport/redis"
)

func runServe(ctx context.Context, e env, args []string) error {
	cfg, _, err := loadConfig("serve", e, args, func(fs *flag.FlagSet, cfg *config.File) {
		fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
		fs.StringVar(&cfg.BridgePath, "path", cfg.BridgePath, "WebSocket bridge route")
		fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address or URL; empty disables the Redis bridge")
		fs.StringVar(&cfg.RedisChannel, "redis-channel", cfg.RedisChannel, "Redis channel the bridge listens on")
		fs.StringVar(&cfg.RedisTarget, "redis-target", cfg.RedisTarget, "Redis channel replies and messages are published to")
		fs.Func("allowed-origins", "comma-separated browser origin host patterns", func(v string) error {
			cfg.AllowedOrigins = strings.Split(v, ",")

			return nil
		})
	})
	if err != nil {
		return err
	}

	log := newLogger(cfg, e.stderr)

	srv := server.New(log, server.Config{
		BridgePath:     cfg.BridgePath,
		AllowedOrigins: cfg.AllowedOrigins,
		Bridge:         *cfg.BridgeOptions(log),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.ListenAddr)
	})

	if cfg.RedisAddr != "" {
		g.Go(func() error {
			return serveRedis(gctx, log, cfg, srv)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// serveRedis runs a bridge listening on the configured Redis channel and
// publishing to the target channel, with the same handlers as the WebSocket
// bridges.
func serveRedis(ctx context.Context, log *slog.Logger, cfg *config.File, srv *server.Server) error {
	if cfg.RedisTarget == "" {
		return fmt.Errorf("redis_target is required when redis_addr is set")
	}

	if cfg.RedisTarget == cfg.RedisChannel {
		return fmt.Errorf("redis_target must differ from redis_channel %q", cfg.RedisChannel)
	}

	client, err := redistransport.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}

	defer client.Close()

	ch := redistransport.New(log, client, cfg.RedisChannel)

	b := bridge.New(ch)
	if err := b.Start(ctx, srv.BridgeOptions(ch.To(cfg.RedisTarget))); err != nil {
		return fmt.Errorf("start redis bridge: %w", err)
	}

	defer b.Close()

	return ch.Run(ctx)
}
