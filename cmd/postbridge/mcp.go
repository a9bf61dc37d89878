package main

import (
	"context"
	"flag"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/mcpgate"
)

// runMCP serves bridge_call and bridge_send on stdio, forwarding to the peer
// at -url or to a spawned command.
func runMCP(ctx context.Context, e env, args []string) error {
	cfg, argv, err := loadConfig("mcp", e, args, func(fs *flag.FlagSet, cfg *config.File) {
		fs.StringVar(&cfg.URL, "url", cfg.URL, "bridge WebSocket URL")
	})
	if err != nil {
		return err
	}

	log := newLogger(cfg, e.stderr)

	conn, err := dialPeer(ctx, log, cfg, argv)
	if err != nil {
		return err
	}

	s, err := startSession(ctx, conn, cfg.BridgeOptions(log))
	if err != nil {
		return err
	}

	defer s.Close()

	return mcpgate.New(log, s.bridge).Run(ctx, "postbridge", version)
}
