package main

import (
	"context"

	"github.com/wagiedev/postbridge-go/internal/server"
	"github.com/wagiedev/postbridge-go/internal/transport/pipe"
)

// runStdio serves the built-in handlers to the process on the other end of
// stdin and stdout until stdin closes.
func runStdio(ctx context.Context, e env, args []string) error {
	cfg, _, err := loadConfig("stdio", e, args, nil)
	if err != nil {
		return err
	}

	log := newLogger(cfg, e.stderr)

	opts := cfg.BridgeOptions(log)
	opts.Handlers = server.Handlers(log, nil)

	s, err := startSession(ctx, pipe.New(log, e.stdin, writeCloser(e.stdout), "stdio"), opts)
	if err != nil {
		return err
	}

	defer s.Close()

	select {
	case err := <-s.Done():
		return err
	case <-ctx.Done():
		return nil
	}
}
