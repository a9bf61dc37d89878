package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/envelope"
)

// runCall issues one correlated request and prints the reply data. Arguments
// after the flags name a command to spawn and talk to over stdio instead of
// dialing -url.
func runCall(ctx context.Context, e env, args []string) error {
	var method, data string

	cfg, argv, err := loadConfig("call", e, args, func(fs *flag.FlagSet, cfg *config.File) {
		fs.StringVar(&cfg.URL, "url", cfg.URL, "bridge WebSocket URL")
		fs.StringVar(&method, "method", method, "method to invoke on the remote peer")
		fs.StringVar(&data, "data", data, "JSON payload")
	})
	if err != nil {
		return err
	}

	if method == "" {
		return errors.New("-method is required")
	}

	var payload json.RawMessage
	if data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("-data is not valid JSON: %s", data)
		}

		payload = json.RawMessage(data)
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

	reply, err := s.bridge.Request(ctx, envelope.Envelope{Method: method, Data: payload}, 0)
	if err != nil {
		return err
	}

	if reply == nil {
		reply = json.RawMessage("null")
	}

	_, err = fmt.Fprintln(e.stdout, string(reply))

	return err
}
