// Command postbridge serves and drives prefixed-message bridges.
//
// Usage:
//
//	postbridge serve  [-listen :8080] [-redis-addr addr -redis-target name]
//	postbridge call   -url ws://host/bridge -method ping [-data '{"a":1}']
//	postbridge call   -method ping -- postbridge stdio
//	postbridge stdio
//	postbridge mcp    -url ws://host/bridge
//
// Configuration is layered: built-in defaults, the YAML file named by -config
// or POSTBRIDGE_CONFIG, POSTBRIDGE_* environment variables, then flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wagiedev/postbridge-go/internal/config"
)

var version = "dev"

// env carries the process surroundings so commands can run in tests.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

type command struct {
	summary string
	run     func(ctx context.Context, e env, args []string) error
}

var commands = map[string]command{
	"serve": {summary: "serve bridges over WebSocket (and optionally Redis)", run: runServe},
	"call":  {summary: "issue one request and print the reply", run: runCall},
	"stdio": {summary: "serve the built-in handlers over stdin and stdout", run: runStdio},
	"mcp":   {summary: "expose a remote bridge peer as MCP tools on stdio", run: runMCP},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}

	if err := run(ctx, e, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "postbridge:", err)
		}

		os.Exit(1)
	}
}

func run(ctx context.Context, e env, args []string) error {
	if len(args) == 0 {
		usage(e.stderr)

		return flag.ErrHelp
	}

	switch args[0] {
	case "-h", "-help", "--help", "help":
		usage(e.stdout)

		return nil
	case "version", "-version", "--version":
		fmt.Fprintf(e.stdout, "postbridge version=%s\n", version)

		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		usage(e.stderr)

		return fmt.Errorf("unknown command %q", args[0])
	}

	return cmd.run(ctx, e, args[1:])
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "postbridge version=%s\n\nCommands:\n", version)

	for _, name := range []string{"serve", "call", "stdio", "mcp"} {
		fmt.Fprintf(w, "  %-6s %s\n", name, commands[name].summary)
	}
}

// loadConfig layers defaults, the config file, the environment and flags.
// bind registers command-specific flags; it is called once per parse pass.
// The remaining positional arguments are returned.
func loadConfig(
	name string,
	e env,
	args []string,
	bind func(fs *flag.FlagSet, cfg *config.File),
) (*config.File, []string, error) {
	path := e.getenv("POSTBRIDGE_CONFIG")

	newFlagSet := func(cfg *config.File, out io.Writer) *flag.FlagSet {
		fs := flag.NewFlagSet("postbridge "+name, flag.ContinueOnError)
		fs.SetOutput(out)
		fs.StringVar(&path, "config", path, "YAML config file (env POSTBRIDGE_CONFIG)")
		cfg.BindFlags(fs)

		if bind != nil {
			bind(fs, cfg)
		}

		return fs
	}

	// First pass only finds -config; its values are discarded.
	if err := newFlagSet(config.DefaultFile(), io.Discard).Parse(args); err != nil {
		// Re-parse with output so the user sees usage or the error.
		_ = newFlagSet(config.DefaultFile(), e.stderr).Parse(args)

		return nil, nil, err
	}

	cfg := config.DefaultFile()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}

	if err := cfg.ApplyEnv(e.getenv); err != nil {
		return nil, nil, err
	}

	fs := newFlagSet(cfg, e.stderr)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, fs.Args(), nil
}

// newLogger writes text logs to stderr, keeping stdout for command output.
func newLogger(cfg *config.File, w io.Writer) *slog.Logger {
	level, enabled := cfg.Level()
	if !enabled {
		return slog.New(slog.DiscardHandler)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
