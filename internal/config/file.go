package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wagiedev/postbridge-go/internal/envelope"
)

// envPrefix namespaces the environment variables read by File.ApplyEnv.
const envPrefix = "POSTBRIDGE_"

// File is the configuration of the postbridge command.
//
// Values are layered: defaults, then the YAML file, then POSTBRIDGE_*
// environment variables, then command-line flags.
type File struct {
	ListenAddr     string        `yaml:"listen_addr"`
	BridgePath     string        `yaml:"bridge_path"`
	URL            string        `yaml:"url"`
	MessagePrefix  string        `yaml:"message_prefix"`
	TargetOrigin   string        `yaml:"target_origin"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReplyPolicy    ReplyPolicy   `yaml:"reply_policy"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisChannel   string        `yaml:"redis_channel"`
	RedisTarget    string        `yaml:"redis_target"`
	LogLevel       string        `yaml:"log_level"`
}

// DefaultFile returns the built-in configuration.
func DefaultFile() *File {
	return &File{
		ListenAddr:     ":8080",
		BridgePath:     "/bridge",
		URL:            "ws://localhost:8080/bridge",
		MessagePrefix:  envelope.DefaultPrefix,
		TargetOrigin:   DefaultTargetOrigin,
		RequestTimeout: DefaultTimeout,
		ReplyPolicy:    ReplyAwaitable,
		RedisChannel:   "postbridge",
		LogLevel:       "info",
	}
}

// LoadFile populates the config from a YAML file. Fields absent from the file
// keep their current values.
func (f *File) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

// ApplyEnv overrides fields from POSTBRIDGE_* variables looked up via getenv.
func (f *File) ApplyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	str("LISTEN_ADDR", &f.ListenAddr)
	str("BRIDGE_PATH", &f.BridgePath)
	str("URL", &f.URL)
	str("MESSAGE_PREFIX", &f.MessagePrefix)
	str("TARGET_ORIGIN", &f.TargetOrigin)
	str("REDIS_ADDR", &f.RedisAddr)
	str("REDIS_CHANNEL", &f.RedisChannel)
	str("REDIS_TARGET", &f.RedisTarget)
	str("LOG_LEVEL", &f.LogLevel)

	if v := getenv(envPrefix + "ALLOWED_ORIGINS"); v != "" {
		f.AllowedOrigins = splitList(v)
	}

	if v := getenv(envPrefix + "REPLY_POLICY"); v != "" {
		f.ReplyPolicy = ReplyPolicy(v)
	}

	if v := getenv(envPrefix + "REQUEST_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err)
		}

		f.RequestTimeout = d
	}

	return nil
}

// BindFlags registers the shared flags on fs, using current values as defaults.
func (f *File) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.MessagePrefix, "prefix", f.MessagePrefix, "frame prefix shared with the remote peer")
	fs.StringVar(&f.TargetOrigin, "target-origin", f.TargetOrigin, "origin restriction for outbound frames (* for any)")
	fs.DurationVar(&f.RequestTimeout, "timeout", f.RequestTimeout, "default timeout for correlated requests")
	fs.StringVar(&f.LogLevel, "log-level", f.LogLevel, "log verbosity (debug, info, warn, error, none)")
	fs.Func("reply-policy", "sync handler reply policy (awaitable, always)", func(v string) error {
		f.ReplyPolicy = ReplyPolicy(v)

		return nil
	})
}

// Validate reports configuration errors.
func (f *File) Validate() error {
	switch f.ReplyPolicy {
	case ReplyAwaitable, ReplyAlways:
	default:
		return fmt.Errorf("invalid reply_policy %q: want %q or %q", f.ReplyPolicy, ReplyAwaitable, ReplyAlways)
	}

	if f.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", f.RequestTimeout)
	}

	if f.MessagePrefix == "" {
		return fmt.Errorf("message_prefix must not be empty")
	}

	if !strings.HasPrefix(f.BridgePath, "/") {
		return fmt.Errorf("bridge_path must start with /, got %q", f.BridgePath)
	}

	return nil
}

// BridgeOptions returns the bridge options described by the file.
func (f *File) BridgeOptions(log *slog.Logger) *Options {
	return &Options{
		Logger:         log,
		MessagePrefix:  f.MessagePrefix,
		TargetOrigin:   f.TargetOrigin,
		DefaultTimeout: f.RequestTimeout,
		ReplyPolicy:    f.ReplyPolicy,
	}
}

// Level converts LogLevel into a slog level. The boolean is false when
// logging is switched off entirely.
// Accepts: all, trace, debug, info, warn, warning, error, none, off, disabled.
// Unknown values default to info.
func (f *File) Level() (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(f.LogLevel)) {
	case "all", "trace", "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "fatal":
		return slog.LevelError, true
	case "none", "off", "disabled":
		return slog.LevelError, false
	default:
		return slog.LevelInfo, true
	}
}

// parseTimeout accepts Go durations ("1.5s") and bare milliseconds ("5000").
func parseTimeout(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return time.ParseDuration(v)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
