package config

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/postbridge-go/internal/envelope"
	"github.com/wagiedev/postbridge-go/internal/handler"
	"github.com/wagiedev/postbridge-go/internal/metrics"
)

const (
	// DefaultTargetOrigin delivers to any origin.
	DefaultTargetOrigin = "*"

	// DefaultTimeout bounds correlated requests that do not pass their own timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultCallbackNamespace prefixes generated call identifiers.
	DefaultCallbackNamespace = "yzCallbackId"
)

// ReplyPolicy decides whether synchronous handlers answer correlated invocations.
type ReplyPolicy string

const (
	// ReplyAwaitable only replies for asynchronous handlers. A synchronous
	// handler invoked with a callbackId sends nothing and the remote caller
	// runs into its own timeout.
	ReplyAwaitable ReplyPolicy = "awaitable"

	// ReplyAlways also sends a synchronous handler's return value as the reply.
	ReplyAlways ReplyPolicy = "always"
)

// CallbackIDStrategy selects how call identifiers are generated.
type CallbackIDStrategy string

const (
	// CallbackIDCounter yields "<namespace>:1", "<namespace>:2", ...
	CallbackIDCounter CallbackIDStrategy = "counter"

	// CallbackIDULID yields "<namespace>:<ULID>", unique across engines.
	CallbackIDULID CallbackIDStrategy = "ulid"
)

// Options configures the behavior of a bridge.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// Target is where outbound frames are posted. Nil means the local
	// endpoint itself, which turns every send into a no-op.
	Target Peer

	// MessagePrefix marks frames that belong to the bridge.
	// Defaults to envelope.DefaultPrefix.
	MessagePrefix string

	// TargetOrigin restricts delivery of outbound frames. Defaults to "*".
	TargetOrigin string

	// Handlers serves remote method invocations. The map is copied at
	// construction and never mutated by the bridge.
	Handlers handler.Registry

	// DefaultTimeout applies to requests issued without an explicit timeout.
	DefaultTimeout time.Duration

	// ReplyPolicy controls replies from synchronous handlers.
	ReplyPolicy ReplyPolicy

	// CallbackNamespace prefixes call identifiers. Defaults to "yzCallbackId".
	CallbackNamespace string

	// CallbackIDs selects the identifier generator.
	CallbackIDs CallbackIDStrategy

	// Metrics receives frame and call observations. Nil disables metrics.
	Metrics metrics.Recorder

	// MetricsRegisterer, when set, registers Prometheus collectors at Start
	// and takes precedence over Metrics.
	MetricsRegisterer prometheus.Registerer
}

// WithDefaults returns a copy of the options with every unset field filled in.
func (o *Options) WithDefaults() *Options {
	out := Options{}
	if o != nil {
		out = *o
	}

	if out.Logger == nil {
		out.Logger = slog.New(slog.DiscardHandler)
	}

	if out.MessagePrefix == "" {
		out.MessagePrefix = envelope.DefaultPrefix
	}

	if out.TargetOrigin == "" {
		out.TargetOrigin = DefaultTargetOrigin
	}

	if out.DefaultTimeout <= 0 {
		out.DefaultTimeout = DefaultTimeout
	}

	if out.ReplyPolicy == "" {
		out.ReplyPolicy = ReplyAwaitable
	}

	if out.CallbackNamespace == "" {
		out.CallbackNamespace = DefaultCallbackNamespace
	}

	if out.CallbackIDs == "" {
		out.CallbackIDs = CallbackIDCounter
	}

	if out.Metrics == nil {
		out.Metrics = metrics.Nop()
	}

	return &out
}
