package postbridge

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wagiedev/postbridge-go/internal/config"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTarget sets the peer outbound frames are posted to.
// Without a target, or with a target that loops back to the local endpoint,
// sends are silent no-ops.
func WithTarget(target Peer) Option {
	return func(o *Options) {
		o.Target = target
	}
}

// WithMessagePrefix sets the prefix marking bridge frames. Defaults to "yzMsg:".
func WithMessagePrefix(prefix string) Option {
	return func(o *Options) {
		o.MessagePrefix = prefix
	}
}

// WithTargetOrigin restricts delivery of outbound frames to receivers with
// the given origin. Defaults to "*".
func WithTargetOrigin(origin string) Option {
	return func(o *Options) {
		o.TargetOrigin = origin
	}
}

// WithHandlers sets the methods the remote side may invoke.
// The registry is copied when the bridge starts.
func WithHandlers(handlers Registry) Option {
	return func(o *Options) {
		o.Handlers = handlers
	}
}

// WithDefaultTimeout sets the timeout for requests issued without one.
// Defaults to 5 seconds.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.DefaultTimeout = timeout
	}
}

// ===== Advanced Configuration =====

// WithReplyPolicy controls whether synchronous handlers answer invocations
// that carry a callbackId. Defaults to ReplyAwaitable.
func WithReplyPolicy(policy ReplyPolicy) Option {
	return func(o *Options) {
		o.ReplyPolicy = policy
	}
}

// WithCallbackNamespace sets the prefix of generated call identifiers.
// Defaults to "yzCallbackId".
func WithCallbackNamespace(namespace string) Option {
	return func(o *Options) {
		o.CallbackNamespace = namespace
	}
}

// WithULIDCallbackIDs generates call identifiers from ULIDs instead of a
// counter, so several bridges sharing a channel never collide.
func WithULIDCallbackIDs() Option {
	return func(o *Options) {
		o.CallbackIDs = config.CallbackIDULID
	}
}

// WithMetrics registers Prometheus collectors for frames, calls and handler
// failures with reg. Bridges sharing a registry share the collectors.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.MetricsRegisterer = reg
	}
}
