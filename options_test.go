package postbridge

import (
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/postbridge-go/internal/config"
)

func TestApplyOptions(t *testing.T) {
	log := slog.Default()
	reg := prometheus.NewRegistry()
	handlers := Registry{"ping": Async(nil)}
	target := NewMemoryHub(nil).Open("https://t.example").Self()

	options := applyOptions([]Option{
		WithLogger(log),
		WithTarget(target),
		WithMessagePrefix("app:"),
		WithTargetOrigin("https://t.example"),
		WithHandlers(handlers),
		WithDefaultTimeout(time.Second),
		WithReplyPolicy(ReplyAlways),
		WithCallbackNamespace("cb"),
		WithULIDCallbackIDs(),
		WithMetrics(reg),
	})

	require.Same(t, log, options.Logger)
	require.Equal(t, target, options.Target)
	require.Equal(t, "app:", options.MessagePrefix)
	require.Equal(t, "https://t.example", options.TargetOrigin)
	require.Equal(t, handlers, options.Handlers)
	require.Equal(t, time.Second, options.DefaultTimeout)
	require.Equal(t, ReplyAlways, options.ReplyPolicy)
	require.Equal(t, "cb", options.CallbackNamespace)
	require.Equal(t, config.CallbackIDULID, options.CallbackIDs)
	require.Equal(t, reg, options.MetricsRegisterer)
}

func TestApplyOptions_Empty(t *testing.T) {
	options := applyOptions(nil).WithDefaults()

	require.Equal(t, DefaultPrefix, options.MessagePrefix)
	require.Equal(t, DefaultTargetOrigin, options.TargetOrigin)
	require.Equal(t, DefaultTimeout, options.DefaultTimeout)
	require.Equal(t, ReplyAwaitable, options.ReplyPolicy)
	require.Nil(t, options.Target)
}
