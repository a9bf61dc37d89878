package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/server"
)

// lockedBuffer is a bytes.Buffer safe for concurrent writers and readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func testEnv(vars map[string]string) (env, *lockedBuffer, *lockedBuffer) {
	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}

	return env{
		stdin:  strings.NewReader(""),
		stdout: stdout,
		stderr: stderr,
		getenv: func(k string) string { return vars[k] },
	}, stdout, stderr
}

func TestRun_NoArgs(t *testing.T) {
	e, _, stderr := testEnv(nil)

	require.Error(t, run(context.Background(), e, nil))
	require.Contains(t, stderr.String(), "Commands:")
}

func TestRun_UnknownCommand(t *testing.T) {
	e, _, _ := testEnv(nil)

	err := run(context.Background(), e, []string{"frobnicate"})
	require.ErrorContains(t, err, `unknown command "frobnicate"`)
}

func TestRun_Version(t *testing.T) {
	e, stdout, _ := testEnv(nil)

	require.NoError(t, run(context.Background(), e, []string{"version"}))
	require.Equal(t, "postbridge version=dev\n", stdout.String())
}

func TestLoadConfig_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"message_prefix: \"file:\"\nurl: ws://file/bridge\nrequest_timeout: 3s\nlog_level: debug\n",
	), 0o600))

	e, _, _ := testEnv(map[string]string{
		"POSTBRIDGE_CONFIG": path,
		"POSTBRIDGE_URL":    "ws://env/bridge",
	})

	var method string

	cfg, rest, err := loadConfig("call", e, []string{"-timeout", "750ms", "-method", "ping", "extra"},
		func(fs *flag.FlagSet, cfg *config.File) {
			fs.StringVar(&cfg.URL, "url", cfg.URL, "")
			fs.StringVar(&method, "method", method, "")
		})
	require.NoError(t, err)

	require.Equal(t, "file:", cfg.MessagePrefix)
	require.Equal(t, "ws://env/bridge", cfg.URL)
	require.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "ping", method)
	require.Equal(t, []string{"extra"}, rest)
}

func TestLoadConfig_ConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reply_policy: always\n"), 0o600))

	e, _, _ := testEnv(nil)

	cfg, _, err := loadConfig("stdio", e, []string{"-config", path}, nil)
	require.NoError(t, err)
	require.Equal(t, config.ReplyAlways, cfg.ReplyPolicy)
}

func TestLoadConfig_Invalid(t *testing.T) {
	e, _, stderr := testEnv(nil)

	_, _, err := loadConfig("stdio", e, []string{"-reply-policy", "sometimes"}, nil)
	require.ErrorContains(t, err, "invalid reply_policy")

	_, _, err = loadConfig("stdio", e, []string{"-bogus"}, nil)
	require.Error(t, err)
	require.Contains(t, stderr.String(), "-bogus")
}

func TestCall_WebSocket(t *testing.T) {
	srv := server.New(nil, server.Config{})
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	e, stdout, _ := testEnv(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + server.DefaultBridgePath

	err := run(context.Background(), e, []string{
		"call", "-url", url, "-method", "echo", "-data", `{"a":1}`, "-log-level", "none",
	})
	require.NoError(t, err)
	require.Equal(t, "{\"a\":1}\n", stdout.String())
}

func TestCall_InvalidData(t *testing.T) {
	e, _, _ := testEnv(nil)

	err := run(context.Background(), e, []string{"call", "-method", "echo", "-data", "{nope"})
	require.ErrorContains(t, err, "not valid JSON")
}

func TestCall_MethodRequired(t *testing.T) {
	e, _, _ := testEnv(nil)

	require.ErrorContains(t, run(context.Background(), e, []string{"call"}), "-method is required")
}

func TestCall_Process(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	e, stdout, _ := testEnv(nil)

	script := `read line; echo 'yzMsg:{"callbackId":"yzCallbackId:1","data":"pong"}'; cat >/dev/null`

	err := run(context.Background(), e, []string{
		"call", "-method", "ping", "-timeout", "5s", "--", "sh", "-c", script,
	})
	require.NoError(t, err)
	require.Equal(t, "\"pong\"\n", stdout.String())
}

func TestStdio_ServesBuiltins(t *testing.T) {
	stdinR, stdinW := io.Pipe()

	e, stdout, _ := testEnv(nil)
	e.stdin = stdinR

	done := make(chan error, 1)

	go func() { done <- run(context.Background(), e, []string{"stdio"}) }()

	_, err := io.WriteString(stdinW, `yzMsg:{"method":"ping","callbackId":"c1"}`+"\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return stdout.String() == `yzMsg:{"callbackId":"c1","data":"pong"}`+"\n"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, stdinW.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stdio did not stop at end of input")
	}
}
