package pipe

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/postbridge-go/internal/errors"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestProcess_Echo(t *testing.T) {
	requireCommand(t, "cat")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := StartProcess(ctx, nil, "cat")
	require.NoError(t, err)

	var got collector

	proc.Subscribe(got.add)

	runErr := make(chan error, 1)

	go func() { runErr <- proc.Run(ctx) }()

	require.NoError(t, proc.PostMessage(ctx, "hello", "*"))
	require.Eventually(t, func() bool { return len(got.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"hello"}, got.get())

	// cat exits cleanly once its input ends.
	require.NoError(t, proc.EndInput())
	require.NoError(t, <-runErr)
}

func TestProcess_ExitError(t *testing.T) {
	requireCommand(t, "sh")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := StartProcess(ctx, nil, "sh", "-c", "echo broken >&2; exit 3")
	require.NoError(t, err)

	err = proc.Run(ctx)

	var procErr *errors.ProcessError

	require.ErrorAs(t, err, &procErr)
	require.Equal(t, 3, procErr.ExitCode)
	require.Equal(t, "broken", procErr.Stderr)
}

func TestProcess_Close(t *testing.T) {
	requireCommand(t, "sleep")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc, err := StartProcess(ctx, nil, "sleep", "30")
	require.NoError(t, err)

	runErr := make(chan error, 1)

	go func() { runErr <- proc.Run(ctx) }()

	require.NoError(t, proc.Close())
	require.NoError(t, <-runErr)
	require.NoError(t, proc.Close())
}

func TestStartProcess_NotFound(t *testing.T) {
	_, err := StartProcess(context.Background(), nil, "postbridge-no-such-binary")
	require.Error(t, err)
}
