package pipe

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/postbridge-go/internal/errors"
)

// maxStderrBufferSize caps the stderr kept for error reports.
const maxStderrBufferSize = 64 * 1024

// Process is a child process acting as the remote peer: frames go to its
// stdin and come from its stdout. Stderr lines are logged at debug level.
type Process struct {
	*Conn

	log    *slog.Logger
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu      sync.Mutex
	closing bool
}

// StartProcess spawns name with args.
func StartProcess(ctx context.Context, log *slog.Logger, name string, args ...string) (*Process, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	log = log.With("component", "process", "command", name)

	//nolint:gosec // G204: the command line is chosen by the operator
	cmd := exec.CommandContext(ctx, name, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	log.Info("Process started", "pid", cmd.Process.Pid)

	return &Process{
		Conn:   New(log, stdout, stdin, "process:"+name),
		log:    log,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// Run delivers frames from stdout until the process exits, then reports how
// it exited. An exit caused by Close returns nil.
func (p *Process) Run(ctx context.Context) error {
	var (
		stderrMu  sync.Mutex
		stderrBuf strings.Builder
	)

	// Reads must complete before Wait closes the pipes.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Conn.Run(gctx)
	})

	g.Go(func() error {
		scanner := bufio.NewScanner(p.stderr)
		for scanner.Scan() {
			line := scanner.Text()
			p.log.Debug("Process stderr", "line", line)

			stderrMu.Lock()

			if stderrBuf.Len() < maxStderrBufferSize {
				if stderrBuf.Len() > 0 {
					stderrBuf.WriteString("\n")
				}

				stderrBuf.WriteString(line)
			}

			stderrMu.Unlock()
		}

		return nil
	})

	readErr := g.Wait()

	waitErr := p.cmd.Wait()

	p.mu.Lock()
	closing := p.closing
	p.mu.Unlock()

	if closing {
		p.log.Debug("Process terminated during shutdown")

		return nil
	}

	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr); ok {
			exitCode = exitErr.ExitCode()
		}

		stderrMu.Lock()
		stderrOutput := stderrBuf.String()
		stderrMu.Unlock()

		p.log.Error("Process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

		return &errors.ProcessError{ExitCode: exitCode, Stderr: stderrOutput, Err: waitErr}
	}

	p.log.Info("Process exited")

	return readErr
}

// Close closes stdin and kills the process. It's safe to call Close multiple
// times or on an exited process.
func (p *Process) Close() error {
	p.mu.Lock()
	p.closing = true
	p.mu.Unlock()

	_ = p.Conn.Close()

	if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process (pid %d): %w", p.cmd.Process.Pid, err)
	}

	return nil
}

// EndInput closes stdin so the process can finish and exit on its own.
func (p *Process) EndInput() error {
	return p.Conn.Close()
}
