package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/wagiedev/postbridge-go/internal/bridge"
	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/transport/pipe"
	wstransport "github.com/wagiedev/postbridge-go/internal/transport/websocket"
)

// peerConn is a connection that is both the local endpoint and the remote
// peer, such as a WebSocket or a child process.
type peerConn interface {
	config.Endpoint
	config.Peer
	Run(ctx context.Context) error
	Close() error
}

var (
	_ peerConn = (*wstransport.Conn)(nil)
	_ peerConn = (*pipe.Process)(nil)
	_ peerConn = (*pipe.Conn)(nil)
)

// dialPeer spawns argv when given, otherwise dials the configured URL.
func dialPeer(ctx context.Context, log *slog.Logger, cfg *config.File, argv []string) (peerConn, error) {
	if len(argv) > 0 {
		return pipe.StartProcess(ctx, log, argv[0], argv[1:]...)
	}

	return wstransport.Dial(ctx, log, cfg.URL)
}

// session is a started bridge whose connection is being read.
type session struct {
	conn    peerConn
	bridge  *bridge.Bridge
	cancel  context.CancelFunc
	runDone chan error
}

// startSession starts a bridge on conn targeting the remote side and begins
// reading frames.
func startSession(ctx context.Context, conn peerConn, opts *config.Options) (*session, error) {
	opts.Target = conn

	b := bridge.New(conn)
	if err := b.Start(ctx, opts); err != nil {
		_ = conn.Close()

		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	s := &session{
		conn:    conn,
		bridge:  b,
		cancel:  cancel,
		runDone: make(chan error, 1),
	}

	go func() { s.runDone <- conn.Run(runCtx) }()

	return s, nil
}

// Done receives the result of the read loop once the connection ends.
func (s *session) Done() <-chan error { return s.runDone }

func (s *session) Close() {
	_ = s.bridge.Close()
	_ = s.conn.Close()
	s.cancel()
}

// nopCloser turns a writer the command does not own into an io.WriteCloser.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeCloser(w io.Writer) io.WriteCloser {
	if wc, ok := w.(io.WriteCloser); ok {
		return wc
	}

	return nopCloser{w}
}
