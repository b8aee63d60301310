//go:build windows

package channel

import (
	"fmt"
	"log/slog"
	"time"

	winio "github.com/Microsoft/go-winio"
)

// DialNamedPipe connects to a Windows named pipe and performs the
// handshake (spec.md §4.1). This is the Windows arm of the named-pipe
// transport; the Unix arm (namedpipe_unix.go) uses a domain socket,
// mirroring the OS-tag split the example pack uses for other
// platform-specific transports.
func DialNamedPipe(name string, handshakeTimeout time.Duration, delegate Delegate, logger *slog.Logger) (*NamedPipeChannel, error) {
	path := pipePath(name)

	conn, err := winio.DialPipe(path, &handshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial named pipe %s: %w", path, err)
	}
	return newNamedPipeChannel(conn, handshakeTimeout, delegate, logger)
}

// ListenNamedPipe creates path, accepts exactly one connection (the
// controller), performs the handshake, and returns the resulting
// channel.
func ListenNamedPipe(name string, handshakeTimeout time.Duration, delegate Delegate, logger *slog.Logger) (*NamedPipeChannel, error) {
	path := pipePath(name)

	ln, err := winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)", // owner-only access; this process is parent-spawned.
		MessageMode:        false,
	})
	if err != nil {
		return nil, fmt.Errorf("listen named pipe %s: %w", path, err)
	}
	defer func() { _ = ln.Close() }()

	accepted := make(chan error, 1)
	connCh := make(chan pipeConn, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			accepted <- err
			return
		}
		connCh <- conn
		accepted <- nil
	}()

	select {
	case err := <-accepted:
		if err != nil {
			return nil, fmt.Errorf("accept named pipe: %w", err)
		}
		conn := <-connCh
		return newNamedPipeChannel(conn, handshakeTimeout, delegate, logger)
	case <-time.After(handshakeTimeout):
		return nil, fmt.Errorf("timed out waiting for named pipe connection on %s", path)
	}
}

func pipePath(name string) string {
	return `\\.\pipe\` + name
}
