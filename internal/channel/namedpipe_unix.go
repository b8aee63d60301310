//go:build !windows

package channel

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// DialNamedPipe connects to name as a Unix-domain socket under the
// standard channel socket directory and performs the handshake. This is
// the Unix arm of the named-pipe transport (spec.md §4.1); the
// equivalent Windows arm uses go-winio (namedpipe_windows.go).
func DialNamedPipe(name string, handshakeTimeout time.Duration, delegate Delegate, logger *slog.Logger) (*NamedPipeChannel, error) {
	addr := socketPath(name)

	conn, err := net.DialTimeout("unix", addr, handshakeTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial named pipe %s: %w", addr, err)
	}
	return newNamedPipeChannel(netConnPipe{conn}, handshakeTimeout, delegate, logger)
}

// ListenNamedPipe creates the Unix-domain socket for name, accepts
// exactly one connection (the controller), performs the handshake, and
// returns the resulting channel. The socket file is removed once the
// first connection is accepted or the listener is closed.
func ListenNamedPipe(name string, handshakeTimeout time.Duration, delegate Delegate, logger *slog.Logger) (*NamedPipeChannel, error) {
	addr := socketPath(name)
	_ = os.Remove(addr)

	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("listen named pipe %s: %w", addr, err)
	}
	defer func() {
		_ = ln.Close()
		_ = os.Remove(addr)
	}()

	// Tighten the socket file to the owner only; a stray controller on a
	// shared multi-user host must not be able to open the channel.
	if err := unix.Chmod(addr, 0o600); err != nil && logger != nil {
		logger.Warn("failed to chmod named pipe socket", "path", addr, "error", err)
	}

	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := ln.Accept()
		accepted <- acceptResult{conn, err}
	}()

	select {
	case r := <-accepted:
		if r.err != nil {
			return nil, fmt.Errorf("accept named pipe: %w", r.err)
		}
		return newNamedPipeChannel(netConnPipe{r.conn}, handshakeTimeout, delegate, logger)
	case <-time.After(handshakeTimeout):
		return nil, fmt.Errorf("timed out waiting for named pipe connection on %s", addr)
	}
}

func socketPath(name string) string {
	dir := os.TempDir()
	return dir + "/" + name + ".sock"
}
