package channel

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// handshakeMagic is the 32-bit magic exchanged on named-pipe connect
// (spec.md §4.1).
const handshakeMagic uint32 = 0xDEADBEEF

// DefaultHandshakeTimeout is the default handshake deadline; a handshake
// that does not complete within this window causes disconnection
// (spec.md §4.1, §5).
const DefaultHandshakeTimeout = 10 * time.Second

// pipeConn is the minimal surface both OS-specific listeners need to
// hand back per-connection; named per the transport, not the OS.
type pipeConn interface {
	io.ReadWriteCloser
}

// NamedPipeChannel is the named-pipe transport variant (spec.md §4.1):
// identified by a channel name, master/slave handshake with a 32-bit
// magic and a handshake timeout that causes disconnection on expiry.
type NamedPipeChannel struct {
	conn      pipeConn
	delegate  Delegate
	logger    *slog.Logger
	wq        *writeQueue
	closeOnce sync.Once
}

// acceptedConn carries the result of one platform-specific pipe accept:
// the connection, or the error that prevented it.
type acceptedConn struct {
	conn pipeConn
	err  error
}

// newNamedPipeChannel performs the handshake over an already-accepted
// connection and, on success, starts the read loop. A handshake
// failure or timeout closes the connection and returns an error without
// ever calling OnConnected.
func newNamedPipeChannel(conn pipeConn, handshakeTimeout time.Duration, delegate Delegate, logger *slog.Logger) (*NamedPipeChannel, error) {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}

	type result struct{ err error }
	done := make(chan result, 1)

	go func() {
		done <- result{err: performHandshake(conn)}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("named-pipe handshake failed: %w", r.err)
		}
	case <-time.After(handshakeTimeout):
		_ = conn.Close()
		return nil, fmt.Errorf("named-pipe handshake timed out after %s", handshakeTimeout)
	}

	c := &NamedPipeChannel{conn: conn, delegate: delegate, logger: logger, wq: newWriteQueue(conn, logger)}
	if delegate.OnConnected != nil {
		delegate.OnConnected()
	}
	go c.readLoop()
	return c, nil
}

// performHandshake writes the magic, then reads it back from the peer.
// Real named-pipe peers (master/slave) agree out of band on who writes
// first; here the core always writes first since it is the slave side
// spawned by the controller.
func performHandshake(conn pipeConn) error {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], handshakeMagic)
	if _, err := conn.Write(out[:]); err != nil {
		return fmt.Errorf("write handshake magic: %w", err)
	}

	var in [4]byte
	if _, err := io.ReadFull(conn, in[:]); err != nil {
		return fmt.Errorf("read handshake magic: %w", err)
	}
	if binary.BigEndian.Uint32(in[:]) != handshakeMagic {
		return fmt.Errorf("handshake magic mismatch")
	}
	return nil
}

func (c *NamedPipeChannel) readLoop() {
	for {
		frame, err := readFrame(c.conn)
		if err != nil {
			c.closeOnce.Do(func() {
				if c.delegate.OnDisconnected != nil {
					c.delegate.OnDisconnected(err)
				}
			})
			return
		}
		if c.delegate.OnData != nil {
			c.delegate.OnData(frame)
		}
	}
}

func (c *NamedPipeChannel) Send(frame []byte) error {
	return c.wq.send(frame)
}

func (c *NamedPipeChannel) Shutdown(timeout time.Duration) error {
	err := c.wq.closeAndDrain(timeout)
	_ = c.conn.Close()
	return err
}

// netConnPipe adapts a net.Conn (used by the Unix-domain-socket arm) to
// pipeConn.
type netConnPipe struct{ net.Conn }
