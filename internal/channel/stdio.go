package channel

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// StdioChannel is the stdio transport variant (spec.md §4.1): inherited
// handles from the parent, no handshake.
type StdioChannel struct {
	r        io.Reader
	delegate Delegate
	logger   *slog.Logger

	wq *writeQueue

	closeOnce sync.Once
}

// NewStdioChannel wraps r/w as a framed stdio channel and starts the
// read loop immediately. OnConnected fires synchronously before return
// since stdio has no handshake.
func NewStdioChannel(r io.Reader, w io.Writer, delegate Delegate, logger *slog.Logger) *StdioChannel {
	c := &StdioChannel{r: r, delegate: delegate, logger: logger, wq: newWriteQueue(w, logger)}

	if delegate.OnConnected != nil {
		delegate.OnConnected()
	}

	go c.readLoop()
	return c
}

func (c *StdioChannel) readLoop() {
	for {
		frame, err := readFrame(c.r)
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

func (c *StdioChannel) Send(frame []byte) error {
	return c.wq.send(frame)
}

// Shutdown drains the write queue up to timeout. The inherited stdin and
// stdout handles are not closed.
func (c *StdioChannel) Shutdown(timeout time.Duration) error {
	return c.wq.closeAndDrain(timeout)
}
