package util

import (
	"context"
	"io"
	"net"
	"sync/atomic"

	"netconsole/internal/errors"
)

// RelayStats reports how many bytes a Relay moved in each direction.
type RelayStats struct {
	Sent     int64 // local reader → connection
	Received int64 // connection → local writer
}

// countingWriter tallies bytes as they pass so a copy that is still
// blocked can be reported on.
type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// Relay shuttles data between a console connection and a local
// reader/writer pair (typically stdin/stdout) until the remote side
// closes or the context is cancelled.
//
// When r reaches EOF the write half of conn is closed, which the
// console server treats as end of input and answers by closing the
// connection, so everything it still had to say is drained first.
//
// Relay returns as soon as the connection is done.  A reader blocked
// in Read (a terminal, say) is left behind; its goroutine exits on
// the next read because the connection is closed by then.
func Relay(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) (RelayStats, error) {
	out := &countingWriter{w: w}
	in := &countingWriter{w: conn}

	recvDone := make(chan error, 1)
	sendDone := make(chan error, 1)

	// connection → writer
	go func() {
		_, err := io.Copy(out, conn)
		recvDone <- err
	}()

	// reader → connection
	go func() {
		_, err := io.Copy(in, r)
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			cw.CloseWrite() //nolint:errcheck
		}
		sendDone <- err
	}()

	var recvErr, sendErr error
	select {
	case recvErr = <-recvDone:
	case <-ctx.Done():
		conn.Close() // unblock the receive side
		recvErr = <-recvDone
	}
	conn.Close()

	select {
	case sendErr = <-sendDone:
	default:
	}

	stats := RelayStats{Sent: in.n.Load(), Received: out.n.Load()}
	for _, err := range []error{recvErr, sendErr} {
		if err != nil && !errors.IsClosed(err) {
			return stats, err
		}
	}
	return stats, nil
}
