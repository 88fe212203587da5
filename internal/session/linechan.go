package session

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"

	"netconsole/internal/errors"
)

// LineChannel turns a byte-oriented connection into a line-oriented
// one.  It is not safe for concurrent use: only the goroutine that
// owns the session may call it.
type LineChannel struct {
	conn   net.Conn
	reader *bufio.Reader
}

// NewLineChannel wraps conn.
func NewLineChannel(conn net.Conn) *LineChannel {
	return &LineChannel{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// WriteLine sends text followed by a newline.  Each call is a single
// unbuffered write, so the peer sees the line immediately.
func (c *LineChannel) WriteLine(text string) error {
	if _, err := io.WriteString(c.conn, text+"\n"); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrChannelClosed,
			errors.Wrap("write", c.remote(), err))
	}
	return nil
}

// ReadLine blocks until a full line arrives and returns it without its
// terminator ("\n" or "\r\n").  When the peer closes its side, any
// unterminated trailing text is returned first and io.EOF after that.
// Every other failure, including the connection being closed under a
// blocked read, is reported wrapped in errors.ErrChannelClosed.
func (c *LineChannel) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line != "" {
				return strings.TrimSuffix(line, "\r"), nil
			}
			return "", io.EOF
		}
		return "", fmt.Errorf("%w: %w", errors.ErrChannelClosed,
			errors.Wrap("read", c.remote(), err))
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (c *LineChannel) remote() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "?"
}

func (c *LineChannel) String() string {
	return "LineChannel{" + c.remote() + "}"
}
