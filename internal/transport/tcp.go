package transport

import (
	"context"
	"net"
	"time"

	"netconsole/internal/errors"
	"netconsole/internal/retry"
	"netconsole/util"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // 0 uses the net package default
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }

// RetryDialer redials while the target refuses connections, which
// covers a console whose host process is still starting.  Any other
// failure is returned at once.  Errors are *errors.NetworkError values
// with Op "dial".
type RetryDialer struct {
	Dialer  Dialer
	Backoff *retry.Backoff
	Logger  *util.Logger
}

// Dial connects to address, retrying per Backoff.
func (d *RetryDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	logger := util.OrDiscard(d.Logger)
	bo := d.Backoff
	if bo == nil {
		bo = retry.DefaultBackoff()
	}
	attempts := *bo
	attempts.Retryable = errors.IsRetryable
	attempts.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Verbose("dial %s attempt %d failed (%v), retrying in %s",
			address, attempt, err, wait.Truncate(time.Millisecond))
	}

	var conn net.Conn
	err := attempts.Do(ctx, func(int) error {
		c, err := d.Dialer.Dial(ctx, network, address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, errors.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close closes the wrapped dialer.
func (d *RetryDialer) Close() error { return d.Dialer.Close() }
