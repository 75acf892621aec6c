package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"yqhp/distcalc/pkg/types"
)

// Client sends task and kill requests to worker nodes over TCP.
// The zero value is ready to use.
type Client struct {
	// DialTimeout caps connection setup independently of the context deadline.
	// Zero means only the context bounds it.
	DialTimeout time.Duration
}

// NewClient creates a client with the given dial timeout.
func NewClient(dialTimeout time.Duration) *Client {
	return &Client{DialTimeout: dialTimeout}
}

// SendTask delivers one task and waits for the worker's numeric reply.
// The context deadline bounds the whole round trip.
func (c *Client) SendTask(ctx context.Context, addr string, task types.Task) (float64, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if _, err := conn.Write(EncodeTask(task)); err != nil {
		return 0, fmt.Errorf("send %s to %s: %w", task, addr, err)
	}

	reply, err := io.ReadAll(io.LimitReader(conn, MaxMessageSize))
	if err != nil {
		return 0, fmt.Errorf("receive from %s: %w", addr, err)
	}

	value, err := ParseResult(reply)
	if err != nil {
		return 0, fmt.Errorf("reply from %s: %w", addr, err)
	}
	return value, nil
}

// SendKill delivers a kill directive. No reply is expected.
func (c *Client) SendKill(ctx context.Context, addr string, sleepSeconds int) error {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(EncodeKill(sleepSeconds)); err != nil {
		return fmt.Errorf("send kill to %s: %w", addr, err)
	}
	return nil
}

// dial connects and ties the connection deadline to ctx.
func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set deadline for %s: %w", addr, err)
		}
	}

	// Unblock pending I/O when ctx is cancelled without a deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	return &stopConn{Conn: conn, stop: stop}, nil
}

// stopConn releases the context hook on Close.
type stopConn struct {
	net.Conn
	stop func() bool
}

func (c *stopConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// IsTimeout reports whether err was caused by a deadline rather than a
// broken peer.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, types.ErrAttemptTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
