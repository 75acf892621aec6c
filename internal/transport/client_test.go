package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/distcalc/pkg/types"
)

// startServer accepts connections and hands each one to handle.
func startServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	return ln.Addr().String()
}

// readRequest reads one request the way a worker does.
func readRequest(conn net.Conn) (*Request, error) {
	buf := make([]byte, MaxMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return DecodeRequest(buf[:n])
}

func TestSendTask(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		req, err := readRequest(conn)
		if err != nil {
			return
		}
		conn.Write(EncodeResult(req.Upper - req.Lower))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	v, err := NewClient(time.Second).SendTask(ctx, addr, types.Task{Lower: 1, Upper: 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestSendTaskConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewClient(time.Second).SendTask(context.Background(), addr, types.Task{Lower: 0, Upper: 1})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestSendTaskClosedWithoutReply(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		readRequest(conn)
		conn.Close()
	})

	_, err := NewClient(time.Second).SendTask(context.Background(), addr, types.Task{Lower: 0, Upper: 1})
	assert.ErrorIs(t, err, types.ErrMalformedMessage)
	assert.False(t, IsTimeout(err))
}

func TestSendTaskNonNumericReply(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		readRequest(conn)
		conn.Write([]byte("overloaded"))
	})

	_, err := NewClient(time.Second).SendTask(context.Background(), addr, types.Task{Lower: 0, Upper: 1})
	assert.ErrorIs(t, err, types.ErrMalformedMessage)
}

func TestSendTaskTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		readRequest(conn)
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(time.Second).SendTask(ctx, addr, types.Task{Lower: 0, Upper: 1})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestSendTaskCancelled(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		readRequest(conn)
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	done := make(chan error, 1)
	go func() {
		_, err := NewClient(0).SendTask(ctx, addr, types.Task{Lower: 0, Upper: 1})
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SendTask did not return after cancellation")
	}
}

func TestSendKill(t *testing.T) {
	got := make(chan *Request, 1)
	addr := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		req, err := readRequest(conn)
		if err == nil {
			got <- req
		}
	})

	err := NewClient(time.Second).SendKill(context.Background(), addr, 5)
	require.NoError(t, err)

	select {
	case req := <-got:
		assert.Equal(t, RequestDie, req.Kind)
		assert.Equal(t, 5, req.SleepSeconds)
	case <-time.After(2 * time.Second):
		t.Fatal("kill directive not received")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.False(t, IsTimeout(errors.New("boom")))
	assert.False(t, IsTimeout(io.EOF))
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(types.ErrAttemptTimeout))
	assert.True(t, IsTimeout(&net.OpError{Op: "read", Err: timeoutErr{}}))
}
