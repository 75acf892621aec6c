package master

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/distcalc/internal/transport"
	"yqhp/distcalc/pkg/types"
)

func setupKillerTest(sender TaskSender, workers []types.Worker) (*FaultInjector, *Registry) {
	registry := NewRegistry(nil)
	registry.Replace(workers)
	return NewFaultInjector(registry, sender, time.Second, NewStats(), nil), registry
}

func TestKillFirstLiveWorkers(t *testing.T) {
	sender := newFakeSender(nil)
	injector, registry := setupKillerTest(sender, aliveWorkers(5))

	n, err := injector.Kill(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"10.0.0.1:10000", "10.0.0.2:10000"}, sender.killed())
	assert.Equal(t, []int{5, 5}, sender.killSleep)

	// Kill does not touch the registry
	assert.Equal(t, 5, registry.CountAlive())
}

func TestKillSkipsDeadAndUnreachable(t *testing.T) {
	sender := newFakeSender(nil)
	sender.killErr["10.0.0.2:10000"] = errors.New("connection refused")
	injector, registry := setupKillerTest(sender, aliveWorkers(5))
	registry.MarkDead(registry.Generation(), 0)

	n, err := injector.Kill(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"10.0.0.3:10000", "10.0.0.4:10000"}, sender.killed())
}

func TestKillMoreThanLive(t *testing.T) {
	sender := newFakeSender(nil)
	injector, _ := setupKillerTest(sender, aliveWorkers(3))

	n, err := injector.Kill(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestKillZero(t *testing.T) {
	sender := newFakeSender(nil)
	injector, _ := setupKillerTest(sender, aliveWorkers(3))

	n, err := injector.Kill(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, sender.killed())
}

func TestKillOverTCP(t *testing.T) {
	var (
		mu       sync.Mutex
		received = make(map[string]string)
	)

	workers := make([]types.Worker, 5)
	for i := range workers {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = ln.Close() })

		addr := ln.Addr().String()
		workers[i] = types.Worker{Address: addr, Alive: true}

		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				_ = conn.SetReadDeadline(time.Now().Add(time.Second))
				payload, _ := io.ReadAll(conn)
				mu.Lock()
				received[addr] = string(payload)
				mu.Unlock()
				_ = conn.Close()
			}
		}()
	}

	injector, _ := setupKillerTest(transport.NewClient(time.Second), workers)

	n, err := injector.Kill(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "DIE\n5\n", received[workers[0].Address])
	assert.Equal(t, "DIE\n5\n", received[workers[1].Address])
	assert.NotContains(t, received, workers[2].Address)
}
