package master

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/distcalc/pkg/types"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry(nil)
	assert.NotNil(t, registry)
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, uint64(0), registry.Generation())
}

func TestRegistryReplace(t *testing.T) {
	registry := NewRegistry(nil)
	workers := aliveWorkers(3)

	gen := registry.Replace(workers)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, 3, registry.Len())

	// Caller's slice is copied
	workers[0].Alive = false
	assert.True(t, registry.Snapshot().Workers[0].Alive)

	gen = registry.Replace(nil)
	assert.Equal(t, uint64(2), gen)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Replace(aliveWorkers(2))

	snap := registry.Snapshot()
	snap.Workers[0].Alive = false

	assert.Equal(t, 2, registry.CountAlive())
}

func TestRegistryMarkDead(t *testing.T) {
	registry := NewRegistry(nil)
	gen := registry.Replace(aliveWorkers(3))

	assert.True(t, registry.MarkDead(gen, 1))
	assert.False(t, registry.MarkDead(gen, 1), "already dead")
	assert.False(t, registry.MarkDead(gen, -1))
	assert.False(t, registry.MarkDead(gen, 3))

	live := registry.Live()
	require.Len(t, live, 2)
	assert.Equal(t, "10.0.0.1:10000", live[0].Address)
	assert.Equal(t, "10.0.0.3:10000", live[1].Address)
}

func TestRegistryMarkDeadStaleGeneration(t *testing.T) {
	registry := NewRegistry(nil)
	old := registry.Replace(aliveWorkers(3))
	registry.Replace(aliveWorkers(3))

	assert.False(t, registry.MarkDead(old, 0))
	assert.Equal(t, 3, registry.CountAlive())
}

func TestRegistryPick(t *testing.T) {
	registry := NewRegistry(nil)
	balancer := NewSeededBalancer(1)

	_, _, _, ok := registry.Pick(balancer)
	assert.False(t, ok)

	gen := registry.Replace(aliveWorkers(3))
	registry.MarkDead(gen, 0)
	registry.MarkDead(gen, 2)

	for range 20 {
		index, worker, pickedGen, ok := registry.Pick(balancer)
		require.True(t, ok)
		assert.Equal(t, 1, index)
		assert.Equal(t, "10.0.0.2:10000", worker.Address)
		assert.Equal(t, gen, pickedGen)
	}
}

func TestRegistryWatch(t *testing.T) {
	registry := NewRegistry(nil)
	ctx, cancel := context.WithCancel(context.Background())

	events := registry.Watch(ctx)

	gen := registry.Replace(aliveWorkers(2))
	registry.MarkDead(gen, 1)

	select {
	case event := <-events:
		assert.Equal(t, types.WorkerEventReplaced, event.Type)
		assert.Equal(t, gen, event.Generation)
		assert.Equal(t, 2, event.Count)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for replaced event")
	}

	select {
	case event := <-events:
		assert.Equal(t, types.WorkerEventMarkedDead, event.Type)
		assert.Equal(t, 1, event.Index)
		assert.Equal(t, "10.0.0.2:10000", event.Worker.Address)
		assert.False(t, event.Worker.Alive)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for marked_dead event")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry(nil)
	balancer := NewSeededBalancer(7)
	registry.Replace(aliveWorkers(5))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 100 {
				switch (i + j) % 4 {
				case 0:
					registry.Replace(aliveWorkers(5))
				case 1:
					if index, _, gen, ok := registry.Pick(balancer); ok {
						registry.MarkDead(gen, index)
					}
				case 2:
					_ = registry.Snapshot()
				default:
					_ = registry.Live()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, registry.Len())
}
