package master

import (
	"context"
	"sync"
	"time"

	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"

	"yqhp/distcalc/pkg/types"
)

// Snapshot is a consistent copy of the registry.
type Snapshot struct {
	Generation uint64
	Workers    []types.Worker
}

// Registry is the coordinator's view of known workers. Every read and write
// runs under one mutex; no network I/O ever happens while it is held.
type Registry struct {
	workers    []types.Worker
	generation uint64
	mu         sync.Mutex

	subscribers []chan types.WorkerEvent
	subMu       sync.RWMutex

	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		workers:     make([]types.Worker, 0),
		subscribers: make([]chan types.WorkerEvent, 0),
		logger:      logger,
	}
}

// Replace swaps the whole worker list and returns the new generation.
// Entries are copied; the caller keeps ownership of workers.
func (r *Registry) Replace(workers []types.Worker) uint64 {
	fresh := make([]types.Worker, len(workers))
	copy(fresh, workers)

	r.mu.Lock()
	r.workers = fresh
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	r.logger.Info("worker registry replaced",
		zap.Uint64("generation", gen),
		zap.Int("workers", len(fresh)),
	)
	r.notifyEvent(types.WorkerEvent{
		Type:       types.WorkerEventReplaced,
		Generation: gen,
		Index:      -1,
		Count:      len(fresh),
		Timestamp:  time.Now(),
	})

	return gen
}

// MarkDead flags entry index of the given generation as dead. It reports
// false when the list has been replaced since, the index is out of range or
// the entry was already dead.
func (r *Registry) MarkDead(generation uint64, index int) bool {
	r.mu.Lock()
	if generation != r.generation || index < 0 || index >= len(r.workers) || !r.workers[index].Alive {
		r.mu.Unlock()
		return false
	}
	r.workers[index].Alive = false
	worker := r.workers[index]
	r.mu.Unlock()

	r.logger.Warn("worker marked dead",
		zap.Uint64("generation", generation),
		zap.Int("index", index),
		zap.String("address", worker.Address),
	)
	r.notifyEvent(types.WorkerEvent{
		Type:       types.WorkerEventMarkedDead,
		Generation: generation,
		Index:      index,
		Worker:     worker,
		Timestamp:  time.Now(),
	})

	return true
}

// Pick asks b for a live entry while holding the lock.
func (r *Registry) Pick(b Balancer) (int, types.Worker, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	index, ok := b.PickLive(r.workers)
	if !ok {
		return -1, types.Worker{}, r.generation, false
	}
	return index, r.workers[index], r.generation, true
}

// Snapshot returns a consistent copy of the registry.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	workers := make([]types.Worker, len(r.workers))
	copy(workers, r.workers)
	return Snapshot{Generation: r.generation, Workers: workers}
}

// Live returns the entries not marked dead, in registry order.
func (r *Registry) Live() []types.Worker {
	return liveWorkers(r.Snapshot().Workers)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// CountAlive returns the number of entries not marked dead.
func (r *Registry) CountAlive() int {
	return len(r.Live())
}

// Generation returns the current generation.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Watch streams registry events until ctx is done. Slow subscribers miss
// events instead of blocking the registry.
func (r *Registry) Watch(ctx context.Context) <-chan types.WorkerEvent {
	ch := make(chan types.WorkerEvent, 100)

	r.subMu.Lock()
	r.subscribers = append(r.subscribers, ch)
	r.subMu.Unlock()

	go func() {
		<-ctx.Done()
		r.removeSubscriber(ch)
		close(ch)
	}()

	return ch
}

func (r *Registry) notifyEvent(event types.WorkerEvent) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

func (r *Registry) removeSubscriber(ch chan types.WorkerEvent) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for i, sub := range r.subscribers {
		if sub == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			break
		}
	}
}

func liveWorkers(workers []types.Worker) []types.Worker {
	return slice.Filter(workers, func(_ int, w types.Worker) bool {
		return w.Alive
	})
}
