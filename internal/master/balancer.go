package master

import (
	"math/rand/v2"
	"sync"
	"time"

	"yqhp/distcalc/pkg/types"
)

// RandomBalancer picks a uniformly random live worker. It walks a random
// permutation of the indices, so it inspects each entry at most once and
// terminates when every entry is dead.
type RandomBalancer struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewRandomBalancer creates a balancer seeded from the clock.
func NewRandomBalancer() *RandomBalancer {
	return NewSeededBalancer(uint64(time.Now().UnixNano()))
}

// NewSeededBalancer creates a deterministic balancer.
func NewSeededBalancer(seed uint64) *RandomBalancer {
	return &RandomBalancer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// PickLive implements Balancer.
func (b *RandomBalancer) PickLive(workers []types.Worker) (int, bool) {
	if len(workers) == 0 {
		return -1, false
	}

	b.mu.Lock()
	order := b.rng.Perm(len(workers))
	b.mu.Unlock()

	index, _, ok := walk(workers, order)
	return index, ok
}

// walk returns the first live entry in order and how many entries it inspected.
func walk(workers []types.Worker, order []int) (int, int, bool) {
	for probes, i := range order {
		if workers[i].Alive {
			return i, probes + 1, true
		}
	}
	return -1, len(order), false
}
