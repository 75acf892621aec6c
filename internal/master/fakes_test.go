package master

import (
	"context"
	"fmt"
	"math"
	"sync"

	"yqhp/distcalc/internal/transport"
	"yqhp/distcalc/pkg/types"
)

// cubeIntegral is the exact integral of x^3 over the task bounds, so sums of
// partial results are exact for integer bounds.
func cubeIntegral(task types.Task) float64 {
	return (math.Pow(task.Upper, 4) - math.Pow(task.Lower, 4)) / 4
}

type bounds [2]float64

func boundsOf(task types.Task) bounds {
	return bounds{task.Lower, task.Upper}
}

type sendFunc func(ctx context.Context, addr string, task types.Task) (float64, error)

// fakeSender records every request and answers tasks through send, or with
// cubeIntegral when send is nil.
type fakeSender struct {
	mu        sync.Mutex
	send      sendFunc
	sends     map[bounds]int
	successes map[bounds]int
	byAddr    map[string]int
	kills     []string
	killSleep []int
	killErr   map[string]error
}

func newFakeSender(send sendFunc) *fakeSender {
	return &fakeSender{
		send:      send,
		sends:     make(map[bounds]int),
		successes: make(map[bounds]int),
		byAddr:    make(map[string]int),
		killErr:   make(map[string]error),
	}
}

func (f *fakeSender) SendTask(ctx context.Context, addr string, task types.Task) (float64, error) {
	f.mu.Lock()
	f.sends[boundsOf(task)]++
	f.byAddr[addr]++
	send := f.send
	f.mu.Unlock()

	var (
		value float64
		err   error
	)
	if send == nil {
		value = cubeIntegral(task)
	} else {
		value, err = send(ctx, addr, task)
	}

	if err == nil {
		f.mu.Lock()
		f.successes[boundsOf(task)]++
		f.mu.Unlock()
	}
	return value, err
}

func (f *fakeSender) SendKill(_ context.Context, addr string, sleepSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.killErr[addr]; ok {
		return err
	}
	f.kills = append(f.kills, addr)
	f.killSleep = append(f.killSleep, sleepSeconds)
	return nil
}

func (f *fakeSender) sendCount(b bounds) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[b]
}

func (f *fakeSender) addrCount(addr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byAddr[addr]
}

func (f *fakeSender) killed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kills...)
}

type fakeProber struct {
	mu      sync.Mutex
	replies []transport.DiscoveryReply
	err     error
	calls   int
}

func (p *fakeProber) Probe(_ context.Context) ([]transport.DiscoveryReply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return append([]transport.DiscoveryReply(nil), p.replies...), nil
}

func (p *fakeProber) set(replies []transport.DiscoveryReply, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = replies
	p.err = err
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func aliveWorkers(n int) []types.Worker {
	workers := make([]types.Worker, n)
	for i := range workers {
		workers[i] = types.Worker{Address: fmt.Sprintf("10.0.0.%d:10000", i+1), Alive: true}
	}
	return workers
}
