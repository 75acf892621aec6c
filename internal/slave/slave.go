package slave

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"yqhp/distcalc/internal/transport"
)

// Config holds the configuration for a worker node.
type Config struct {
	// ID is the unique identifier for this node, used in logs.
	ID string

	// TaskAddress is the TCP listen address for task and kill requests.
	TaskAddress string

	// DiscoveryAddress is the UDP listen address for discovery probes.
	DiscoveryAddress string

	// AdvertisePort is announced in probe replies. Zero sends the bare reply,
	// unless TaskAddress asks for an ephemeral port, which is then announced.
	AdvertisePort int

	// SplitCount is the number of rectangles per task.
	SplitCount int

	// MaxConcurrent caps concurrently handled connections.
	MaxConcurrent int

	// RequestTimeout bounds reading one request.
	RequestTimeout time.Duration
}

// DefaultConfig returns a default worker configuration.
func DefaultConfig() *Config {
	return &Config{
		ID:               uuid.New().String(),
		TaskAddress:      ":10000",
		DiscoveryAddress: ":10001",
		SplitCount:       10,
		MaxConcurrent:    64,
		RequestTimeout:   5 * time.Second,
	}
}

// NodeState represents the lifecycle state of a worker node.
type NodeState string

const (
	// NodeStateRunning indicates the node serves requests.
	NodeStateRunning NodeState = "running"
	// NodeStateDead indicates the node received a kill directive.
	NodeStateDead NodeState = "dead"
	// NodeStateStopped indicates the node is stopped.
	NodeStateStopped NodeState = "stopped"
)

// Node is a worker process.
type Node struct {
	config *Config

	taskListener net.Listener
	probeConn    net.PacketConn
	pool         *ants.Pool

	dead        atomic.Bool
	reviveTimer *time.Timer
	reviveMu    sync.Mutex

	started  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger *zap.Logger
}

// NewNode creates a worker node.
func NewNode(config *Config, logger *zap.Logger) *Node {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	if config.SplitCount < 1 {
		config.SplitCount = 10
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 64
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Node{
		config: config,
		logger: logger.With(zap.String("worker_id", config.ID)),
	}
}

// Start binds both listeners and serves until Stop or ctx is done.
func (n *Node) Start(ctx context.Context) error {
	if n.started.Load() {
		return fmt.Errorf("worker already started")
	}

	pool, err := ants.NewPool(n.config.MaxConcurrent,
		ants.WithPanicHandler(func(p any) {
			n.logger.Error("request handler panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return fmt.Errorf("create handler pool: %w", err)
	}

	var lc net.ListenConfig
	taskListener, err := lc.Listen(ctx, "tcp", n.config.TaskAddress)
	if err != nil {
		pool.Release()
		return fmt.Errorf("listen for tasks on %s: %w", n.config.TaskAddress, err)
	}

	probeConn, err := lc.ListenPacket(ctx, "udp4", n.config.DiscoveryAddress)
	if err != nil {
		pool.Release()
		_ = taskListener.Close()
		return fmt.Errorf("listen for probes on %s: %w", n.config.DiscoveryAddress, err)
	}

	n.pool = pool
	n.taskListener = taskListener
	n.probeConn = probeConn
	n.started.Store(true)

	n.wg.Add(2)
	go n.acceptLoop()
	go n.probeLoop()

	context.AfterFunc(ctx, func() {
		_ = n.Stop(context.Background())
	})

	n.logger.Info("worker started",
		zap.String("task_address", taskListener.Addr().String()),
		zap.String("discovery_address", probeConn.LocalAddr().String()),
		zap.Int("split_count", n.config.SplitCount),
	)

	return nil
}

// Stop closes both listeners and waits for in-flight requests.
func (n *Node) Stop(_ context.Context) error {
	if !n.started.Load() {
		return nil
	}

	n.stopOnce.Do(func() {
		n.stopped.Store(true)

		_ = n.taskListener.Close()
		_ = n.probeConn.Close()
		n.wg.Wait()

		n.reviveMu.Lock()
		if n.reviveTimer != nil {
			n.reviveTimer.Stop()
		}
		n.reviveMu.Unlock()

		n.pool.Release()
		n.logger.Info("worker stopped")
	})
	return nil
}

// TaskAddr returns the bound task address.
func (n *Node) TaskAddr() net.Addr {
	return n.taskListener.Addr()
}

// DiscoveryAddr returns the bound discovery address.
func (n *Node) DiscoveryAddr() net.Addr {
	return n.probeConn.LocalAddr()
}

// GetState returns the node state.
func (n *Node) GetState() NodeState {
	switch {
	case n.stopped.Load():
		return NodeStateStopped
	case n.dead.Load():
		return NodeStateDead
	default:
		return NodeStateRunning
	}
}

// IsDead reports whether the node is ignoring requests.
func (n *Node) IsDead() bool {
	return n.dead.Load()
}

// Kill enters the dead state. A positive sleep schedules a revival; zero
// keeps the node dead until it is restarted.
func (n *Node) Kill(sleep time.Duration) {
	n.reviveMu.Lock()
	defer n.reviveMu.Unlock()

	n.dead.Store(true)
	if n.reviveTimer != nil {
		n.reviveTimer.Stop()
		n.reviveTimer = nil
	}
	if sleep > 0 {
		n.reviveTimer = time.AfterFunc(sleep, n.Revive)
	}

	n.logger.Warn("worker killed", zap.Duration("sleep", sleep))
}

// Revive leaves the dead state.
func (n *Node) Revive() {
	if n.dead.CompareAndSwap(true, false) {
		n.logger.Info("worker revived")
	}
}

func (n *Node) advertisedPort() int {
	if n.config.AdvertisePort != 0 {
		return n.config.AdvertisePort
	}
	if _, port, err := net.SplitHostPort(n.config.TaskAddress); err == nil && port == "0" {
		if tcpAddr, ok := n.taskListener.Addr().(*net.TCPAddr); ok {
			return tcpAddr.Port
		}
	}
	return 0
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.taskListener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			n.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		n.wg.Add(1)
		if err := n.pool.Submit(func() {
			defer n.wg.Done()
			n.handleConn(conn)
		}); err != nil {
			n.wg.Done()
			n.logger.Warn("dropping connection", zap.Error(err))
			_ = conn.Close()
		}
	}
}

func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()

	if n.dead.Load() {
		return
	}

	_ = conn.SetDeadline(time.Now().Add(n.config.RequestTimeout))
	req, err := readRequest(conn)
	if err != nil {
		n.logger.Debug("bad request",
			zap.String("remote", conn.RemoteAddr().String()),
			zap.Error(err),
		)
		return
	}

	// A kill may have arrived while this request was being read.
	if n.dead.Load() {
		return
	}

	switch req.Kind {
	case transport.RequestDie:
		n.Kill(time.Duration(req.SleepSeconds) * time.Second)

	case transport.RequestTask:
		result := LeftRiemannSum(req.Lower, req.Upper, n.config.SplitCount)
		n.logger.Debug("task computed",
			zap.Float64("lower", req.Lower),
			zap.Float64("upper", req.Upper),
			zap.Float64("result", result),
		)
		if _, err := conn.Write(transport.EncodeResult(result)); err != nil {
			n.logger.Debug("reply failed", zap.Error(err))
		}
	}
}

// readRequest reads until a complete newline-terminated request has arrived,
// the peer stops sending or the size limit is hit.
func readRequest(conn net.Conn) (*transport.Request, error) {
	buf := make([]byte, 0, transport.MaxMessageSize)
	chunk := make([]byte, transport.MaxMessageSize)

	for {
		nr, err := conn.Read(chunk[:transport.MaxMessageSize-len(buf)])
		buf = append(buf, chunk[:nr]...)

		full := len(buf) >= transport.MaxMessageSize
		if len(buf) > 0 && (buf[len(buf)-1] == '\n' || err != nil || full) {
			req, decodeErr := transport.DecodeRequest(buf)
			if decodeErr == nil {
				return req, nil
			}
			if err != nil || full {
				return nil, decodeErr
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func (n *Node) probeLoop() {
	defer n.wg.Done()

	reply := transport.EncodeDiscoveryResponse(n.advertisedPort())
	buf := make([]byte, transport.MaxMessageSize)

	for {
		nr, from, err := n.probeConn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			n.logger.Warn("probe read failed", zap.Error(err))
			continue
		}
		if n.dead.Load() || !transport.IsDiscoveryProbe(buf[:nr]) {
			continue
		}

		if _, err := n.probeConn.WriteTo(reply, from); err != nil {
			n.logger.Debug("probe reply failed", zap.String("coordinator", from.String()), zap.Error(err))
			continue
		}
		n.logger.Debug("answered discovery probe", zap.String("coordinator", from.String()))
	}
}
