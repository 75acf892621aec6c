package types

import "time"

// Worker is one entry of the coordinator's worker registry.
type Worker struct {
	// Address is the task endpoint (host:port) of the worker.
	Address string `json:"address"`
	// Alive is cleared by the scheduler after a failed dispatch attempt.
	Alive bool `json:"alive"`
}

// WorkerEventType defines the type of registry event.
type WorkerEventType string

const (
	// WorkerEventReplaced indicates a discovery pass replaced the worker list.
	WorkerEventReplaced WorkerEventType = "replaced"
	// WorkerEventMarkedDead indicates a worker was flagged dead.
	WorkerEventMarkedDead WorkerEventType = "marked_dead"
)

// WorkerEvent represents a registry change.
type WorkerEvent struct {
	Type       WorkerEventType
	Generation uint64
	// Index and Worker are set for WorkerEventMarkedDead.
	Index  int
	Worker Worker
	// Count is the new registry size for WorkerEventReplaced.
	Count     int
	Timestamp time.Time
}
