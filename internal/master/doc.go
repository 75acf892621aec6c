// Package master implements the coordinator: worker discovery, the worker
// registry, randomized load balancing, concurrent task dispatch with
// timeout/failure retry, result aggregation and fault injection.
package master
