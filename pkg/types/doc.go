// Package types defines the core data structures shared by the coordinator and
// the worker nodes.
//
// This package contains:
//   - Integration requests and the tasks they are split into
//   - Worker entries and registry events
//   - Dispatch results and the error sentinels the scheduler classifies them by
package types
