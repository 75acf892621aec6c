// Package command drives a coordinator from a line-oriented command stream:
// "DIE <count> <seconds>" injects faults and "<lower> <upper>" integrates.
package command
