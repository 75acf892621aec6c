// Package slave implements the worker node: it answers discovery probes,
// computes partial integrals for task requests and honours kill directives.
package slave
