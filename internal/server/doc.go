// Package server implements the core TCP chat service and its WebSocket
// gateway.
//
// The implementation is organized into specialized files for configuration,
// connection handling, the per-participant session state machine, the
// listener supervisor, and the gateway to keep the codebase maintainable and
// testable as the project grows.
package server
