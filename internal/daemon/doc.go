// Package daemon coordinates the long-running aplosed process.
//
// It wires configuration, the SQLite store, and the HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances sharing a
// data directory. The API server owns routing, request identity, and JSON
// encoding; annotation workflow rules live in the api package and persistence
// in the store package.
//
// Keep orchestration logic here: the daemon focuses on startup, shutdown, and
// translating service results into HTTP responses.
package daemon
