// Package timeouts defines shared timeout constants used across processes.
// Centralizing these values prevents drift between process boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// NodeRequest caps the time allowed for a single HTTP request from a client
// process to the ledger node.
const NodeRequest = 10 * time.Second

// ReadHeader limits how long the node HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the node HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
