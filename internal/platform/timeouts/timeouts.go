// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between boundaries and makes the
// durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreOp caps the time allowed for one lifecycle sweep against the store.
const StoreOp = 5 * time.Second

// WSWrite caps the time allowed to flush a single frame to a websocket
// observer before the connection is considered stalled.
const WSWrite = 10 * time.Second
