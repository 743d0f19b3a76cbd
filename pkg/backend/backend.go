// Package backend controls the lifecycle of the local inference server.
//
// Deep sleep frees the appliance's memory by stopping the Ollama systemd
// unit; waking from deep sleep starts it again and blocks until the HTTP
// API answers. The Controller interface keeps the conversation loop
// independent of how the server is managed.
package backend

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	// ErrNotResponsive is returned when the server does not answer
	// within the startup window.
	ErrNotResponsive = errors.New("backend: server not responsive")
)

// Controller manages the inference server process.
type Controller interface {
	// Start launches the server and blocks until it answers health
	// probes, or the startup window closes.
	Start(ctx context.Context) error

	// Stop shuts the server down, releasing its memory.
	Stop(ctx context.Context) error

	// Ping probes the server's HTTP API once.
	Ping(ctx context.Context) error
}
