// Package server exposes the configuration registry over HTTP/JSON and a
// gRPC health endpoint.
package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/cfgregistry/internal/registry"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegistryServer serves the registry's HTTP API.
type RegistryServer struct {
	reg    *registry.Registry
	store  Pinger
	logger *slog.Logger
}

// NewRegistryServer returns a server for reg. store is pinged by the health
// endpoints.
func NewRegistryServer(reg *registry.Registry, store Pinger, logger *slog.Logger) *RegistryServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryServer{reg: reg, store: store, logger: logger}
}
