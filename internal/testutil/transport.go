package testutil

import (
	"pfs-go/internal/pfs"
	"pfs-go/internal/transport"
	"pfs-go/internal/transport/memory"
)

// MemoryRegistry returns a registry whose "memory" transport is always
// upstream, so tests can seed and inspect what the app pushes.
func MemoryRegistry(upstream *memory.Transport) *transport.Registry {
	r := transport.NewRegistry()
	r.Register("memory", func(*pfs.Project, transport.Env) (pfs.Transport, error) {
		return upstream, nil
	})
	return r
}
