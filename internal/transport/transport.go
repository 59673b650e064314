// Package transport builds the Transport of a project from its fs_type and
// holds the helpers shared by the built-in transports.
package transport

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"pfs-go/internal/config"
	"pfs-go/internal/pfs"
)

// Env carries what a transport needs beyond the project itself.
type Env struct {
	// FS holds the working clone.
	FS afero.Fs
	// LocalPath is the root of the project's working clone.
	LocalPath string
	Config    *config.Config
	Logger    pfs.Logger
	// Encryptor and Unlock are set when remote content is encrypted.
	// Unlock is called at most once, on the first decrypt.
	Encryptor pfs.Encryptor
	Unlock    func() (pfs.DecryptionContext, error)
}

// Constructor creates a transport for project.
type Constructor func(project *pfs.Project, env Env) (pfs.Transport, error)

// Registry maps fs_type names to transport constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under name. It panics on a nil constructor
// or a duplicate name.
func (r *Registry) Register(name string, c Constructor) {
	if c == nil {
		panic("transport: Register constructor is nil for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.constructors[name]; dup {
		panic("transport: Register called twice for " + name)
	}
	r.constructors[name] = c
}

// Types returns the registered names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the transport of project.
func (r *Registry) New(project *pfs.Project, env Env) (pfs.Transport, error) {
	r.mu.RLock()
	c, ok := r.constructors[project.FSType]
	r.mu.RUnlock()
	if !ok {
		return nil, &pfs.ConfigError{
			Field: "fs_type",
			Err:   fmt.Errorf("%w: %q", pfs.ErrUnknownTransport, project.FSType),
		}
	}
	if project.FSURL == "" {
		return nil, &pfs.ConfigError{Field: "fs_url", Err: fmt.Errorf("not set for project %s", project.Code)}
	}
	if env.Logger == nil {
		env.Logger = pfs.NewNopLogger()
	}
	t, err := c(project, env)
	if err != nil {
		return nil, fmt.Errorf("creating %s transport: %w", project.FSType, err)
	}
	return t, nil
}
