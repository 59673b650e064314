// Package memory implements a transport whose upstream location is a map
// held in memory. It is meant for tests and dry runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"pfs-go/internal/pfs"
	"pfs-go/internal/transport"
)

// Transport keeps the upstream files in memory.
// This implementation is safe for concurrent use.
type Transport struct {
	fs        afero.Fs
	localPath string

	mu       sync.RWMutex
	upstream map[string][]byte // "/"-rooted path -> content
	fetches  int
	pushes   []*pfs.Response
	pushErr  error
}

var _ pfs.Transport = (*Transport)(nil)

// New creates an empty upstream for the clone at localPath.
func New(fsys afero.Fs, localPath string) *Transport {
	return &Transport{fs: fsys, localPath: localPath, upstream: make(map[string][]byte)}
}

// Constructor builds a memory transport; fs_url is ignored.
func Constructor(project *pfs.Project, env transport.Env) (pfs.Transport, error) {
	return New(env.FS, env.LocalPath), nil
}

// Put stores an upstream file.
func (t *Transport) Put(path string, content []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.upstream[path] = append([]byte(nil), content...)
}

// Get returns an upstream file.
func (t *Transport) Get(path string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, ok := t.upstream[path]
	return data, ok
}

// Paths lists the upstream files, sorted.
func (t *Transport) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.upstream))
	for p := range t.upstream {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// FailPush makes subsequent pushes return err. Nil clears it.
func (t *Transport) FailPush(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pushErr = err
}

// Fetches returns how many times Fetch ran.
func (t *Transport) Fetches() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fetches
}

// Pushes returns the responses passed to Push.
func (t *Transport) Pushes() []*pfs.Response {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*pfs.Response(nil), t.pushes...)
}

// Fetch replaces the working clone with the upstream files.
func (t *Transport) Fetch(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fetches++

	if err := t.fs.MkdirAll(t.localPath, 0755); err != nil {
		return fmt.Errorf("creating working clone: %w", err)
	}
	keep := make(map[string]bool, len(t.upstream))
	for p, data := range t.upstream {
		keep[p] = true
		dst := transport.Join(t.localPath, p)
		if current, err := afero.ReadFile(t.fs, dst); err == nil && bytes.Equal(current, data) {
			continue
		}
		if err := transport.WriteFile(t.fs, dst, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("fetching %s: %w", p, err)
		}
	}
	_, err := transport.Prune(t.fs, t.localPath, keep)
	return err
}

// Push copies written files from the clone into the upstream map and
// drops removed ones.
func (t *Transport) Push(ctx context.Context, resp *pfs.Response) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pushes = append(t.pushes, resp)
	if t.pushErr != nil {
		return t.pushErr
	}

	written, removed := transport.Changes(resp)
	for _, p := range written {
		data, err := afero.ReadFile(t.fs, transport.Join(t.localPath, p))
		if err != nil {
			return fmt.Errorf("pushing %s: %w", p, err)
		}
		t.upstream[p] = data
	}
	for _, p := range removed {
		delete(t.upstream, p)
	}
	return nil
}

// LatestChangeToken fingerprints the working clone.
func (t *Transport) LatestChangeToken() (string, error) {
	return pfs.TreeToken(t.fs, t.localPath)
}
