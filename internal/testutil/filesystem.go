package testutil

import (
	"testing"

	"github.com/spf13/afero"

	"pfs-go/internal/transport"
)

// WriteFiles writes files, keyed by "/"-rooted path, under root.
func WriteFiles(t *testing.T, fsys afero.Fs, root string, files map[string]string) {
	t.Helper()

	for p, content := range files {
		dst := transport.Join(root, p)
		if err := afero.WriteFile(fsys, dst, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", dst, err)
		}
	}
}

// ReadFile returns the content of path, failing the test if it is missing.
func ReadFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether path exists.
func Exists(t *testing.T, fsys afero.Fs, path string) bool {
	t.Helper()

	ok, err := afero.Exists(fsys, path)
	if err != nil {
		t.Fatalf("checking %s: %v", path, err)
	}
	return ok
}
