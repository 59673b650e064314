package transport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfs-go/internal/pfs"
)

type stubTransport struct{ env Env }

func (s *stubTransport) Fetch(context.Context) error              { return nil }
func (s *stubTransport) Push(context.Context, *pfs.Response) error { return nil }
func (s *stubTransport) LatestChangeToken() (string, error)       { return "", nil }

func stubConstructor(project *pfs.Project, env Env) (pfs.Transport, error) {
	return &stubTransport{env: env}, nil
}

func TestRegistry(t *testing.T) {
	t.Run("creates registered transport", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("stub", stubConstructor)

		tr, err := reg.New(&pfs.Project{Code: "p", FSType: "stub", FSURL: "/x"}, Env{LocalPath: "/clone"})
		require.NoError(t, err)
		stub := tr.(*stubTransport)
		assert.Equal(t, "/clone", stub.env.LocalPath)
		assert.NotNil(t, stub.env.Logger, "a nop logger is installed")
	})

	t.Run("unknown type is a config error", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.New(&pfs.Project{Code: "p", FSType: "ftp", FSURL: "/x"}, Env{})
		require.Error(t, err)
		assert.True(t, pfs.IsConfigError(err))
		assert.True(t, errors.Is(err, pfs.ErrUnknownTransport))
	})

	t.Run("missing fs_url is a config error", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("stub", stubConstructor)
		_, err := reg.New(&pfs.Project{Code: "p", FSType: "stub"}, Env{})
		require.Error(t, err)
		assert.True(t, pfs.IsConfigError(err))
	})

	t.Run("constructor errors are wrapped", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("broken", func(*pfs.Project, Env) (pfs.Transport, error) { return nil, assert.AnError })
		_, err := reg.New(&pfs.Project{Code: "p", FSType: "broken", FSURL: "/x"}, Env{})
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("duplicate and nil registrations panic", func(t *testing.T) {
		reg := NewRegistry()
		reg.Register("stub", stubConstructor)
		assert.Panics(t, func() { reg.Register("stub", stubConstructor) })
		assert.Panics(t, func() { reg.Register("nil", nil) })
		assert.Equal(t, []string{"stub"}, reg.Types())
	})
}

func TestChanges(t *testing.T) {
	resp := pfs.NewResponse("sync", "run")
	resp.Add(pfs.ActionPushedToFS, &pfs.StateItem{FSPath: "/a.po"})
	resp.Add(pfs.ActionMergedFromFS, &pfs.StateItem{FSPath: "/b.po"})
	resp.Add(pfs.ActionPulledToPootle, &pfs.StateItem{FSPath: "/c.po"})
	resp.Add(pfs.ActionRemoved, &pfs.StateItem{FSPath: "/d.po"})
	resp.AddWarning(pfs.ActionPushedToFS, &pfs.StateItem{FSPath: "/e.po"}, "vanished")

	written, removed := Changes(resp)
	assert.ElementsMatch(t, []string{"/a.po", "/b.po"}, written)
	assert.Equal(t, []string{"/d.po"}, removed)
}

func TestFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, WriteFile(fsys, "/root/x/a.po", strings.NewReader("a")))
	require.NoError(t, WriteFile(fsys, "/root/b.po", strings.NewReader("b")))
	require.NoError(t, afero.WriteFile(fsys, "/root/.tmp-123", []byte("partial"), 0644))

	files, err := ListFiles(fsys, "/root")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"/x/a.po": true, "/b.po": true}, files)

	require.NoError(t, CopyFile(fsys, "/root/b.po", fsys, "/other/b.po"))
	data, err := afero.ReadFile(fsys, "/other/b.po")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	n, err := Prune(fsys, "/root", map[string]bool{"/b.po": true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	exists, _ := afero.Exists(fsys, "/root/x/a.po")
	assert.False(t, exists)

	empty, err := ListFiles(fsys, "/missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
