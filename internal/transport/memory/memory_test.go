package memory

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfs-go/internal/pfs"
)

func TestTransport_FetchPush(t *testing.T) {
	fsys := afero.NewMemMapFs()
	tr := New(fsys, "/clone")
	tr.Put("/fr.po", []byte("fr"))
	require.NoError(t, afero.WriteFile(fsys, "/clone/stale.po", []byte("x"), 0644))

	require.NoError(t, tr.Fetch(context.Background()))
	assert.Equal(t, 1, tr.Fetches())
	data, err := afero.ReadFile(fsys, "/clone/fr.po")
	require.NoError(t, err)
	assert.Equal(t, "fr", string(data))
	exists, _ := afero.Exists(fsys, "/clone/stale.po")
	assert.False(t, exists)

	require.NoError(t, afero.WriteFile(fsys, "/clone/de.po", []byte("de"), 0644))
	resp := pfs.NewResponse("sync", "run")
	resp.Add(pfs.ActionPushedToFS, &pfs.StateItem{FSPath: "/de.po"})
	resp.Add(pfs.ActionRemoved, &pfs.StateItem{FSPath: "/fr.po"})
	require.NoError(t, tr.Push(context.Background(), resp))

	assert.Equal(t, []string{"/de.po"}, tr.Paths())
	got, ok := tr.Get("/de.po")
	assert.True(t, ok)
	assert.Equal(t, "de", string(got))
	assert.Len(t, tr.Pushes(), 1)
}

func TestTransport_FailPush(t *testing.T) {
	tr := New(afero.NewMemMapFs(), "/clone")
	tr.FailPush(assert.AnError)

	err := tr.Push(context.Background(), pfs.NewResponse("sync", "run"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, tr.Pushes(), 1, "failed pushes are still recorded")
}
