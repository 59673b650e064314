// Package localfs implements a transport whose upstream location is a
// directory on the local filesystem.
package localfs

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"pfs-go/internal/pfs"
	"pfs-go/internal/transport"
)

// Transport mirrors a source directory into the working clone and copies
// synced files back.
type Transport struct {
	fs        afero.Fs
	source    string
	localPath string
	logger    pfs.Logger
}

var _ pfs.Transport = (*Transport)(nil)

// New creates a transport between source and the clone at localPath.
func New(fsys afero.Fs, source, localPath string, logger pfs.Logger) *Transport {
	if logger == nil {
		logger = pfs.NewNopLogger()
	}
	return &Transport{fs: fsys, source: source, localPath: localPath, logger: logger}
}

// Constructor builds the transport from a project's fs_url.
func Constructor(project *pfs.Project, env transport.Env) (pfs.Transport, error) {
	return New(env.FS, project.FSURL, env.LocalPath, env.Logger), nil
}

// Source returns the upstream directory.
func (t *Transport) Source() string { return t.source }

// Fetch makes the working clone an exact copy of the source directory.
// Files whose content already matches are left untouched.
func (t *Transport) Fetch(ctx context.Context) error {
	exists, err := afero.DirExists(t.fs, t.source)
	if err != nil {
		return fmt.Errorf("checking source: %w", err)
	}
	if !exists {
		return fmt.Errorf("source directory %s does not exist", t.source)
	}
	if err := t.fs.MkdirAll(t.localPath, 0755); err != nil {
		return fmt.Errorf("creating working clone: %w", err)
	}

	files, err := transport.ListFiles(t.fs, t.source)
	if err != nil {
		return err
	}
	copied := 0
	for p := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, dst := transport.Join(t.source, p), transport.Join(t.localPath, p)
		same, err := sameContent(t.fs, src, dst)
		if err != nil {
			return err
		}
		if same {
			continue
		}
		if err := transport.CopyFile(t.fs, src, t.fs, dst); err != nil {
			return fmt.Errorf("fetching %s: %w", p, err)
		}
		copied++
	}
	removed, err := transport.Prune(t.fs, t.localPath, files)
	if err != nil {
		return err
	}
	t.logger.Info("fetched", "source", t.source, "copied", copied, "removed", removed)
	return nil
}

// Push copies written files back to the source directory and deletes
// removed ones there.
func (t *Transport) Push(ctx context.Context, resp *pfs.Response) error {
	written, removed := transport.Changes(resp)
	for _, p := range written {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := transport.CopyFile(t.fs, transport.Join(t.localPath, p), t.fs, transport.Join(t.source, p)); err != nil {
			return fmt.Errorf("pushing %s: %w", p, err)
		}
	}
	for _, p := range removed {
		if err := t.fs.Remove(transport.Join(t.source, p)); err != nil {
			if ok, _ := afero.Exists(t.fs, transport.Join(t.source, p)); ok {
				return fmt.Errorf("removing %s: %w", p, err)
			}
		}
	}
	t.logger.Info("pushed", "source", t.source, "written", len(written), "removed", len(removed))
	return nil
}

// LatestChangeToken fingerprints the working clone.
func (t *Transport) LatestChangeToken() (string, error) {
	return pfs.TreeToken(t.fs, t.localPath)
}

func sameContent(fsys afero.Fs, a, b string) (bool, error) {
	ha, err := pfs.FileHash(fsys, a)
	if err != nil {
		return false, err
	}
	hb, err := pfs.FileHash(fsys, b)
	if err != nil {
		return false, err
	}
	return hb != "" && ha == hb, nil
}
