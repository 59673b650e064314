package transport

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"pfs-go/internal/pfs"
)

// WriteFile writes r to path atomically, creating parent directories as
// needed.
func WriteFile(fsys afero.Fs, path string, r io.Reader) error {
	return pfs.WriteFileAtomic(fsys, path, r)
}

// CopyFile copies src on srcFS to dst on dstFS.
func CopyFile(srcFS afero.Fs, src string, dstFS afero.Fs, dst string) error {
	f, err := srcFS.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()
	return WriteFile(dstFS, dst, f)
}

// ListFiles returns the slash-separated paths, relative to root and with a
// leading "/", of every regular file under root. Temp files are skipped.
func ListFiles(fsys afero.Fs, root string) (map[string]bool, error) {
	files := make(map[string]bool)
	exists, err := afero.DirExists(fsys, root)
	if err != nil || !exists {
		return files, err
	}
	err = afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files["/"+filepath.ToSlash(rel)] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}
	return files, nil
}

// Prune removes files under root that keep does not list. Paths use the
// ListFiles form. It returns the number of removed files.
func Prune(fsys afero.Fs, root string, keep map[string]bool) (int, error) {
	present, err := ListFiles(fsys, root)
	if err != nil {
		return 0, err
	}
	removed := 0
	for p := range present {
		if keep[p] {
			continue
		}
		if err := fsys.Remove(Join(root, p)); err != nil {
			return removed, fmt.Errorf("removing %s: %w", p, err)
		}
		removed++
	}
	return removed, nil
}

// Join maps a "/"-rooted relative path onto root.
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimLeft(rel, "/")))
}
