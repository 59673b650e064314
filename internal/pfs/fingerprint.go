package pfs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FileHash returns the SHA-256 of the file content, or "" when the file
// does not exist.
func FileHash(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		if isNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TreeToken hashes path, size and modification time of every regular file
// under root. It returns "" when root does not exist.
func TreeToken(fsys afero.Fs, root string) (string, error) {
	exists, err := afero.DirExists(fsys, root)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", root, err)
	}
	if !exists {
		return "", nil
	}

	type entry struct {
		path  string
		size  int64
		mtime int64
	}
	var entries []entry
	err = afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		entries = append(entries, entry{filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", e.path, e.size, e.mtime)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
