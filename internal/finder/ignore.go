package finder

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFile is read from the root of a working clone. Files it matches
// are never paired with stores.
const IgnoreFile = ".pfsignore"

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against the clone-relative path; false = basename only
}

// Ignore checks clone paths against a set of ignore patterns.
// Patterns without '/' match against the file's basename only.
// Patterns with '/' match against the full path from the clone root.
type Ignore struct {
	patterns []ignorePattern
}

// NewIgnore creates an Ignore from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnore(rawPatterns []string) *Ignore {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		matchPath := strings.Contains(raw, "/")
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimPrefix(raw, "/"),
			matchPath: matchPath,
		})
	}
	return &Ignore{patterns: patterns}
}

// Match reports whether fsPath, relative to the clone root, is ignored.
func (i *Ignore) Match(fsPath string) bool {
	if i == nil || len(i.patterns) == 0 {
		return false
	}

	rel := strings.TrimPrefix(fsPath, "/")
	base := path.Base(rel)
	for _, p := range i.patterns {
		name := base
		if p.matchPath {
			name = rel
		}
		matched, err := path.Match(p.pattern, name)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ReadIgnoreFile returns the raw lines of an ignore file, or nil when the
// file does not exist.
func ReadIgnoreFile(fsys afero.Fs, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
