package finder

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// MatcherConfig configures a Matcher for one project.
type MatcherConfig struct {
	ProjectCode string
	// TranslationMapping is relative to the project's working clone and
	// starts with "/".
	TranslationMapping string
	ExcludedLanguages  []string
	// LangMapping maps upstream language codes to pootle language codes.
	LangMapping map[string]string
	Extensions  []string
}

// PathPair is a pootle path and the fs path it maps to.
type PathPair struct {
	PootlePath string
	FSPath     string
}

// Matcher maps between filesystem paths inside a working clone and
// pootle paths of the form /<language>/<project>/<dir_path>/<filename>.<ext>.
// Filesystem paths are relative to the clone root and start with "/".
type Matcher struct {
	fs          afero.Fs
	projectCode string
	localPath   string
	finder      *Finder
	excluded    map[string]bool
	toPootle    map[string]string
	toUpstream  map[string]string
}

// NewMatcher creates a Matcher for the clone rooted at localPath.
func NewMatcher(fsys afero.Fs, localPath string, cfg MatcherConfig) (*Matcher, error) {
	if err := ValidateMapping(cfg.TranslationMapping); err != nil {
		return nil, err
	}
	localPath = strings.TrimRight(localPath, "/")
	f, err := New(fsys, localPath+cfg.TranslationMapping, cfg.Extensions...)
	if err != nil {
		return nil, err
	}

	m := &Matcher{
		fs:          fsys,
		projectCode: cfg.ProjectCode,
		localPath:   localPath,
		finder:      f,
		excluded:    make(map[string]bool, len(cfg.ExcludedLanguages)),
		toPootle:    make(map[string]string, len(cfg.LangMapping)),
		toUpstream:  make(map[string]string, len(cfg.LangMapping)),
	}
	for _, lang := range cfg.ExcludedLanguages {
		m.excluded[lang] = true
	}
	for upstream, pootle := range cfg.LangMapping {
		if prev, ok := m.toUpstream[pootle]; ok {
			return nil, fmt.Errorf("language %s mapped from both %s and %s", pootle, prev, upstream)
		}
		m.toPootle[upstream] = pootle
		m.toUpstream[pootle] = upstream
	}
	return m, nil
}

// Finder returns the underlying Finder.
func (m *Matcher) Finder() *Finder { return m.finder }

// PootleLanguage returns the pootle code for an upstream language code.
func (m *Matcher) PootleLanguage(upstream string) string {
	if code, ok := m.toPootle[upstream]; ok {
		return code
	}
	return upstream
}

// UpstreamLanguage returns the upstream code for a pootle language code.
func (m *Matcher) UpstreamLanguage(pootle string) string {
	if code, ok := m.toUpstream[pootle]; ok {
		return code
	}
	return pootle
}

// IsExcluded reports whether the pootle language code is excluded.
func (m *Matcher) IsExcluded(lang string) bool {
	return m.excluded[lang]
}

// MakePootlePath builds a pootle path from its parts.
func (m *Matcher) MakePootlePath(lang, dirPath, filename, ext string) string {
	parts := []string{"", lang, m.projectCode}
	if dirPath = strings.Trim(dirPath, "/"); dirPath != "" {
		parts = append(parts, dirPath)
	}
	parts = append(parts, filename+"."+ext)
	return strings.Join(parts, "/")
}

// Ignore loads the clone's ignore file.
func (m *Matcher) Ignore() (*Ignore, error) {
	patterns, err := ReadIgnoreFile(m.fs, m.localPath+"/"+IgnoreFile)
	if err != nil {
		return nil, err
	}
	return NewIgnore(patterns), nil
}

// Matches scans the clone and returns every file that maps to a pootle
// path, skipping excluded languages, ignored files and paths rejected by
// the globs.
func (m *Matcher) Matches(fsGlobs, pootleGlobs Globs) ([]PathPair, error) {
	ignore, err := m.Ignore()
	if err != nil {
		return nil, err
	}
	found, err := m.finder.Find(nil)
	if err != nil {
		return nil, err
	}
	var pairs []PathPair
	for _, f := range found {
		pair, ok := m.pairFor(f)
		if !ok || ignore.Match(pair.FSPath) {
			continue
		}
		if !fsGlobs.Match(pair.FSPath) || !pootleGlobs.Match(pair.PootlePath) {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// PootlePath returns the pootle path for an fs path, if it maps to one.
func (m *Matcher) PootlePath(fsPath string) (string, bool) {
	abs := m.localPath + "/" + strings.TrimLeft(fsPath, "/")
	match, ok := m.finder.Match(abs)
	if !ok {
		return "", false
	}
	pair, ok := m.pairFor(Found{Path: abs, Match: match})
	return pair.PootlePath, ok
}

// FSPath returns the fs path a pootle path maps to. It reports false for
// excluded languages, other projects and paths the template cannot express.
func (m *Matcher) FSPath(pootlePath string) (string, bool) {
	parts := strings.Split(strings.Trim(pootlePath, "/"), "/")
	if len(parts) < 3 || parts[1] != m.projectCode {
		return "", false
	}
	lang := parts[0]
	if m.IsExcluded(lang) {
		return "", false
	}
	base := parts[len(parts)-1]
	dirPath := strings.Join(parts[2:len(parts)-1], "/")
	if dirPath != "" && !m.finder.HasDirPath() {
		return "", false
	}
	ext := strings.TrimPrefix(path.Ext(base), ".")
	if ext == "" || !m.finder.HasExtension(ext) {
		return "", false
	}
	filename := strings.TrimSuffix(base, "."+ext)
	if !m.finder.HasFilename() && filename != m.projectCode {
		return "", false
	}

	abs := m.finder.ReverseMatch(m.UpstreamLanguage(lang), filename, ext, dirPath)
	return m.relative(abs), true
}

func (m *Matcher) pairFor(f Found) (PathPair, bool) {
	lang := m.PootleLanguage(f.Match.LanguageCode)
	if m.IsExcluded(lang) {
		return PathPair{}, false
	}
	filename := f.Match.Filename
	if filename == "" {
		// Templates of the form <language_code>.<ext> name the file after
		// the project.
		filename = m.projectCode
	}
	return PathPair{
		PootlePath: m.MakePootlePath(lang, f.Match.DirPath, filename, f.Match.Ext),
		FSPath:     m.relative(f.Path),
	}, true
}

func (m *Matcher) relative(abs string) string {
	rel := strings.TrimPrefix(abs, m.localPath)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}
