package finder

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtensions are the file extensions matched when none are given.
var DefaultExtensions = []string{"po", "pot"}

const (
	tagLanguageCode = "<language_code>"
	tagDirPath      = "<dir_path>"
	tagFilename     = "<filename>"
	tagExt          = "<ext>"
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	badCharsPattern = regexp.MustCompile(`[^\w/\-.]`)
	slashesPattern  = regexp.MustCompile(`/{2,}`)

	knownTags = map[string]bool{
		tagLanguageCode: true,
		tagDirPath:      true,
		tagFilename:     true,
		tagExt:          true,
	}
)

// ValidateMapping checks that a translation mapping template is usable.
func ValidateMapping(mapping string) error {
	if mapping == "" {
		return errors.New("translation mapping is empty")
	}
	if !strings.HasPrefix(mapping, "/") {
		return fmt.Errorf("translation mapping must be absolute: %q", mapping)
	}
	if !strings.Contains(mapping, tagLanguageCode) {
		return fmt.Errorf("translation mapping must contain %s: %q", tagLanguageCode, mapping)
	}
	if !strings.HasSuffix(mapping, "."+tagExt) {
		return fmt.Errorf("translation mapping must end with .%s: %q", tagExt, mapping)
	}
	for _, tag := range tagPattern.FindAllString(mapping, -1) {
		if !knownTags[tag] {
			return fmt.Errorf("unknown tag %s in translation mapping", tag)
		}
	}
	if bad := badCharsPattern.FindString(tagPattern.ReplaceAllString(mapping, "")); bad != "" {
		return fmt.Errorf("invalid character %q in translation mapping", bad)
	}
	return nil
}

// Match holds the placeholder values extracted from a matching path.
type Match struct {
	LanguageCode string
	DirPath      string
	Filename     string
	Ext          string
}

// Found is a file discovered by Find.
type Found struct {
	Path  string
	Match Match
}

// Finder enumerates the files of a working tree that fit a translation
// mapping template and maps placeholder values back to paths.
type Finder struct {
	fs         afero.Fs
	mapping    string
	extensions []string
	regex      *regexp.Regexp
	fileRoot   string
}

// New creates a Finder for an absolute mapping such as
// /srv/clone/<language_code>/<dir_path>/<filename>.<ext>.
func New(fsys afero.Fs, mapping string, extensions ...string) (*Finder, error) {
	if err := ValidateMapping(mapping); err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	re, err := regexp.Compile(compileMapping(mapping, extensions))
	if err != nil {
		return nil, fmt.Errorf("compiling translation mapping: %w", err)
	}
	return &Finder{
		fs:         fsys,
		mapping:    mapping,
		extensions: extensions,
		regex:      re,
		fileRoot:   fileRoot(mapping),
	}, nil
}

func compileMapping(mapping string, extensions []string) string {
	mapping = strings.ReplaceAll(mapping, "/"+tagDirPath+"/", "/"+tagDirPath)

	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = regexp.QuoteMeta(e)
	}

	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range tagPattern.FindAllStringIndex(mapping, -1) {
		b.WriteString(regexp.QuoteMeta(mapping[last:loc[0]]))
		switch mapping[loc[0]:loc[1]] {
		case tagLanguageCode:
			b.WriteString(`(?P<language_code>[\w\-.]*)`)
		case tagFilename:
			b.WriteString(`(?P<filename>[\w\-.]*)`)
		case tagDirPath:
			b.WriteString(`(?P<dir_path>[\w/\-]*?)`)
		case tagExt:
			b.WriteString(`(?P<ext>` + strings.Join(exts, "|") + `)`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(mapping[last:]))
	b.WriteString("$")
	return b.String()
}

func fileRoot(mapping string) string {
	prefix := mapping[:strings.Index(mapping, "<")]
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		return prefix[:i]
	}
	return "/"
}

// FileRoot returns the directory under which all matching files live.
func (f *Finder) FileRoot() string { return f.fileRoot }

// Mapping returns the absolute mapping template.
func (f *Finder) Mapping() string { return f.mapping }

// Match extracts placeholder values from path.
func (f *Finder) Match(path string) (Match, bool) {
	sub := f.regex.FindStringSubmatch(path)
	if sub == nil {
		return Match{}, false
	}
	var m Match
	for i, name := range f.regex.SubexpNames() {
		switch name {
		case "language_code":
			m.LanguageCode = sub[i]
		case "dir_path":
			m.DirPath = strings.Trim(sub[i], "/")
		case "filename":
			m.Filename = sub[i]
		case "ext":
			m.Ext = sub[i]
		}
	}
	if m.LanguageCode == "" {
		return Match{}, false
	}
	if strings.Contains(f.mapping, tagFilename) && m.Filename == "" {
		return Match{}, false
	}
	return m, true
}

// Find walks the file root and returns every matching file, sorted by
// path. Files not matching filters are skipped.
func (f *Finder) Find(filters Globs) ([]Found, error) {
	exists, err := afero.DirExists(f.fs, f.fileRoot)
	if err != nil {
		return nil, fmt.Errorf("checking file root: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var found []Found
	err = afero.Walk(f.fs, f.fileRoot, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		p = filepath.ToSlash(p)
		if !filters.Match(p) {
			return nil
		}
		if m, ok := f.Match(p); ok {
			found = append(found, Found{Path: p, Match: m})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", f.fileRoot, err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

// ReverseMatch fills the template with the given values.
func (f *Finder) ReverseMatch(languageCode, filename, ext, dirPath string) string {
	p := f.mapping
	p = strings.ReplaceAll(p, tagLanguageCode, languageCode)
	p = strings.ReplaceAll(p, tagFilename, filename)
	p = strings.ReplaceAll(p, tagExt, ext)
	p = strings.ReplaceAll(p, tagDirPath, strings.Trim(dirPath, "/"))
	return slashesPattern.ReplaceAllString(p, "/")
}

// HasDirPath reports whether the template contains a <dir_path> placeholder.
func (f *Finder) HasDirPath() bool {
	return strings.Contains(f.mapping, tagDirPath)
}

// HasFilename reports whether the template contains a <filename> placeholder.
func (f *Finder) HasFilename() bool {
	return strings.Contains(f.mapping, tagFilename)
}

// HasExtension reports whether ext is one the finder matches.
func (f *Finder) HasExtension(ext string) bool {
	for _, e := range f.extensions {
		if e == ext {
			return true
		}
	}
	return false
}
