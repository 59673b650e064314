package finder

import (
	"testing"

	"github.com/spf13/afero"
)

func TestNewIgnore(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		i := NewIgnore([]string{"", "  ", "# comment", "*.pot"})
		if len(i.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(i.patterns))
		}
		if i.patterns[0].pattern != "*.pot" {
			t.Errorf("expected *.pot, got %s", i.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		i := NewIgnore([]string{"*.pot", "/de/draft.po"})
		if i.patterns[0].matchPath {
			t.Error("*.pot should not be a path pattern")
		}
		if !i.patterns[1].matchPath {
			t.Error("/de/draft.po should be a path pattern")
		}
		if i.patterns[1].pattern != "de/draft.po" {
			t.Errorf("leading slash not stripped: %s", i.patterns[1].pattern)
		}
	})
}

func TestIgnore_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		fsPath   string
		want     bool
	}{
		{"basename glob matches file in root", []string{"*.pot"}, "/tutorial.pot", true},
		{"basename glob matches nested file", []string{"*.pot"}, "/templates/tutorial.pot", true},
		{"basename glob ignores other extension", []string{"*.pot"}, "/de/tutorial.po", false},
		{"path pattern matches exact path", []string{"de/draft.po"}, "/de/draft.po", true},
		{"rooted path pattern", []string{"/de/draft.po"}, "/de/draft.po", true},
		{"path pattern does not match other directory", []string{"de/draft.po"}, "/fr/draft.po", false},
		{"path pattern with glob", []string{"xx/*"}, "/xx/tutorial.po", true},
		{"path glob stays in one directory", []string{"xx/*"}, "/xx/sub/tutorial.po", false},
		{"question mark wildcard", []string{"?.po"}, "/de/a.po", true},
		{"question mark does not match multiple chars", []string{"?.po"}, "/de/ab.po", false},
		{"character class", []string{"draft.[pP][oO]"}, "/de/draft.PO", true},
		{"no patterns matches nothing", nil, "/de/tutorial.po", false},
		{"multiple patterns second matches", []string{"*.pot", "draft.*"}, "/de/draft.po", true},
		{"bad pattern is skipped", []string{"[", "*.po"}, "/de/a.po", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewIgnore(tt.patterns).Match(tt.fsPath)
			if got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.fsPath, got, tt.want)
			}
		})
	}

	var nilIgnore *Ignore
	if nilIgnore.Match("/de/a.po") {
		t.Error("nil Ignore must match nothing")
	}
}

func TestReadIgnoreFile(t *testing.T) {
	t.Run("reads raw lines", func(t *testing.T) {
		t.Parallel()
		fsys := afero.NewMemMapFs()
		content := "*.pot\n# comment\n\nxx/*\n/de/draft.po\n"
		if err := afero.WriteFile(fsys, "/clone/"+IgnoreFile, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ReadIgnoreFile(fsys, "/clone/"+IgnoreFile)
		if err != nil {
			t.Fatalf("ReadIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}
		if i := NewIgnore(patterns); len(i.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(i.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ReadIgnoreFile(afero.NewMemMapFs(), "/nonexistent/"+IgnoreFile)
		if err != nil {
			t.Fatalf("ReadIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}

func TestMatcher_MatchesSkipsIgnored(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/clone/de/tutorial.po": "x",
		"/clone/de/draft.po":    "x",
		"/clone/" + IgnoreFile:  "draft.po\n",
	}
	for p, content := range files {
		if err := afero.WriteFile(fsys, p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	m := newTestMatcher(t, fsys, MatcherConfig{TranslationMapping: "/<language_code>/<filename>.<ext>"})

	pairs, err := m.Matches(nil, nil)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if len(pairs) != 1 || pairs[0].FSPath != "/de/tutorial.po" {
		t.Errorf("Matches() = %+v, want only /de/tutorial.po", pairs)
	}
}
