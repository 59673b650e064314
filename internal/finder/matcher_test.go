package finder

import (
	"testing"

	"github.com/spf13/afero"
)

func newTestMatcher(t *testing.T, fsys afero.Fs, cfg MatcherConfig) *Matcher {
	t.Helper()
	if cfg.ProjectCode == "" {
		cfg.ProjectCode = "tutorial"
	}
	m, err := NewMatcher(fsys, "/clone/", cfg)
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	return m
}

func TestMatcher_Matches(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, p := range []string{
		"/clone/de/tutorial.po",
		"/clone/de/sub/extra.po",
		"/clone/pt-BR/tutorial.po",
		"/clone/xx/tutorial.po",
		"/clone/templates/tutorial.pot",
	} {
		if err := afero.WriteFile(fsys, p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	m := newTestMatcher(t, fsys, MatcherConfig{
		TranslationMapping: "/<language_code>/<dir_path>/<filename>.<ext>",
		ExcludedLanguages:  []string{"xx"},
		LangMapping:        map[string]string{"pt-BR": "pt_BR"},
	})

	pairs, err := m.Matches(nil, nil)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	want := []PathPair{
		{"/de/tutorial/sub/extra.po", "/de/sub/extra.po"},
		{"/de/tutorial/tutorial.po", "/de/tutorial.po"},
		{"/pt_BR/tutorial/tutorial.po", "/pt-BR/tutorial.po"},
		{"/templates/tutorial/tutorial.pot", "/templates/tutorial.pot"},
	}
	if len(pairs) != len(want) {
		t.Fatalf("Matches() = %+v, want %+v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %+v, want %+v", i, pairs[i], want[i])
		}
	}

	pootleGlobs, _ := CompileGlobs([]string{"/de/*"})
	pairs, err = m.Matches(nil, pootleGlobs)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if len(pairs) != 2 {
		t.Errorf("Matches(pootle globs) = %+v, want the two German files", pairs)
	}
}

func TestMatcher_FSPath(t *testing.T) {
	m := newTestMatcher(t, afero.NewMemMapFs(), MatcherConfig{
		TranslationMapping: "/<language_code>/<filename>.<ext>",
		ExcludedLanguages:  []string{"xx"},
		LangMapping:        map[string]string{"pt-BR": "pt_BR"},
	})

	tests := []struct {
		pootlePath string
		want       string
		ok         bool
	}{
		{"/de/tutorial/tutorial.po", "/de/tutorial.po", true},
		{"/pt_BR/tutorial/app.po", "/pt-BR/app.po", true},
		{"/de/tutorial/sub/app.po", "", false},
		{"/xx/tutorial/tutorial.po", "", false},
		{"/de/other/tutorial.po", "", false},
		{"/de/tutorial/tutorial.xlf", "", false},
		{"/de/tutorial", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.pootlePath, func(t *testing.T) {
			got, ok := m.FSPath(tt.pootlePath)
			if ok != tt.ok || got != tt.want {
				t.Errorf("FSPath(%q) = %q, %v, want %q, %v", tt.pootlePath, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMatcher_ProjectNamedFiles(t *testing.T) {
	m := newTestMatcher(t, afero.NewMemMapFs(), MatcherConfig{
		TranslationMapping: "/po/<language_code>.<ext>",
	})

	if got, ok := m.PootlePath("/po/de.po"); !ok || got != "/de/tutorial/tutorial.po" {
		t.Errorf("PootlePath() = %q, %v", got, ok)
	}
	if got, ok := m.FSPath("/de/tutorial/tutorial.po"); !ok || got != "/po/de.po" {
		t.Errorf("FSPath() = %q, %v", got, ok)
	}
	if _, ok := m.FSPath("/de/tutorial/other.po"); ok {
		t.Error("template without <filename> can only express the project file")
	}
}

func TestNewMatcher_Errors(t *testing.T) {
	fsys := afero.NewMemMapFs()

	if _, err := NewMatcher(fsys, "/clone", MatcherConfig{TranslationMapping: "/<filename>.<ext>"}); err == nil {
		t.Error("expected error for mapping without language code")
	}

	_, err := NewMatcher(fsys, "/clone", MatcherConfig{
		TranslationMapping: "/<language_code>.<ext>",
		LangMapping:        map[string]string{"pt-BR": "pt_BR", "pt_br": "pt_BR"},
	})
	if err == nil {
		t.Error("expected error for two upstream codes mapped to one language")
	}
}

func TestGlobs(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.po", "/de/tutorial.po", true},
		{"/de/*", "/de/sub/tutorial.po", true},
		{"/de/?.po", "/de/a.po", true},
		{"/de/?.po", "/de/ab.po", false},
		{"/[df][er]/*", "/fr/a.po", true},
		{"/[!d]*/*", "/de/a.po", false},
		{"/[!d]*/*", "/fr/a.po", true},
		{"/de/a.po", "/de/a.po", true},
		{"/de/a.po", "/de/a_po", false},
		{"[", "[", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.name, func(t *testing.T) {
			got, err := MatchGlob(tt.pattern, tt.name)
			if err != nil {
				t.Fatalf("MatchGlob() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MatchGlob(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
			}
		})
	}

	var empty Globs
	if !empty.Match("anything") {
		t.Error("empty Globs must match everything")
	}
}
