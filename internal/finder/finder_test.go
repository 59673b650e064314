package finder

import (
	"testing"

	"github.com/spf13/afero"
)

func TestValidateMapping(t *testing.T) {
	tests := []struct {
		mapping string
		wantErr bool
	}{
		{"/<language_code>/<filename>.<ext>", false},
		{"/po/<language_code>.<ext>", false},
		{"/<dir_path>/<language_code>/<filename>.<ext>", false},
		{"/locale/<language_code>/LC_MESSAGES/<filename>.<ext>", false},
		{"", true},
		{"<language_code>.<ext>", true},
		{"/po/<filename>.<ext>", true},
		{"/<language_code>/<filename>.po", true},
		{"/<language_code>/<project>.<ext>", true},
		{"/<language_code>/my file.<ext>", true},
	}

	for _, tt := range tests {
		t.Run(tt.mapping, func(t *testing.T) {
			err := ValidateMapping(tt.mapping)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMapping(%q) error = %v, wantErr %v", tt.mapping, err, tt.wantErr)
			}
		})
	}
}

func TestFinder_Match(t *testing.T) {
	f, err := New(afero.NewMemMapFs(), "/clone/<language_code>/<dir_path>/<filename>.<ext>")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		path string
		ok   bool
		want Match
	}{
		{"/clone/de/tutorial.po", true, Match{LanguageCode: "de", Filename: "tutorial", Ext: "po"}},
		{"/clone/pt_BR/sub/dir/app.pot", true, Match{LanguageCode: "pt_BR", DirPath: "sub/dir", Filename: "app", Ext: "pot"}},
		{"/clone/de/app.v2.po", true, Match{LanguageCode: "de", Filename: "app.v2", Ext: "po"}},
		{"/clone/de/tutorial.txt", false, Match{}},
		{"/other/de/tutorial.po", false, Match{}},
		{"/clone/de/.po", false, Match{}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := f.Match(tt.path)
			if ok != tt.ok {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFinder_Find(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, p := range []string{
		"/clone/po/de.po",
		"/clone/po/fr.po",
		"/clone/po/notes.txt",
		"/clone/po/sub/it.po",
		"/clone/README",
	} {
		if err := afero.WriteFile(fsys, p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	f, err := New(fsys, "/clone/po/<language_code>.<ext>")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if f.FileRoot() != "/clone/po" {
		t.Errorf("FileRoot() = %q, want /clone/po", f.FileRoot())
	}

	found, err := f.Find(nil)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(found) != 2 || found[0].Path != "/clone/po/de.po" || found[1].Path != "/clone/po/fr.po" {
		t.Errorf("Find() = %+v", found)
	}

	globs, err := CompileGlobs([]string{"*/fr.*"})
	if err != nil {
		t.Fatal(err)
	}
	found, err = f.Find(globs)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(found) != 1 || found[0].Match.LanguageCode != "fr" {
		t.Errorf("Find(globs) = %+v", found)
	}
}

func TestFinder_FindMissingRoot(t *testing.T) {
	f, err := New(afero.NewMemMapFs(), "/clone/<language_code>/<filename>.<ext>")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	found, err := f.Find(nil)
	if err != nil || found != nil {
		t.Errorf("Find() = %v, %v, want nothing", found, err)
	}
}

func TestFinder_ReverseMatch(t *testing.T) {
	f, err := New(afero.NewMemMapFs(), "/clone/<language_code>/<dir_path>/<filename>.<ext>")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := f.ReverseMatch("de", "app", "po", ""); got != "/clone/de/app.po" {
		t.Errorf("ReverseMatch() = %q", got)
	}
	if got := f.ReverseMatch("de", "app", "po", "/sub/dir/"); got != "/clone/de/sub/dir/app.po" {
		t.Errorf("ReverseMatch() = %q", got)
	}
}
