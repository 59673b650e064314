package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"pfs-go/internal/config"
	"pfs-go/internal/encryption"
	"pfs-go/internal/pfs"
	"pfs-go/internal/testutil"
	"pfs-go/internal/transport/memory"
)

const frPO = `msgid ""
msgstr ""
"Content-Type: text/plain; charset=UTF-8\n"

msgid "Hello"
msgstr "Bonjour"

msgid "Goodbye"
msgstr "Au revoir"
`

type testApp struct {
	*PFSApp
	fs       afero.Fs
	upstream *memory.Transport
}

func newTestApp(t *testing.T, operation string) *testApp {
	t.Helper()

	cfg := config.NewConfig("/data")
	fsys := afero.NewMemMapFs()
	upstream := memory.New(fsys, cfg.ProjectDir("tutorial"))
	clock := testutil.FixedClock()
	clock.Step = time.Second
	a := NewPFSAppWithDeps(cfg, operation, Deps{
		FS:        fsys,
		DB:        testutil.NewTestDatabase(t),
		Registry:  testutil.MemoryRegistry(upstream),
		Encryptor: testutil.NewTestEncryptor(),
		IDs:       testutil.NewPrefixedIDGenerator("run"),
		Clock:     clock,
	})
	return &testApp{PFSApp: a, fs: fsys, upstream: upstream}
}

func (a *testApp) initProject(t *testing.T) *pfs.Project {
	t.Helper()

	p, err := a.InitProject(ProjectSpec{
		Code:               "tutorial",
		FSType:             "memory",
		FSURL:              "memory://tutorial",
		TranslationMapping: testutil.DefaultMapping,
	})
	if err != nil {
		t.Fatalf("InitProject() error = %v", err)
	}
	return p
}

func TestNewDefaultRegistry(t *testing.T) {
	got := strings.Join(NewDefaultRegistry().Types(), ",")
	if got != "localfs,memory,s3" {
		t.Errorf("Types() = %q, want %q", got, "localfs,memory,s3")
	}
}

func TestPFSApp_InitProject(t *testing.T) {
	valid := ProjectSpec{
		Code:               "tutorial",
		FSType:             "memory",
		FSURL:              "memory://tutorial",
		TranslationMapping: testutil.DefaultMapping,
	}

	tests := []struct {
		name      string
		mutate    func(*ProjectSpec)
		wantField string
	}{
		{"missing code", func(s *ProjectSpec) { s.Code = "" }, "code"},
		{"unknown fs type", func(s *ProjectSpec) { s.FSType = "svn" }, "fs_type"},
		{"missing fs url", func(s *ProjectSpec) { s.FSURL = "" }, "fs_url"},
		{"mapping without language", func(s *ProjectSpec) { s.TranslationMapping = "/<filename>.<ext>" }, "translation_mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, "project-init")
			spec := valid
			tt.mutate(&spec)

			_, err := a.InitProject(spec)
			var ce *pfs.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("InitProject() error = %v, want ConfigError", err)
			}
			if ce.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ce.Field, tt.wantField)
			}
		})
	}

	t.Run("creates and rejects duplicates", func(t *testing.T) {
		a := newTestApp(t, "project-init")
		if _, err := a.InitProject(valid); err != nil {
			t.Fatalf("InitProject() error = %v", err)
		}
		if _, err := a.InitProject(valid); err == nil {
			t.Fatal("second InitProject() expected error")
		}
		projects, err := a.Projects()
		if err != nil {
			t.Fatalf("Projects() error = %v", err)
		}
		if len(projects) != 1 || projects[0].Code != "tutorial" {
			t.Errorf("Projects() = %+v, want only tutorial", projects)
		}
	})
}

func TestPFSApp_UnknownProject(t *testing.T) {
	a := newTestApp(t, "state")

	_, err := a.State(context.Background(), "missing", pfs.Filter{})
	if !errors.Is(err, ErrUnknownProject) {
		t.Errorf("State() error = %v, want ErrUnknownProject", err)
	}
}

func TestPFSApp_StateRequiresFetch(t *testing.T) {
	a := newTestApp(t, "state")
	a.initProject(t)

	_, err := a.State(context.Background(), "tutorial", pfs.Filter{})
	if !errors.Is(err, pfs.ErrNotFetched) {
		t.Errorf("State() error = %v, want ErrNotFetched", err)
	}
}

func TestPFSApp_AddSyncEditSync(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, "sync")
	a.initProject(t)
	a.upstream.Put("/fr/tutorial.po", []byte(frPO))
	const pootlePath = "/fr/tutorial/tutorial.po"

	if err := a.Fetch(ctx, "tutorial"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	state, err := a.State(ctx, "tutorial", pfs.Filter{})
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	untracked := state.Items(pfs.StateFSUntracked)
	if len(untracked) != 1 || untracked[0].PootlePath != pootlePath {
		t.Fatalf("fs_untracked = %v, want %s", untracked, pootlePath)
	}

	resp, err := a.Add(ctx, "tutorial", false, pfs.Filter{})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if n := len(resp.Completed(pfs.ActionAddedFromFS)); n != 1 {
		t.Fatalf("added_from_fs = %d, want 1", n)
	}
	if resp.RunID != "run-1" {
		t.Errorf("RunID = %q, want the operation run id %q", resp.RunID, "run-1")
	}

	resp, err = a.Sync(ctx, "tutorial", pfs.Filter{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n := len(resp.Completed(pfs.ActionPulledToPootle)); n != 1 {
		t.Fatalf("pulled_to_pootle = %d, want 1", n)
	}

	stores, err := a.Stores("tutorial")
	if err != nil {
		t.Fatalf("Stores() error = %v", err)
	}
	if len(stores) != 1 || stores[0].PootlePath != pootlePath {
		t.Fatalf("Stores() = %+v, want %s", stores, pootlePath)
	}
	_, units, err := a.Units(pootlePath)
	if err != nil {
		t.Fatalf("Units() error = %v", err)
	}
	if len(units) != 2 || units[0].Target != "Bonjour" {
		t.Fatalf("Units() = %+v, want Hello/Goodbye", units)
	}

	if _, err := a.EditUnit(pootlePath, 0, "Salut"); err != nil {
		t.Fatalf("EditUnit() error = %v", err)
	}
	if _, err := a.EditUnit(pootlePath, 7, "x"); err == nil {
		t.Error("EditUnit() expected error for missing index")
	}

	resp, err = a.Sync(ctx, "tutorial", pfs.Filter{})
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if n := len(resp.Completed(pfs.ActionPushedToFS)); n != 1 {
		t.Fatalf("pushed_to_fs = %d, want 1", n)
	}
	pushed, ok := a.upstream.Get("/fr/tutorial.po")
	if !ok || !strings.Contains(string(pushed), `msgstr "Salut"`) {
		t.Errorf("upstream file = %q, want the edited target", pushed)
	}

	state, err = a.State(ctx, "tutorial", pfs.Filter{})
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state.Changed() != 0 {
		t.Errorf("State() = %v, want everything unchanged", state)
	}

	if err := a.finishOperation(); err != nil {
		t.Fatalf("finishOperation() error = %v", err)
	}
	ops, err := a.History("tutorial", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Status != StatusSuccess || ops[0].Operation != "sync" {
		t.Fatalf("History() = %+v, want one successful sync", ops)
	}
	op, actions, err := a.Run(ops[0].RunID)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if op.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	var kinds []string
	for _, rec := range actions {
		kinds = append(kinds, string(rec.Action))
	}
	if got := strings.Join(kinds, ","); got != "added_from_fs,pulled_to_pootle,pushed_to_fs" {
		t.Errorf("actions = %s", got)
	}
}

func TestPFSApp_SyncPushFailure(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, "sync")
	a.initProject(t)
	a.upstream.Put("/fr/tutorial.po", []byte(frPO))
	if err := a.Fetch(ctx, "tutorial"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, err := a.Add(ctx, "tutorial", false, pfs.Filter{}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	a.upstream.FailPush(errors.New("remote unavailable"))
	resp, err := a.Sync(ctx, "tutorial", pfs.Filter{})
	if !pfs.IsTransportError(err) {
		t.Fatalf("Sync() error = %v, want TransportError", err)
	}
	if resp == nil || len(resp.Completed(pfs.ActionPulledToPootle)) != 1 {
		t.Fatalf("Sync() response = %v, want the pull recorded", resp)
	}
	if a.op.Status != StatusError {
		t.Errorf("Status = %q, want %q", a.op.Status, StatusError)
	}

	state, err := a.State(ctx, "tutorial", pfs.Filter{})
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if !state.Has(pfs.StateUnchanged) || state.Changed() != 0 {
		t.Errorf("State() = %v, want the pair synced despite the failed push", state)
	}
}

func TestPFSApp_ImportStore(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, "store-import")
	a.initProject(t)
	if err := a.Fetch(ctx, "tutorial"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	doc, err := a.ImportStore("tutorial", "/de/tutorial/tutorial.po", strings.NewReader(frPO))
	if err != nil {
		t.Fatalf("ImportStore() error = %v", err)
	}
	if doc.MaxUnitRevision == 0 {
		t.Error("MaxUnitRevision = 0 after import")
	}

	state, err := a.State(ctx, "tutorial", pfs.Filter{})
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	items := state.Items(pfs.StatePootleUntracked)
	if len(items) != 1 || items[0].FSPath != "/de/tutorial.po" {
		t.Errorf("pootle_untracked = %v, want /de/tutorial.po", items)
	}

	if _, err := a.ImportStore("tutorial", "/de/tutorial/readme.txt", strings.NewReader("x")); err == nil {
		t.Error("ImportStore() expected error for a file without codec")
	}
}

func TestPFSApp_InitEncryption(t *testing.T) {
	cfg := config.NewConfig("/data")
	fsys := afero.NewMemMapFs()
	a := NewPFSAppWithDeps(cfg, "encryption-init", Deps{
		FS:        fsys,
		DB:        testutil.NewTestDatabase(t),
		Encryptor: encryption.NewAgeEncryptor(fsys, cfg.Encryption),
	})

	if err := a.InitEncryption("correct horse"); err != nil {
		t.Fatalf("InitEncryption() error = %v", err)
	}
	if err := a.InitEncryption("correct horse"); err == nil {
		t.Fatal("second InitEncryption() expected error")
	}
}

func TestPFSApp_Unlock(t *testing.T) {
	a := newTestApp(t, "fetch")
	if _, err := a.unlock(); err == nil {
		t.Error("unlock() expected error without a passphrase source")
	}

	calls := 0
	a.passphrase = func() (string, error) {
		calls++
		return "secret", nil
	}
	if _, err := a.unlock(); err != nil {
		t.Fatalf("unlock() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("passphrase called %d times, want 1", calls)
	}
}

func TestPFSApp_WatchUnsupported(t *testing.T) {
	a := newTestApp(t, "state")
	a.initProject(t)

	err := a.Watch(context.Background(), "tutorial", func() {})
	if err == nil || !strings.Contains(err.Error(), "does not support watching") {
		t.Errorf("Watch() error = %v, want unsupported", err)
	}
}

func TestPromptPassphrase_Env(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")

	got, err := promptPassphrase()
	if err != nil {
		t.Fatalf("promptPassphrase() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("promptPassphrase() = %q, want %q", got, "from-env")
	}
}

func TestInitDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig(dir)

	if err := InitDatabase(cfg); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}
	if err := InitDatabase(cfg); err != nil {
		t.Fatalf("second InitDatabase() error = %v", err)
	}

	cfg.LogDir = t.TempDir()
	a, err := NewPFSApp(cfg, "project-list")
	if err != nil {
		t.Fatalf("NewPFSApp() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
