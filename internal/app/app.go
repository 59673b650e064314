package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/term"

	"pfs-go/internal/codec/po"
	"pfs-go/internal/config"
	"pfs-go/internal/database"
	"pfs-go/internal/encryption"
	"pfs-go/internal/finder"
	"pfs-go/internal/pfs"
	"pfs-go/internal/transport"
	"pfs-go/internal/transport/localfs"
	"pfs-go/internal/transport/memory"
	"pfs-go/internal/transport/s3"
)

// ErrUnknownProject means no project has the requested code.
var ErrUnknownProject = errors.New("unknown project")

// PassphraseEnv names the environment variable read before prompting for
// the private key passphrase.
const PassphraseEnv = "PFS_PASSPHRASE"

// NewDefaultRegistry returns a registry holding the built-in transports.
func NewDefaultRegistry() *transport.Registry {
	r := transport.NewRegistry()
	r.Register("localfs", localfs.Constructor)
	r.Register("s3", s3.Constructor)
	r.Register("memory", memory.Constructor)
	return r
}

// Deps are the collaborators of a PFSApp. NewPFSApp builds them from
// config; tests pass their own.
type Deps struct {
	FS         afero.Fs
	DB         *database.SQLiteDatabase
	Registry   *transport.Registry
	Encryptor  pfs.Encryptor
	Logger     pfs.Logger
	IDs        pfs.IDGenerator
	Clock      pfs.Clock
	Passphrase func() (string, error)
	// LogCloser is closed with the app.
	LogCloser io.Closer
}

// PFSApp is the application layer between the CLI and the per-project
// Plugins. It constructs all dependencies from config, exposes high-level
// operations keyed by project code, and records mutating commands in the
// operation history on Close.
type PFSApp struct {
	cfg        *config.Config
	fs         afero.Fs
	db         *database.SQLiteDatabase
	registry   *transport.Registry
	encryptor  pfs.Encryptor
	logger     pfs.Logger
	clock      pfs.Clock
	passphrase func() (string, error)
	logCloser  io.Closer

	op        *Operation
	plugins   map[string]*pfs.Plugin
	transport map[string]pfs.Transport
}

// NewPFSApp creates a fully wired PFSApp from the given config.
// operation identifies the CLI command being run (e.g. "sync", "state").
// The caller must call Close when done.
func NewPFSApp(cfg *config.Config, operation string) (*PFSApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &pfs.ConfigError{Field: "config", Err: err}
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	osFS := afero.NewOsFs()
	enc, err := encryption.NewEncryptorFromConfig(osFS, cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	ids := pfs.UUIDGenerator{}
	runID := ids.New()
	logger, logFile, err := newLogger(cfg.LogDir, cfg.Log, runID, os.Stderr)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return newPFSApp(cfg, operation, runID, Deps{
		FS:         osFS,
		DB:         db,
		Registry:   NewDefaultRegistry(),
		Encryptor:  enc,
		Logger:     &slogAdapter{l: logger},
		Passphrase: promptPassphrase,
		LogCloser:  logFile,
	}), nil
}

// NewPFSAppWithDeps creates a PFSApp around caller-provided dependencies.
func NewPFSAppWithDeps(cfg *config.Config, operation string, deps Deps) *PFSApp {
	ids := deps.IDs
	if ids == nil {
		ids = pfs.UUIDGenerator{}
	}
	return newPFSApp(cfg, operation, ids.New(), deps)
}

func newPFSApp(cfg *config.Config, operation, runID string, deps Deps) *PFSApp {
	logger := deps.Logger
	if logger == nil {
		logger = pfs.NewNopLogger()
	}
	clock := deps.Clock
	if clock == nil {
		clock = pfs.RealClock{}
	}
	registry := deps.Registry
	if registry == nil {
		registry = NewDefaultRegistry()
	}
	return &PFSApp{
		cfg:        cfg,
		fs:         deps.FS,
		db:         deps.DB,
		registry:   registry,
		encryptor:  deps.Encryptor,
		logger:     logger,
		clock:      clock,
		passphrase: deps.Passphrase,
		logCloser:  deps.LogCloser,
		op:         NewOperation(operation, runID),
		plugins:    make(map[string]*pfs.Plugin),
		transport:  make(map[string]pfs.Transport),
	}
}

// InitDatabase creates the configured database if needed and applies
// pending migrations.
func InitDatabase(cfg *config.Config) error {
	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(cfg.Database.DataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	if err := db.MigrateUp(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// promptPassphrase reads the passphrase from PFS_PASSPHRASE, or from the
// terminal without echo.
func promptPassphrase() (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no passphrase: set %s or run from a terminal", PassphraseEnv)
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// Config returns the application configuration.
func (a *PFSApp) Config() *config.Config { return a.cfg }

// RunID returns the identifier of the current command.
func (a *PFSApp) RunID() string { return a.op.RunID }

// TransportTypes lists the fs_type values projects may use.
func (a *PFSApp) TransportTypes() []string { return a.registry.Types() }

// ProjectSpec describes a project to create.
type ProjectSpec struct {
	Code               string
	FSType             string
	FSURL              string
	TranslationMapping string
	ExcludedLanguages  []string
	LangMapping        map[string]string
}

// InitProject validates spec and creates the project.
func (a *PFSApp) InitProject(spec ProjectSpec) (*pfs.Project, error) {
	if spec.Code == "" {
		return nil, &pfs.ConfigError{Field: "code", Err: fmt.Errorf("project code is required")}
	}
	known := false
	for _, t := range a.registry.Types() {
		if t == spec.FSType {
			known = true
			break
		}
	}
	if !known {
		return nil, &pfs.ConfigError{Field: "fs_type", Err: fmt.Errorf("%w: %q", pfs.ErrUnknownTransport, spec.FSType)}
	}
	if spec.FSURL == "" {
		return nil, &pfs.ConfigError{Field: "fs_url", Err: fmt.Errorf("fs_url is required")}
	}
	if err := finder.ValidateMapping(spec.TranslationMapping); err != nil {
		return nil, &pfs.ConfigError{Field: "translation_mapping", Err: err}
	}

	existing, err := a.db.FindProjectByCode(spec.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("project %s already exists", spec.Code)
	}

	p, err := a.db.CreateProject(&pfs.Project{
		Code:               spec.Code,
		FSType:             spec.FSType,
		FSURL:              spec.FSURL,
		TranslationMapping: spec.TranslationMapping,
		ExcludedLanguages:  spec.ExcludedLanguages,
		LangMapping:        spec.LangMapping,
	})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	a.logger.Info("project created", "project", p.Code, "fs_type", p.FSType, "fs_url", p.FSURL)
	return p, nil
}

// Projects lists every project.
func (a *PFSApp) Projects() ([]*pfs.Project, error) {
	return a.db.ListProjects()
}

func (a *PFSApp) project(code string) (*pfs.Project, error) {
	p, err := a.db.FindProjectByCode(code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProject, code)
	}
	return p, nil
}

// Plugin returns the plugin of a project, building its transport on first
// use.
func (a *PFSApp) Plugin(code string) (*pfs.Plugin, error) {
	if p, ok := a.plugins[code]; ok {
		return p, nil
	}
	project, err := a.project(code)
	if err != nil {
		return nil, err
	}

	localPath := a.cfg.ProjectDir(project.Code)
	tr, err := a.registry.New(project, transport.Env{
		FS:        a.fs,
		LocalPath: localPath,
		Config:    a.cfg,
		Logger:    a.logger,
		Encryptor: a.encryptor,
		Unlock:    a.unlock,
	})
	if err != nil {
		return nil, err
	}

	codecs := pfs.Codecs{"po": po.New(), "pot": po.New()}
	plugin, err := pfs.NewPlugin(project, a.db, tr, a.fs, localPath, codecs, a.logger, runIDs{id: a.op.RunID})
	if err != nil {
		return nil, err
	}
	a.plugins[code] = plugin
	a.transport[code] = tr
	return plugin, nil
}

func (a *PFSApp) unlock() (pfs.DecryptionContext, error) {
	if a.encryptor == nil {
		return nil, fmt.Errorf("no encryptor configured")
	}
	if a.passphrase == nil {
		return nil, fmt.Errorf("no passphrase source configured")
	}
	passphrase, err := a.passphrase()
	if err != nil {
		return nil, err
	}
	return a.encryptor.Unlock(passphrase)
}

// persistOperation saves the operation to the database against project,
// giving it an auto-increment ID. This should only be called for
// mutating commands.
func (a *PFSApp) persistOperation(project *pfs.Project) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	dbOp, err := a.db.CreateSyncOperation(project.ID, a.op.RunID, a.op.Name)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// mutate runs fn against the plugin of code as a recorded operation.
func (a *PFSApp) mutate(code string, fn func(*pfs.Plugin) (*pfs.Response, error)) (*pfs.Response, error) {
	plugin, err := a.Plugin(code)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(plugin.Project()); err != nil {
		return nil, err
	}
	resp, err := fn(plugin)
	a.op.Record(resp)
	if err != nil {
		a.op.Fail()
		a.logger.Error("operation failed", "operation", a.op.Name, "project", code, "error", err)
	}
	return resp, err
}

// State classifies the pairs of a project.
func (a *PFSApp) State(ctx context.Context, code string, f pfs.Filter) (*pfs.State, error) {
	plugin, err := a.Plugin(code)
	if err != nil {
		return nil, err
	}
	return plugin.State(ctx, f)
}

// Add starts tracking untracked files and stores.
func (a *PFSApp) Add(ctx context.Context, code string, force bool, f pfs.Filter) (*pfs.Response, error) {
	return a.mutate(code, func(p *pfs.Plugin) (*pfs.Response, error) {
		return p.Add(ctx, force, f)
	})
}

// Resolve stages conflicts for overwrite or merge.
func (a *PFSApp) Resolve(ctx context.Context, code string, merge, pootleWins bool, f pfs.Filter) (*pfs.Response, error) {
	return a.mutate(code, func(p *pfs.Plugin) (*pfs.Response, error) {
		return p.Resolve(ctx, merge, pootleWins, f)
	})
}

// Rm stages pairs for removal.
func (a *PFSApp) Rm(ctx context.Context, code string, force bool, f pfs.Filter) (*pfs.Response, error) {
	return a.mutate(code, func(p *pfs.Plugin) (*pfs.Response, error) {
		return p.Rm(ctx, force, f)
	})
}

// Unstage reverts staged intents.
func (a *PFSApp) Unstage(ctx context.Context, code string, f pfs.Filter) (*pfs.Response, error) {
	return a.mutate(code, func(p *pfs.Plugin) (*pfs.Response, error) {
		return p.Unstage(ctx, f)
	})
}

// Sync converges the database and the working clone, then publishes the
// result through the project's transport.
func (a *PFSApp) Sync(ctx context.Context, code string, f pfs.Filter) (*pfs.Response, error) {
	return a.mutate(code, func(p *pfs.Plugin) (*pfs.Response, error) {
		return p.Sync(ctx, f)
	})
}

// Fetch updates the working clone of a project.
func (a *PFSApp) Fetch(ctx context.Context, code string) error {
	plugin, err := a.Plugin(code)
	if err != nil {
		return err
	}
	start := a.clock.Now()
	if err := plugin.Fetch(ctx); err != nil {
		return err
	}
	a.logger.Info("fetch finished", "project", code, "duration", a.clock.Now().Sub(start).Truncate(time.Millisecond))
	return nil
}

// Info summarizes a project.
func (a *PFSApp) Info(code string) (*pfs.Info, error) {
	plugin, err := a.Plugin(code)
	if err != nil {
		return nil, err
	}
	return plugin.Info()
}

// watcher is implemented by transports that can report upstream changes.
type watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Watch fetches the project whenever its upstream location changes and
// calls onChange after each fetch. It blocks until ctx is done.
func (a *PFSApp) Watch(ctx context.Context, code string, onChange func()) error {
	plugin, err := a.Plugin(code)
	if err != nil {
		return err
	}
	w, ok := a.transport[code].(watcher)
	if !ok {
		return fmt.Errorf("transport %s does not support watching", plugin.Project().FSType)
	}
	return w.Watch(ctx, func() {
		if err := plugin.Fetch(ctx); err != nil {
			a.logger.Warn("fetch after change failed", "project", code, "error", err)
			return
		}
		onChange()
	})
}

// History returns the most recent operations of a project.
func (a *PFSApp) History(code string, limit int) ([]*pfs.SyncOperation, error) {
	project, err := a.project(code)
	if err != nil {
		return nil, err
	}
	return a.db.ListSyncOperations(project.ID, limit)
}

// Run returns a recorded operation and its actions.
func (a *PFSApp) Run(runID string) (*pfs.SyncOperation, []*pfs.ActionRecord, error) {
	op, err := a.db.FindSyncOperationByRunID(runID)
	if err != nil {
		return nil, nil, err
	}
	if op == nil {
		return nil, nil, fmt.Errorf("no operation with run id %s", runID)
	}
	actions, err := a.db.FindSyncActions(op.ID)
	if err != nil {
		return nil, nil, err
	}
	return op, actions, nil
}

// Stores lists the live documents of a project.
func (a *PFSApp) Stores(code string) ([]*pfs.Document, error) {
	project, err := a.project(code)
	if err != nil {
		return nil, err
	}
	docs, err := a.db.FindDocuments(project.ID)
	if err != nil {
		return nil, err
	}
	live := docs[:0]
	for _, d := range docs {
		if d.Live() {
			live = append(live, d)
		}
	}
	return live, nil
}

// Units returns a live document and its live units.
func (a *PFSApp) Units(pootlePath string) (*pfs.Document, []*pfs.Unit, error) {
	doc, err := a.db.FindDocumentByPootlePath(pootlePath)
	if err != nil {
		return nil, nil, err
	}
	if !doc.Live() {
		return nil, nil, fmt.Errorf("no store at %s", pootlePath)
	}
	units, err := a.db.FindUnits(doc.ID)
	if err != nil {
		return nil, nil, err
	}
	live := units[:0]
	for _, u := range units {
		if !u.Obsolete {
			live = append(live, u)
		}
	}
	return doc, live, nil
}

// EditUnit sets the target of the unit at index in a store and returns
// the new revision.
func (a *PFSApp) EditUnit(pootlePath string, index int, target string) (int64, error) {
	_, units, err := a.Units(pootlePath)
	if err != nil {
		return 0, err
	}
	for _, u := range units {
		if u.Index == index {
			rev, err := a.db.SetUnitTarget(u.ID, target)
			if err != nil {
				return 0, err
			}
			a.logger.Info("unit edited", "pootle_path", pootlePath, "index", index, "revision", rev)
			return rev, nil
		}
	}
	return 0, fmt.Errorf("no unit %d in %s", index, pootlePath)
}

// ImportStore creates or replaces the store at pootlePath with the units
// of a translation file read from r.
func (a *PFSApp) ImportStore(code, pootlePath string, r io.Reader) (*pfs.Document, error) {
	project, err := a.project(code)
	if err != nil {
		return nil, err
	}
	codec, err := (pfs.Codecs{"po": po.New(), "pot": po.New()}).For(pootlePath)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pootlePath, err)
	}
	incoming, err := codec.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pootlePath, err)
	}

	doc, err := a.db.CreateDocument(project.ID, pootlePath)
	if err != nil {
		return nil, err
	}
	current, err := a.db.FindUnits(doc.ID)
	if err != nil {
		return nil, err
	}
	rev, err := a.db.CurrentRevision()
	if err != nil {
		return nil, err
	}
	changes := pfs.PlanUpdate(current, incoming, rev+1, false)
	if doc.MaxUnitRevision, err = a.db.ApplyUnitChanges(doc.ID, changes); err != nil {
		return nil, err
	}
	a.logger.Info("store imported", "pootle_path", pootlePath, "added", len(changes.Add), "updated", len(changes.Update), "obsoleted", len(changes.Obsolete))
	return doc, nil
}

// InitEncryption generates the age key pair protected by passphrase.
func (a *PFSApp) InitEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	return nil
}

// BackupDatabase writes a consistent copy of the database to path.
func (a *PFSApp) BackupDatabase(path string) error {
	return a.db.BackupTo(path)
}

// Close finalizes the operation and closes all resources.
// A persisted operation is finished with its status and recorded actions.
func (a *PFSApp) Close() error {
	firstErr := a.finishOperation()

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logCloser != nil {
		a.logCloser.Close()
	}

	return firstErr
}

// finishOperation stores the status and actions of a persisted operation.
func (a *PFSApp) finishOperation() error {
	if !a.op.Persisted() {
		return nil
	}
	if err := a.db.FinishSyncOperation(a.op.ID, a.op.Status, a.op.Actions); err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}
