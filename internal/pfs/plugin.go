package pfs

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"pfs-go/internal/finder"
)

// Hooks are optional callbacks run around the pull and push phases of Sync.
type Hooks struct {
	PrePull  func(items []*StateItem)
	PostPull func(resp *Response)
	PrePush  func(items []*StateItem)
	PostPush func(resp *Response)
}

// Plugin reconciles one project's database documents with its working
// clone. It assumes it is the only writer to the project's tracking
// records while an operation runs.
type Plugin struct {
	project   *Project
	db        Database
	transport Transport
	fs        afero.Fs
	localPath string
	matcher   *finder.Matcher
	codecs    Codecs
	logger    Logger
	ids       IDGenerator
	hooks     Hooks

	mu        sync.Mutex
	cache     map[string]*State
	cacheSnap Snapshot // snapshot the cached states belong to
	group     singleflight.Group
}

// NewPlugin creates a Plugin for project whose working clone lives at
// localPath on fsys.
func NewPlugin(project *Project, db Database, transport Transport, fsys afero.Fs, localPath string, codecs Codecs, logger Logger, ids IDGenerator) (*Plugin, error) {
	if project.FSType == "" {
		return nil, &ConfigError{Field: "fs_type", Err: fmt.Errorf("not set for project %s", project.Code)}
	}
	if project.FSURL == "" {
		return nil, &ConfigError{Field: "fs_url", Err: fmt.Errorf("not set for project %s", project.Code)}
	}
	if transport == nil {
		return nil, &ConfigError{Field: "fs_type", Err: ErrUnknownTransport}
	}
	if len(codecs) == 0 {
		return nil, &ConfigError{Field: "codecs", Err: fmt.Errorf("no codecs configured")}
	}

	exts := make([]string, 0, len(codecs))
	for ext := range codecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	matcher, err := finder.NewMatcher(fsys, localPath, finder.MatcherConfig{
		ProjectCode:        project.Code,
		TranslationMapping: project.TranslationMapping,
		ExcludedLanguages:  project.ExcludedLanguages,
		LangMapping:        project.LangMapping,
		Extensions:         exts,
	})
	if err != nil {
		return nil, &ConfigError{Field: "translation_mapping", Err: err}
	}

	if logger == nil {
		logger = NewNopLogger()
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	return &Plugin{
		project:   project,
		db:        db,
		transport: transport,
		fs:        fsys,
		localPath: strings.TrimRight(localPath, "/"),
		matcher:   matcher,
		codecs:    codecs,
		logger:    logger,
		ids:       ids,
		cache:     make(map[string]*State),
	}, nil
}

// Project returns the project the plugin serves.
func (p *Plugin) Project() *Project { return p.project }

// LocalPath returns the root of the working clone.
func (p *Plugin) LocalPath() string { return p.localPath }

// Matcher returns the project's path matcher.
func (p *Plugin) Matcher() *finder.Matcher { return p.matcher }

// SetHooks installs sync lifecycle callbacks.
func (p *Plugin) SetHooks(h Hooks) { p.hooks = h }

func (p *Plugin) absPath(fsPath string) string {
	return filepath.Join(p.localPath, filepath.FromSlash(strings.TrimLeft(fsPath, "/")))
}

// IsCloned reports whether the working clone has been fetched.
func (p *Plugin) IsCloned() (bool, error) {
	return afero.DirExists(p.fs, p.localPath)
}

func (p *Plugin) requireCloned() error {
	cloned, err := p.IsCloned()
	if err != nil {
		return fmt.Errorf("checking working clone: %w", err)
	}
	if !cloned {
		return &StateError{Project: p.project.Code, Err: ErrNotFetched}
	}
	return nil
}

// Snapshot reads the three revision tokens the classification depends on.
func (p *Plugin) Snapshot() (Snapshot, error) {
	pootleRev, err := p.db.CurrentRevision()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading pootle revision: %w", err)
	}
	syncRev, err := p.db.SyncRevision(p.project.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading sync revision: %w", err)
	}
	fsRev, err := p.transport.LatestChangeToken()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading fs revision: %w", err)
	}
	return Snapshot{PootleRevision: pootleRev, SyncRevision: syncRev, FSRevision: fsRev}, nil
}

// State classifies the project's pairs. Results are memoized per filter
// for the current snapshot only; a new snapshot drops the older entries.
func (p *Plugin) State(ctx context.Context, f Filter) (*State, error) {
	if err := p.requireCloned(); err != nil {
		return nil, err
	}
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%d\x02%d\x02%s\x02%s", snap.PootleRevision, snap.SyncRevision, snap.FSRevision, f.key())

	p.mu.Lock()
	if p.cacheSnap != snap {
		p.cache = make(map[string]*State)
		p.cacheSnap = snap
	}
	cached, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		state, err := p.computeState(snap, f)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		if p.cacheSnap == snap {
			p.cache[key] = state
		}
		p.mu.Unlock()
		return state, nil
	})
	if err != nil {
		return nil, fmt.Errorf("computing state: %w", err)
	}
	return v.(*State), nil
}

// invalidate rotates the sync revision and drops memoized states.
func (p *Plugin) invalidate() error {
	p.mu.Lock()
	p.cache = make(map[string]*State)
	p.mu.Unlock()
	if _, err := p.db.BumpSyncRevision(p.project.ID); err != nil {
		return fmt.Errorf("bumping sync revision: %w", err)
	}
	return nil
}

func (p *Plugin) newResponse(operation string) *Response {
	return NewResponse(operation, p.ids.New())
}

func (p *Plugin) newRecord(item *StateItem) *TrackingRecord {
	r := &TrackingRecord{
		ProjectID:  p.project.ID,
		PootlePath: item.PootlePath,
		Path:       item.FSPath,
	}
	if item.Document.Live() {
		id := item.Document.ID
		r.StoreID = &id
	}
	return r
}

func (p *Plugin) createRecord(resp *Response, action ActionType, item *StateItem, r *TrackingRecord) {
	if err := p.db.CreateTrackingRecords([]*TrackingRecord{r}); err != nil {
		resp.AddFailed(action, item, &ItemError{PootlePath: item.PootlePath, Op: "create", Err: err})
		return
	}
	item.Record = r
	resp.Add(action, item)
}

func (p *Plugin) updateRecord(resp *Response, action ActionType, item *StateItem, u TrackingUpdate) {
	if err := p.db.UpdateTrackingRecords([]int64{item.Record.ID}, u); err != nil {
		resp.AddFailed(action, item, &ItemError{PootlePath: item.PootlePath, Op: "update", Err: err})
		return
	}
	resp.Add(action, item)
}

func (p *Plugin) finish(resp *Response) (*Response, error) {
	if resp.MadeChanges() {
		if err := p.invalidate(); err != nil {
			return resp, err
		}
	}
	p.logger.Info("operation finished",
		"operation", resp.Operation,
		"project", p.project.Code,
		"completed", len(resp.Completed()),
		"failed", len(resp.Failed()),
	)
	return resp, nil
}

// Add starts tracking untracked files and stores. With force, pairs
// removed on one side are re-added with the other side authoritative.
func (p *Plugin) Add(ctx context.Context, force bool, f Filter) (*Response, error) {
	state, err := p.State(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := p.newResponse("add")

	for _, item := range state.Items(StateFSUntracked) {
		r := p.newRecord(item)
		r.ResolveConflict = ResolveFSWins
		p.createRecord(resp, ActionAddedFromFS, item, r)
	}
	for _, item := range state.Items(StatePootleUntracked) {
		r := p.newRecord(item)
		r.ResolveConflict = ResolvePootleWins
		p.createRecord(resp, ActionAddedFromPootle, item, r)
	}
	if force {
		pootleWins, fsWins := ResolvePootleWins, ResolveFSWins
		for _, item := range state.Items(StateFSRemoved) {
			p.updateRecord(resp, ActionAddedFromPootle, item, TrackingUpdate{ResolveConflict: &pootleWins})
		}
		for _, item := range state.Items(StatePootleRemoved) {
			p.updateRecord(resp, ActionAddedFromFS, item, TrackingUpdate{ResolveConflict: &fsWins})
		}
	}
	return p.finish(resp)
}

// Resolve sets the conflict resolution of conflicting pairs. With merge,
// the pairs are also staged for a three-way merge.
func (p *Plugin) Resolve(ctx context.Context, merge, pootleWins bool, f Filter) (*Response, error) {
	state, err := p.State(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := p.newResponse("resolve")

	resolve := ResolveFSWins
	action := ActionStagedForOverwriteFS
	switch {
	case merge && pootleWins:
		resolve, action = ResolvePootleWins, ActionStagedForMergePootle
	case merge:
		action = ActionStagedForMergeFS
	case pootleWins:
		resolve, action = ResolvePootleWins, ActionStagedForOverwritePootle
	}

	for _, item := range state.Items(StateConflict) {
		p.updateRecord(resp, action, item, TrackingUpdate{ResolveConflict: &resolve, StagedForMerge: &merge})
	}
	for _, item := range state.Items(StateConflictUntracked) {
		r := p.newRecord(item)
		r.ResolveConflict = resolve
		r.StagedForMerge = merge
		p.createRecord(resp, action, item, r)
	}
	return p.finish(resp)
}

// Rm stages pairs removed on either side for removal. With force,
// conflicting and untracked pairs are staged too.
func (p *Plugin) Rm(ctx context.Context, force bool, f Filter) (*Response, error) {
	state, err := p.State(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := p.newResponse("rm")

	staged := true
	update := TrackingUpdate{StagedForRemoval: &staged}
	for _, item := range state.Items(StatePootleRemoved, StateFSRemoved, StateBothRemoved) {
		p.updateRecord(resp, ActionStagedForRemoval, item, update)
	}
	if force {
		for _, item := range state.Items(StateConflict) {
			p.updateRecord(resp, ActionStagedForRemoval, item, update)
		}
		for _, item := range state.Items(StateConflictUntracked, StateFSUntracked, StatePootleUntracked) {
			r := p.newRecord(item)
			r.StagedForRemoval = true
			p.createRecord(resp, ActionStagedForRemoval, item, r)
		}
	}
	return p.finish(resp)
}

// Unstage reverts staged intents. Records that were never synced are
// deleted.
func (p *Plugin) Unstage(ctx context.Context, f Filter) (*Response, error) {
	state, err := p.State(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := p.newResponse("unstage")

	items := state.Items(StateRemove, StateMergeFSWins, StateMergePootleWins, StateFSStaged, StatePootleStaged)
	for _, item := range state.Items(StateFSAhead, StatePootleAhead) {
		if item.Record.ResolveConflict != ResolveNone {
			items = append(items, item)
		}
	}

	none, off := ResolveNone, false
	reset := TrackingUpdate{ResolveConflict: &none, StagedForMerge: &off, StagedForRemoval: &off}
	for _, item := range items {
		if item.Record.NeverSynced() {
			if err := p.db.DeleteTrackingRecords([]int64{item.Record.ID}); err != nil {
				resp.AddFailed(ActionUnstaged, item, &ItemError{PootlePath: item.PootlePath, Op: "delete", Err: err})
				continue
			}
			resp.Add(ActionUnstaged, item)
			continue
		}
		p.updateRecord(resp, ActionUnstaged, item, reset)
	}
	return p.finish(resp)
}

// Sync converges both sides: removals, merges, pulls, then pushes. The
// watermarks of every synced pair are committed in one batch before the
// transport publishes the result.
func (p *Plugin) Sync(ctx context.Context, f Filter) (*Response, error) {
	state, err := p.State(ctx, f)
	if err != nil {
		return nil, err
	}
	resp := p.newResponse("sync")

	p.syncRm(ctx, state, resp)
	p.syncMerge(ctx, state, resp)
	p.syncPull(ctx, state, resp)
	p.syncPush(ctx, state, resp)

	if err := p.commitWatermarks(resp); err != nil {
		return resp, err
	}
	if resp.Len() > 0 {
		if err := p.invalidate(); err != nil {
			return resp, err
		}
	}
	p.logger.Info("sync finished",
		"project", p.project.Code,
		"completed", len(resp.Completed()),
		"failed", len(resp.Failed()),
		"warnings", len(resp.Warnings()),
	)

	if resp.MadeChanges() {
		if err := p.transport.Push(ctx, resp); err != nil {
			return resp, &TransportError{Op: "push", Err: err}
		}
	}
	return resp, nil
}

func (p *Plugin) syncRm(ctx context.Context, state *State, resp *Response) {
	for _, item := range state.Items(StateRemove) {
		if err := p.File(item.Record).Delete(ctx); err != nil {
			p.logger.Error("remove failed", "pootle_path", item.PootlePath, "error", err)
			resp.AddFailed(ActionRemoved, item, &ItemError{PootlePath: item.PootlePath, Op: "remove", Err: err})
			continue
		}
		resp.Add(ActionRemoved, item)
	}
}

func (p *Plugin) syncMerge(ctx context.Context, state *State, resp *Response) {
	for _, item := range state.Items(StateMergeFSWins, StateMergePootleWins) {
		pootleWins := item.Type == StateMergePootleWins
		action := ActionMergedFromFS
		if pootleWins {
			action = ActionMergedFromPootle
		}

		file := p.File(item.Record)
		_, ok, err := file.Pull(ctx, PullOptions{Merge: true, PootleWins: &pootleWins})
		if err != nil {
			p.logger.Error("merge failed", "pootle_path", item.PootlePath, "error", err)
			resp.AddFailed(action, item, &ItemError{PootlePath: item.PootlePath, Op: "merge", Err: err})
			continue
		}
		if !ok {
			resp.AddWarning(action, item, ErrFileVanished.Error())
			continue
		}
		if _, err := file.push(ctx, true); err != nil {
			p.logger.Error("merge failed", "pootle_path", item.PootlePath, "error", err)
			resp.AddFailed(action, item, &ItemError{PootlePath: item.PootlePath, Op: "merge", Err: err})
			continue
		}
		resp.Add(action, item)
	}
}

func (p *Plugin) syncPull(ctx context.Context, state *State, resp *Response) {
	items := state.Items(StateFSStaged, StateFSAhead)
	if p.hooks.PrePull != nil {
		p.hooks.PrePull(items)
	}
	for _, item := range items {
		_, ok, err := p.File(item.Record).Pull(ctx, PullOptions{})
		if err != nil {
			p.logger.Error("pull failed", "pootle_path", item.PootlePath, "error", err)
			resp.AddFailed(ActionPulledToPootle, item, &ItemError{PootlePath: item.PootlePath, Op: "pull", Err: err})
			continue
		}
		if !ok {
			resp.AddWarning(ActionPulledToPootle, item, ErrFileVanished.Error())
			continue
		}
		resp.Add(ActionPulledToPootle, item)
	}
	if p.hooks.PostPull != nil {
		p.hooks.PostPull(resp)
	}
}

func (p *Plugin) syncPush(ctx context.Context, state *State, resp *Response) {
	items := state.Items(StatePootleStaged, StatePootleAhead)
	if p.hooks.PrePush != nil {
		p.hooks.PrePush(items)
	}
	for _, item := range items {
		if _, err := p.File(item.Record).Push(ctx); err != nil {
			p.logger.Error("push failed", "pootle_path", item.PootlePath, "error", err)
			resp.AddFailed(ActionPushedToFS, item, &ItemError{PootlePath: item.PootlePath, Op: "push", Err: err})
			continue
		}
		resp.Add(ActionPushedToFS, item)
	}
	if p.hooks.PostPush != nil {
		p.hooks.PostPush(resp)
	}
}

// commitWatermarks records the post-sync watermark of every pair that was
// pulled, pushed or merged. Pairs whose watermark cannot be read are
// marked failed and left untouched.
func (p *Plugin) commitWatermarks(resp *Response) error {
	var marks []*Watermark
	for _, a := range resp.Completed(ActionMergedFromFS, ActionMergedFromPootle, ActionPulledToPootle, ActionPushedToFS) {
		mark, err := p.File(a.Item.Record).OnSync()
		if err != nil {
			p.logger.Error("reading watermark failed", "pootle_path", a.PootlePath(), "error", err)
			a.Failed = true
			a.Err = &ItemError{PootlePath: a.PootlePath(), Op: "sync", Err: err}
			continue
		}
		marks = append(marks, mark)
	}
	if len(marks) == 0 {
		return nil
	}
	if err := p.db.CommitWatermarks(marks); err != nil {
		return fmt.Errorf("committing watermarks: %w", err)
	}
	return nil
}

// Fetch updates the working clone from the project's upstream location.
func (p *Plugin) Fetch(ctx context.Context) error {
	if err := p.transport.Fetch(ctx); err != nil {
		return &TransportError{Op: "fetch", Err: err}
	}
	p.mu.Lock()
	p.cache = make(map[string]*State)
	p.mu.Unlock()
	return nil
}

// Info summarizes the project's filesystem configuration and sync state.
type Info struct {
	Project   *Project
	LocalPath string
	Cloned    bool
	Snapshot  Snapshot
	Tracked   int
	Documents int
}

// Info reports the project's configuration and current tokens.
func (p *Plugin) Info() (*Info, error) {
	cloned, err := p.IsCloned()
	if err != nil {
		return nil, fmt.Errorf("checking working clone: %w", err)
	}
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	records, err := p.db.FindTrackingRecords(p.project.ID)
	if err != nil {
		return nil, fmt.Errorf("finding tracking records: %w", err)
	}
	docs, err := p.db.FindDocuments(p.project.ID)
	if err != nil {
		return nil, fmt.Errorf("finding documents: %w", err)
	}
	live := 0
	for _, d := range docs {
		if d.Live() {
			live++
		}
	}
	return &Info{
		Project:   p.project,
		LocalPath: p.localPath,
		Cloned:    cloned,
		Snapshot:  snap,
		Tracked:   len(records),
		Documents: live,
	}, nil
}
