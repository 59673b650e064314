package pfs

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/afero"
)

// PullOptions controls File.Pull.
type PullOptions struct {
	// Merge runs a three-way merge against the last synced revision
	// instead of overwriting the document.
	Merge bool
	// PootleWins overrides the record's resolution for conflicting units.
	// Nil uses the record's resolve_conflict, defaulting to the filesystem.
	PootleWins *bool
}

// File transfers one tracked pair between the filesystem and the database.
type File struct {
	plugin *Plugin
	record *TrackingRecord
}

// File returns the sync primitive for a tracking record.
func (p *Plugin) File(record *TrackingRecord) *File {
	return &File{plugin: p, record: record}
}

// Record returns the tracking record the file operates on.
func (f *File) Record() *TrackingRecord { return f.record }

// AbsPath returns the location of the file inside the working clone.
func (f *File) AbsPath() string {
	return f.plugin.absPath(f.record.Path)
}

// LatestHash returns the fingerprint of the file, or "" if it is missing.
func (f *File) LatestHash() (string, error) {
	return FileHash(f.plugin.fs, f.AbsPath())
}

// Document returns the database document of the pair, which may be
// obsolete, or nil.
func (f *File) Document() (*Document, error) {
	db := f.plugin.db
	if f.record.StoreID != nil {
		doc, err := db.FindDocumentByID(*f.record.StoreID)
		if err != nil {
			return nil, fmt.Errorf("finding document: %w", err)
		}
		if doc != nil {
			return doc, nil
		}
	}
	doc, err := db.FindDocumentByPootlePath(f.record.PootlePath)
	if err != nil {
		return nil, fmt.Errorf("finding document: %w", err)
	}
	return doc, nil
}

// FSChanged reports whether the file differs from the last synced state.
func (f *File) FSChanged() (bool, error) {
	hash, err := f.LatestHash()
	if err != nil {
		return false, err
	}
	return f.fsChanged(hash), nil
}

func (f *File) fsChanged(hash string) bool {
	return hash != "" && (f.record.LastSyncHash == nil || hash != *f.record.LastSyncHash)
}

// PootleChanged reports whether doc moved since the last synced revision.
func (f *File) PootleChanged(doc *Document) bool {
	return doc.Live() && (f.record.LastSyncRevision == nil || doc.MaxUnitRevision != *f.record.LastSyncRevision)
}

// Pull loads the file into the database document. The document is created
// and linked only once the file parsed. It returns the document's max unit
// revision, or ok=false when the file no longer exists.
func (f *File) Pull(ctx context.Context, opts PullOptions) (int64, bool, error) {
	p := f.plugin
	hash, err := f.LatestHash()
	if err != nil {
		return 0, false, err
	}
	if hash == "" {
		p.logger.Warn("file vanished before pull", "path", f.record.Path)
		return 0, false, nil
	}

	doc, err := f.Document()
	if err != nil {
		return 0, false, err
	}
	if doc.Live() && !opts.Merge && !f.fsChanged(hash) && f.record.ResolveConflict != ResolveFSWins {
		return doc.MaxUnitRevision, true, nil
	}

	data, err := afero.ReadFile(p.fs, f.AbsPath())
	if err != nil {
		if isNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reading file: %w", err)
	}
	codec, err := p.codecs.For(f.record.Path)
	if err != nil {
		return 0, false, err
	}
	incoming, err := codec.Parse(data)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s: %w", f.record.Path, err)
	}

	if !doc.Live() {
		doc, err = p.db.CreateDocument(p.project.ID, f.record.PootlePath)
		if err != nil {
			return 0, false, fmt.Errorf("creating document: %w", err)
		}
	}
	if f.record.StoreID == nil || *f.record.StoreID != doc.ID {
		if err := p.db.SetTrackingStore(f.record.ID, doc.ID); err != nil {
			return 0, false, fmt.Errorf("linking document: %w", err)
		}
		id := doc.ID
		f.record.StoreID = &id
	}
	current, err := p.db.FindUnits(doc.ID)
	if err != nil {
		return 0, false, fmt.Errorf("finding units: %w", err)
	}

	pootleWins := f.record.ResolveConflict == ResolvePootleWins
	if opts.PootleWins != nil {
		pootleWins = *opts.PootleWins
	}
	var baseline int64
	if opts.Merge {
		if f.record.LastSyncRevision != nil {
			baseline = *f.record.LastSyncRevision
		}
	} else {
		rev, err := p.db.CurrentRevision()
		if err != nil {
			return 0, false, fmt.Errorf("reading revision: %w", err)
		}
		baseline = rev + 1
	}

	changes := PlanUpdate(current, incoming, baseline, pootleWins)
	rev, err := p.db.ApplyUnitChanges(doc.ID, changes)
	if err != nil {
		return 0, false, fmt.Errorf("updating units: %w", err)
	}
	p.logger.Debug("pulled file",
		"pootle_path", f.record.PootlePath,
		"merge", opts.Merge,
		"added", len(changes.Add),
		"updated", len(changes.Update),
		"obsoleted", len(changes.Obsolete),
		"conflicts", changes.Conflicts,
		"revision", rev,
	)
	return rev, true, nil
}

// Push writes the database document to the file. It reports whether the
// file was written.
func (f *File) Push(ctx context.Context) (bool, error) {
	return f.push(ctx, false)
}

func (f *File) push(_ context.Context, force bool) (bool, error) {
	p := f.plugin
	doc, err := f.Document()
	if err != nil {
		return false, err
	}
	if !doc.Live() {
		return false, nil
	}
	exists, err := afero.Exists(p.fs, f.AbsPath())
	if err != nil {
		return false, fmt.Errorf("checking file: %w", err)
	}
	if !force && exists && !f.PootleChanged(doc) && f.record.ResolveConflict != ResolvePootleWins {
		return false, nil
	}

	units, err := p.db.FindUnits(doc.ID)
	if err != nil {
		return false, fmt.Errorf("finding units: %w", err)
	}
	live := make([]*Unit, 0, len(units))
	for _, u := range units {
		if !u.Obsolete {
			live = append(live, u)
		}
	}
	codec, err := p.codecs.For(f.record.Path)
	if err != nil {
		return false, err
	}
	data, err := codec.Serialize(live)
	if err != nil {
		return false, fmt.Errorf("serializing %s: %w", f.record.PootlePath, err)
	}

	if err := WriteFileAtomic(p.fs, f.AbsPath(), bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("writing file: %w", err)
	}
	p.logger.Debug("pushed document", "pootle_path", f.record.PootlePath, "units", len(live))
	return true, nil
}

// OnSync returns the watermark the pair reached by the sync that just
// completed.
func (f *File) OnSync() (*Watermark, error) {
	hash, err := f.LatestHash()
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, ErrFileVanished
	}
	doc, err := f.Document()
	if err != nil {
		return nil, err
	}
	if !doc.Live() {
		return nil, fmt.Errorf("document %s missing after sync", f.record.PootlePath)
	}
	return &Watermark{RecordID: f.record.ID, Hash: hash, Revision: doc.MaxUnitRevision}, nil
}

// Delete obsoletes the document, removes the file and forgets the pair.
func (f *File) Delete(ctx context.Context) error {
	p := f.plugin
	doc, err := f.Document()
	if err != nil {
		return err
	}
	if doc.Live() {
		if err := p.db.ObsoleteDocument(doc.ID); err != nil {
			return fmt.Errorf("obsoleting document: %w", err)
		}
	}
	if err := p.fs.Remove(f.AbsPath()); err != nil && !isNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}
	if err := p.db.DeleteTrackingRecords([]int64{f.record.ID}); err != nil {
		return fmt.Errorf("deleting tracking record: %w", err)
	}
	return nil
}
