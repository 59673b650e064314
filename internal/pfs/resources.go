package pfs

import (
	"fmt"

	"pfs-go/internal/finder"
)

// resources gathers everything one classification needs.
type resources struct {
	records    []*TrackingRecord
	docsByID   map[int64]*Document
	docsByPath map[string]*Document
	found      map[string]string // fs path -> pootle path
	pairs      []finder.PathPair
}

func (p *Plugin) loadResources() (*resources, error) {
	records, err := p.db.FindTrackingRecords(p.project.ID)
	if err != nil {
		return nil, fmt.Errorf("finding tracking records: %w", err)
	}
	docs, err := p.db.FindDocuments(p.project.ID)
	if err != nil {
		return nil, fmt.Errorf("finding documents: %w", err)
	}
	pairs, err := p.matcher.Matches(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("scanning filesystem: %w", err)
	}

	res := &resources{
		records:    records,
		docsByID:   make(map[int64]*Document, len(docs)),
		docsByPath: make(map[string]*Document, len(docs)),
		found:      make(map[string]string, len(pairs)),
		pairs:      pairs,
	}
	for _, d := range docs {
		res.docsByID[d.ID] = d
		res.docsByPath[d.PootlePath] = d
	}
	for _, pair := range pairs {
		res.found[pair.FSPath] = pair.PootlePath
	}
	return res, nil
}

// document returns the document a record refers to: by store link first,
// then by pootle path.
func (res *resources) document(r *TrackingRecord) *Document {
	if r.StoreID != nil {
		if d, ok := res.docsByID[*r.StoreID]; ok {
			return d
		}
	}
	return res.docsByPath[r.PootlePath]
}

// computeState classifies every tracked, trackable and discovered pair.
func (p *Plugin) computeState(snap Snapshot, f Filter) (*State, error) {
	fsGlobs, err := finder.CompileGlobs(f.FSPaths)
	if err != nil {
		return nil, err
	}
	pootleGlobs, err := finder.CompileGlobs(f.PootlePaths)
	if err != nil {
		return nil, err
	}
	wanted := make(map[StateType]bool, len(f.Types))
	for _, t := range f.Types {
		wanted[t] = true
	}

	res, err := p.loadResources()
	if err != nil {
		return nil, err
	}

	state := newState(snap)
	add := func(item *StateItem) {
		if len(wanted) > 0 && !wanted[item.Type] {
			return
		}
		if !fsGlobs.Match(item.FSPath) || !pootleGlobs.Match(item.PootlePath) {
			return
		}
		state.add(item)
	}

	trackedFS := make(map[string]bool, len(res.records))
	trackedPootle := make(map[string]bool, len(res.records))
	linked := make(map[int64]bool, len(res.records))
	for _, r := range res.records {
		trackedFS[r.Path] = true
		trackedPootle[r.PootlePath] = true
		if r.StoreID != nil {
			linked[*r.StoreID] = true
		}

		doc := res.document(r)
		var hash string
		if _, ok := res.found[r.Path]; ok {
			hash, err = FileHash(p.fs, p.absPath(r.Path))
			if err != nil {
				return nil, err
			}
		}
		add(&StateItem{
			Type:       classifyRecord(r, doc, hash),
			PootlePath: r.PootlePath,
			FSPath:     r.Path,
			Record:     r,
			Document:   doc,
		})
	}

	trackableFS := make(map[string]bool)
	trackablePootle := make(map[string]bool)
	for _, doc := range res.docsByID {
		if !doc.Live() || linked[doc.ID] || trackedPootle[doc.PootlePath] {
			continue
		}
		fsPath, ok := p.matcher.FSPath(doc.PootlePath)
		if !ok || trackedFS[fsPath] {
			continue
		}
		trackableFS[fsPath] = true
		trackablePootle[doc.PootlePath] = true

		t := StatePootleUntracked
		if _, ok := res.found[fsPath]; ok {
			t = StateConflictUntracked
		}
		add(&StateItem{Type: t, PootlePath: doc.PootlePath, FSPath: fsPath, Document: doc})
	}

	for _, pair := range res.pairs {
		if trackedFS[pair.FSPath] || trackedPootle[pair.PootlePath] ||
			trackableFS[pair.FSPath] || trackablePootle[pair.PootlePath] {
			continue
		}
		add(&StateItem{
			Type:       StateFSUntracked,
			PootlePath: pair.PootlePath,
			FSPath:     pair.FSPath,
			Document:   res.docsByPath[pair.PootlePath],
		})
	}

	state.sortItems()
	return state, nil
}
