package pfs

import (
	"fmt"
	"sort"
	"strings"
)

// StateType names a classification bucket.
type StateType string

const (
	StateConflict          StateType = "conflict"
	StateConflictUntracked StateType = "conflict_untracked"
	StateRemove            StateType = "remove"
	StateMergeFSWins       StateType = "merge_fs_wins"
	StateMergePootleWins   StateType = "merge_pootle_wins"
	StatePootleUntracked   StateType = "pootle_untracked"
	StatePootleStaged      StateType = "pootle_staged"
	StatePootleRemoved     StateType = "pootle_removed"
	StatePootleAhead       StateType = "pootle_ahead"
	StateFSUntracked       StateType = "fs_untracked"
	StateFSStaged          StateType = "fs_staged"
	StateFSRemoved         StateType = "fs_removed"
	StateFSAhead           StateType = "fs_ahead"
	StateBothRemoved       StateType = "both_removed"
	StateUnchanged         StateType = "unchanged"
)

// StateInfo carries the display text of a bucket.
type StateInfo struct {
	Type        StateType
	Title       string
	Description string
}

// States lists every bucket in display order.
var States = []StateInfo{
	{StateConflict, "Conflicts",
		"Both Pootle Store and file in filesystem have changed"},
	{StateConflictUntracked, "Untracked conflicts",
		"Newly created files in the filesystem matching newly created Stores in Pootle"},
	{StateRemove, "Staged for removal",
		"Files or Stores that have been staged or removal on sync"},
	{StateMergeFSWins, "Staged for merge (FS Wins)",
		"Files or Stores that have been staged for merge with FS winning conflicts"},
	{StateMergePootleWins, "Staged for merge (Pootle Wins)",
		"Files or Stores that have been staged for merge with Pootle winning conflicts"},
	{StatePootleUntracked, "Untracked Stores",
		"Newly created Stores in Pootle"},
	{StatePootleStaged, "Staged for update from Pootle",
		"Files or Stores staged for update from Pootle"},
	{StatePootleRemoved, "Removed from Pootle",
		"Stores that have been removed from Pootle"},
	{StatePootleAhead, "Updated in Pootle",
		"Stores that have been updated in Pootle"},
	{StateFSUntracked, "Untracked files",
		"Newly created files in the filesystem"},
	{StateFSStaged, "Staged for update from filesystem",
		"Files or Stores staged for update from the filesystem"},
	{StateFSRemoved, "Removed from filesystem",
		"Files that have been removed from the filesystem"},
	{StateFSAhead, "Updated in filesystem",
		"A file has been updated in the filesystem"},
	{StateBothRemoved, "Removed from Pootle and filesystem",
		"Files or Stores that have been removed from both Pootle and the filesystem"},
	{StateUnchanged, "Unchanged",
		"Files and Stores that are in sync"},
}

// LookupState returns the display info for t.
func LookupState(t StateType) (StateInfo, bool) {
	for _, s := range States {
		if s.Type == t {
			return s, true
		}
	}
	return StateInfo{}, false
}

// ParseStateType validates a bucket name.
func ParseStateType(s string) (StateType, error) {
	if _, ok := LookupState(StateType(s)); !ok {
		return "", fmt.Errorf("unknown state type %q", s)
	}
	return StateType(s), nil
}

// StateItem is one classified pair. Record is nil for untracked items and
// Document is nil when no database document exists.
type StateItem struct {
	Type       StateType
	PootlePath string
	FSPath     string
	Record     *TrackingRecord
	Document   *Document
}

func (i *StateItem) String() string {
	return fmt.Sprintf("<StateItem(%s): %s <-> %s>", i.Type, i.PootlePath, i.FSPath)
}

// Snapshot identifies the inputs a classification was computed from.
type Snapshot struct {
	PootleRevision int64
	SyncRevision   int64
	FSRevision     string
}

// Filter restricts an operation to matching paths and bucket types.
type Filter struct {
	FSPaths     []string
	PootlePaths []string
	Types       []StateType
}

func (f Filter) key() string {
	types := make([]string, len(f.Types))
	for i, t := range f.Types {
		types[i] = string(t)
	}
	return strings.Join(f.FSPaths, "\x00") + "\x01" +
		strings.Join(f.PootlePaths, "\x00") + "\x01" +
		strings.Join(types, "\x00")
}

// State is the partition of a project's pairs into buckets.
type State struct {
	Snapshot Snapshot
	items    map[StateType][]*StateItem
}

func newState(snap Snapshot) *State {
	return &State{Snapshot: snap, items: make(map[StateType][]*StateItem)}
}

// NewState builds a State from already classified items.
func NewState(snap Snapshot, items ...*StateItem) *State {
	s := newState(snap)
	for _, item := range items {
		s.add(item)
	}
	s.sortItems()
	return s
}

func (s *State) add(item *StateItem) {
	s.items[item.Type] = append(s.items[item.Type], item)
}

func (s *State) sortItems() {
	for _, items := range s.items {
		sort.Slice(items, func(i, j int) bool { return items[i].PootlePath < items[j].PootlePath })
	}
}

// Items returns the items of the given buckets, in display order.
func (s *State) Items(types ...StateType) []*StateItem {
	var out []*StateItem
	for _, t := range types {
		out = append(out, s.items[t]...)
	}
	return out
}

// Has reports whether any of the given buckets is non-empty.
func (s *State) Has(types ...StateType) bool {
	for _, t := range types {
		if len(s.items[t]) > 0 {
			return true
		}
	}
	return false
}

// Len returns the number of classified items.
func (s *State) Len() int {
	n := 0
	for _, items := range s.items {
		n += len(items)
	}
	return n
}

// Types returns the non-empty buckets, in display order.
func (s *State) Types() []StateType {
	var types []StateType
	for _, info := range States {
		if len(s.items[info.Type]) > 0 {
			types = append(types, info.Type)
		}
	}
	return types
}

// Changed returns the number of items not in the unchanged bucket.
func (s *State) Changed() int {
	return s.Len() - len(s.items[StateUnchanged])
}

func (s *State) String() string {
	var parts []string
	for _, t := range s.Types() {
		parts = append(parts, fmt.Sprintf("%s: %d", t, len(s.items[t])))
	}
	return fmt.Sprintf("<State(%s)>", strings.Join(parts, ", "))
}

// classifyRecord decides the bucket of a tracked pair. fileHash is "" when
// the file is missing; doc is nil when no document exists.
func classifyRecord(r *TrackingRecord, doc *Document, fileHash string) StateType {
	if r.StagedForRemoval {
		return StateRemove
	}
	if r.StagedForMerge {
		if r.ResolveConflict == ResolvePootleWins {
			return StateMergePootleWins
		}
		return StateMergeFSWins
	}

	fileExists := fileHash != ""
	storeLive := doc.Live()
	if !fileExists && !storeLive {
		return StateBothRemoved
	}

	if !r.Synced() {
		switch {
		case !fileExists:
			return StatePootleStaged
		case !storeLive:
			return StateFSStaged
		case r.ResolveConflict == ResolvePootleWins:
			return StatePootleStaged
		default:
			return StateFSStaged
		}
	}

	if !fileExists {
		if r.ResolveConflict == ResolvePootleWins {
			return StatePootleStaged
		}
		return StateFSRemoved
	}
	if !storeLive {
		if r.ResolveConflict == ResolveFSWins {
			return StateFSStaged
		}
		return StatePootleRemoved
	}

	fsChanged := fileHash != *r.LastSyncHash
	pootleChanged := doc.MaxUnitRevision != *r.LastSyncRevision
	switch {
	case !fsChanged && !pootleChanged:
		return StateUnchanged
	case r.ResolveConflict == ResolvePootleWins:
		return StatePootleAhead
	case r.ResolveConflict == ResolveFSWins:
		return StateFSAhead
	case fsChanged && pootleChanged:
		return StateConflict
	case fsChanged:
		return StateFSAhead
	default:
		return StatePootleAhead
	}
}
