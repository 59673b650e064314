package pfs

import (
	"path"
	"strings"
	"time"
)

// ResolveConflict is the sticky resolution policy an operator chose for a pair.
type ResolveConflict int

const (
	ResolveNone ResolveConflict = iota
	ResolvePootleWins
	ResolveFSWins
)

func (r ResolveConflict) String() string {
	switch r {
	case ResolvePootleWins:
		return "pootle_wins"
	case ResolveFSWins:
		return "fs_wins"
	default:
		return "none"
	}
}

// Project holds the per-project filesystem configuration.
type Project struct {
	ID                 int64
	Code               string
	FSType             string
	FSURL              string
	TranslationMapping string
	ExcludedLanguages  []string
	// LangMapping maps upstream (filesystem) language codes to pootle codes.
	LangMapping map[string]string
	CreatedAt   time.Time
}

// TrackingRecord pairs a database document with a filesystem path and
// carries the watermarks of the last successful sync.
type TrackingRecord struct {
	ID               int64
	ProjectID        int64
	PootlePath       string
	Path             string
	StoreID          *int64
	LastSyncRevision *int64
	LastSyncHash     *string
	StagedForRemoval bool
	StagedForMerge   bool
	ResolveConflict  ResolveConflict
}

// Synced reports whether both watermarks are recorded and no operator
// intent is pending.
func (r *TrackingRecord) Synced() bool {
	return r.LastSyncRevision != nil && r.LastSyncHash != nil &&
		!r.StagedForMerge && !r.StagedForRemoval
}

// NeverSynced reports whether no watermark was ever recorded.
func (r *TrackingRecord) NeverSynced() bool {
	return r.LastSyncRevision == nil && r.LastSyncHash == nil
}

// TrackingUpdate describes a partial update of tracking record intents.
// Nil fields are left untouched.
type TrackingUpdate struct {
	ResolveConflict  *ResolveConflict
	StagedForMerge   *bool
	StagedForRemoval *bool
}

// Watermark is the post-sync state committed for one record.
type Watermark struct {
	RecordID int64
	Hash     string
	Revision int64
}

// Document is the database side of a translation file.
type Document struct {
	ID              int64
	ProjectID       int64
	PootlePath      string
	Obsolete        bool
	MaxUnitRevision int64
	CreatedAt       time.Time
}

// Live reports whether d exists and is not soft-deleted.
func (d *Document) Live() bool {
	return d != nil && !d.Obsolete
}

// LanguageCode returns the first segment of the document's pootle path.
func (d *Document) LanguageCode() string {
	return LanguageFromPootlePath(d.PootlePath)
}

// Unit is a single translatable entry of a document.
type Unit struct {
	ID       int64
	UnitID   string
	Context  string
	Source   string
	Target   string
	Comment  string
	Index    int
	Revision int64
	Obsolete bool
}

// MakeUnitID builds the identity key of a unit from its context and source.
func MakeUnitID(context, source string) string {
	if context == "" {
		return source
	}
	return context + "\x04" + source
}

// SameContent reports whether two units carry the same translatable fields.
func (u *Unit) SameContent(o *Unit) bool {
	return u.Source == o.Source && u.Target == o.Target && u.Comment == o.Comment
}

// SyncOperation is a persisted record of one mutating command.
type SyncOperation struct {
	ID         int64
	ProjectID  int64
	RunID      string
	Operation  string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// ActionRecord is one persisted entry of an operation's action log.
type ActionRecord struct {
	OperationID int64
	Action      ActionType
	PootlePath  string
	FSPath      string
	Failed      bool
	Error       string
	Warning     string
}

// LanguageFromPootlePath returns the language code of a pootle path
// shaped /<lang>/<project>/...
func LanguageFromPootlePath(pootlePath string) string {
	parts := strings.SplitN(strings.TrimPrefix(pootlePath, "/"), "/", 2)
	return parts[0]
}

// ExtensionOf returns the extension of p without the leading dot.
func ExtensionOf(p string) string {
	return strings.TrimPrefix(path.Ext(p), ".")
}
