package pfs

// Database provides persistent storage for projects, tracking records,
// documents and the operation log.
//
// Find methods return (nil, nil) when nothing matches.
type Database interface {
	// Project operations
	CreateProject(p *Project) (*Project, error)
	FindProjectByCode(code string) (*Project, error)
	ListProjects() ([]*Project, error)
	// SyncRevision returns the project's sync revision token.
	SyncRevision(projectID int64) (int64, error)
	// BumpSyncRevision increments and returns the project's sync revision.
	BumpSyncRevision(projectID int64) (int64, error)

	// Tracking record operations
	FindTrackingRecords(projectID int64) ([]*TrackingRecord, error)
	FindTrackingRecordByPootlePath(projectID int64, pootlePath string) (*TrackingRecord, error)
	// CreateTrackingRecords inserts records in one transaction and fills in their IDs.
	CreateTrackingRecords(records []*TrackingRecord) error
	UpdateTrackingRecords(ids []int64, u TrackingUpdate) error
	DeleteTrackingRecords(ids []int64) error
	SetTrackingStore(recordID int64, documentID int64) error
	// CommitWatermarks stores the watermarks and clears resolve_conflict and
	// staged_for_merge for every record, in one transaction.
	CommitWatermarks(marks []*Watermark) error

	// Document operations
	// CurrentRevision returns the global unit revision counter.
	CurrentRevision() (int64, error)
	FindDocuments(projectID int64) ([]*Document, error)
	FindDocumentByID(id int64) (*Document, error)
	FindDocumentByPootlePath(pootlePath string) (*Document, error)
	// CreateDocument creates the document, or resurrects it when obsolete.
	CreateDocument(projectID int64, pootlePath string) (*Document, error)
	ObsoleteDocument(id int64) error
	// FindUnits returns every unit of the document, obsolete ones included,
	// ordered by index.
	FindUnits(documentID int64) ([]*Unit, error)
	// ApplyUnitChanges writes changes under one new global revision and
	// returns the document's max unit revision afterwards.
	ApplyUnitChanges(documentID int64, changes *UnitChanges) (int64, error)
	// SetUnitTarget edits the target of a single unit.
	SetUnitTarget(unitID int64, target string) (int64, error)

	// Operation log
	CreateSyncOperation(projectID int64, runID, operation string) (*SyncOperation, error)
	FinishSyncOperation(id int64, status string, actions []*ActionRecord) error
	ListSyncOperations(projectID int64, limit int) ([]*SyncOperation, error)
	FindSyncOperationByRunID(runID string) (*SyncOperation, error)
	FindSyncActions(operationID int64) ([]*ActionRecord, error)

	Close() error
}
