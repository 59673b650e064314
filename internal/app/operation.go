package app

import "pfs-go/internal/pfs"

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial" // some actions failed
	StatusError   = "error"
)

// Operation tracks a CLI command that may mutate a project.
// Operations are created in memory with ID=0. Only mutating commands
// persist them, giving them an auto-increment ID from the database.
type Operation struct {
	ID      int64
	RunID   string
	Name    string
	Status  string
	Actions []*pfs.ActionRecord
}

// NewOperation creates a new in-memory operation.
func NewOperation(name, runID string) *Operation {
	return &Operation{
		Name:   name,
		RunID:  runID,
		Status: StatusSuccess,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Record appends the actions of resp. A failed action downgrades the
// status to partial; an error status is never upgraded.
func (op *Operation) Record(resp *pfs.Response) {
	if resp == nil {
		return
	}
	op.Actions = append(op.Actions, resp.Records()...)
	if resp.HasFailed() && op.Status == StatusSuccess {
		op.Status = StatusPartial
	}
}

// Fail marks the operation as errored.
func (op *Operation) Fail() {
	op.Status = StatusError
}

// runIDs hands the operation's run ID to every response of the command,
// so persisted actions and displayed responses share one identifier.
type runIDs struct {
	id string
}

func (r runIDs) New() string { return r.id }
