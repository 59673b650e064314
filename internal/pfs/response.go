package pfs

import (
	"fmt"
	"strings"
)

// ActionType names an action recorded in a Response.
type ActionType string

const (
	ActionAddedFromFS              ActionType = "added_from_fs"
	ActionAddedFromPootle          ActionType = "added_from_pootle"
	ActionStagedForRemoval         ActionType = "staged_for_removal"
	ActionStagedForMergeFS         ActionType = "staged_for_merge_fs"
	ActionStagedForMergePootle     ActionType = "staged_for_merge_pootle"
	ActionStagedForOverwriteFS     ActionType = "staged_for_overwrite_fs"
	ActionStagedForOverwritePootle ActionType = "staged_for_overwrite_pootle"
	ActionUnstaged                 ActionType = "unstaged"
	ActionRemoved                  ActionType = "removed"
	ActionMergedFromFS             ActionType = "merged_from_fs"
	ActionMergedFromPootle         ActionType = "merged_from_pootle"
	ActionPulledToPootle           ActionType = "pulled_to_pootle"
	ActionPushedToFS               ActionType = "pushed_to_fs"
)

// ActionInfo carries the display text of an action type.
type ActionInfo struct {
	Type        ActionType
	Title       string
	Description string
}

// Actions lists every action type in display order.
var Actions = []ActionInfo{
	{ActionAddedFromFS, "Added from filesystem",
		"Files staged from the filesystem to be added to Pootle"},
	{ActionAddedFromPootle, "Added from Pootle",
		"Stores staged from Pootle to be added to the filesystem"},
	{ActionStagedForRemoval, "Staged for removal",
		"Files or Stores staged for removal"},
	{ActionStagedForMergeFS, "Staged for merge (FS wins)",
		"Files or Stores staged for merge where the filesystem wins conflicting units"},
	{ActionStagedForMergePootle, "Staged for merge (Pootle wins)",
		"Files or Stores staged for merge where Pootle wins conflicting units"},
	{ActionStagedForOverwriteFS, "Staged for overwrite from filesystem",
		"Stores staged to be overwritten by their filesystem file"},
	{ActionStagedForOverwritePootle, "Staged for overwrite from Pootle",
		"Files staged to be overwritten by their Pootle Store"},
	{ActionUnstaged, "Unstaged",
		"Files or Stores that have been unstaged"},
	{ActionRemoved, "Removed",
		"Files and Stores that have been removed"},
	{ActionMergedFromFS, "Merged from filesystem",
		"Merged units from the filesystem, with the filesystem winning conflicts"},
	{ActionMergedFromPootle, "Merged from Pootle",
		"Merged units from the filesystem, with Pootle winning conflicts"},
	{ActionPulledToPootle, "Pulled to Pootle",
		"Stores updated where the filesystem version was new or newer"},
	{ActionPushedToFS, "Pushed to filesystem",
		"Files updated where the Pootle Store version was new or newer"},
}

// LookupAction returns the display info for t.
func LookupAction(t ActionType) (ActionInfo, bool) {
	for _, a := range Actions {
		if a.Type == t {
			return a, true
		}
	}
	return ActionInfo{}, false
}

// ActionItem is one entry of the action log.
type ActionItem struct {
	Action  ActionType
	Item    *StateItem
	Failed  bool
	Err     error
	Warning string
}

// PootlePath returns the pootle path of the item acted on.
func (a *ActionItem) PootlePath() string { return a.Item.PootlePath }

// FSPath returns the filesystem path of the item acted on.
func (a *ActionItem) FSPath() string { return a.Item.FSPath }

// Response is the append-only action log of one orchestrator call.
type Response struct {
	Operation string
	RunID     string
	items     map[ActionType][]*ActionItem
}

// NewResponse creates an empty response for the named operation.
func NewResponse(operation, runID string) *Response {
	return &Response{
		Operation: operation,
		RunID:     runID,
		items:     make(map[ActionType][]*ActionItem),
	}
}

// Add records a completed action.
func (r *Response) Add(action ActionType, item *StateItem) *ActionItem {
	a := &ActionItem{Action: action, Item: item}
	r.items[action] = append(r.items[action], a)
	return a
}

// AddFailed records a failed action together with its error.
func (r *Response) AddFailed(action ActionType, item *StateItem, err error) *ActionItem {
	a := &ActionItem{Action: action, Item: item, Failed: true, Err: err}
	r.items[action] = append(r.items[action], a)
	return a
}

// AddWarning records an action that was skipped for an expected reason.
// It is neither completed nor failed.
func (r *Response) AddWarning(action ActionType, item *StateItem, msg string) *ActionItem {
	a := &ActionItem{Action: action, Item: item, Warning: msg}
	r.items[action] = append(r.items[action], a)
	return a
}

// Items returns every entry recorded for action.
func (r *Response) Items(action ActionType) []*ActionItem {
	return r.items[action]
}

// Completed returns the successful entries for the given actions, or for
// all actions when none are given.
func (r *Response) Completed(actions ...ActionType) []*ActionItem {
	return r.filter(actions, func(a *ActionItem) bool { return !a.Failed && a.Warning == "" })
}

// Failed returns the failed entries for the given actions, or for all
// actions when none are given.
func (r *Response) Failed(actions ...ActionType) []*ActionItem {
	return r.filter(actions, func(a *ActionItem) bool { return a.Failed })
}

// Warnings returns the entries skipped with a warning.
func (r *Response) Warnings() []*ActionItem {
	return r.filter(nil, func(a *ActionItem) bool { return a.Warning != "" })
}

// MadeChanges reports whether at least one action completed.
func (r *Response) MadeChanges() bool {
	return len(r.Completed()) > 0
}

// HasFailed reports whether at least one action failed.
func (r *Response) HasFailed() bool {
	return len(r.Failed()) > 0
}

// Len returns the total number of entries.
func (r *Response) Len() int {
	n := 0
	for _, items := range r.items {
		n += len(items)
	}
	return n
}

// ActionTypes returns the action types present, in display order.
func (r *Response) ActionTypes() []ActionType {
	var types []ActionType
	for _, a := range Actions {
		if len(r.items[a.Type]) > 0 {
			types = append(types, a.Type)
		}
	}
	return types
}

// Records flattens the response into persistable action records.
func (r *Response) Records() []*ActionRecord {
	var records []*ActionRecord
	for _, t := range r.ActionTypes() {
		for _, a := range r.items[t] {
			rec := &ActionRecord{
				Action:     a.Action,
				PootlePath: a.PootlePath(),
				FSPath:     a.FSPath(),
				Failed:     a.Failed,
				Warning:    a.Warning,
			}
			if a.Err != nil {
				rec.Error = a.Err.Error()
			}
			records = append(records, rec)
		}
	}
	return records
}

func (r *Response) filter(actions []ActionType, keep func(*ActionItem) bool) []*ActionItem {
	if len(actions) == 0 {
		actions = r.ActionTypes()
	}
	var out []*ActionItem
	for _, t := range actions {
		for _, a := range r.items[t] {
			if keep(a) {
				out = append(out, a)
			}
		}
	}
	return out
}

func (r *Response) String() string {
	var parts []string
	for _, t := range r.ActionTypes() {
		parts = append(parts, fmt.Sprintf("%s: %d", t, len(r.items[t])))
	}
	return fmt.Sprintf("<Response %s(%s)>", r.Operation, strings.Join(parts, ", "))
}
