// Package errors provides structured error types for trellis.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for trellis.
const (
	// Initialization errors
	CodeNotInitialized     Code = "TRELLIS_NOT_INITIALIZED"
	CodeAlreadyInitialized Code = "TRELLIS_ALREADY_INITIALIZED"

	// Task errors
	CodeTaskNotFound    Code = "TASK_NOT_FOUND"
	CodeTaskInvalid     Code = "TASK_INVALID"
	CodeTaskHasChildren Code = "TASK_HAS_CHILDREN"
	CodeParentNotFound  Code = "PARENT_NOT_FOUND"

	// Hierarchy errors
	CodePhaseSlotTaken   Code = "PHASE_SLOT_TAKEN"
	CodePhaseSlotInvalid Code = "PHASE_SLOT_INVALID"
	CodeTrackInvalid     Code = "TRACK_INVALID"
	CodeTrackUnknown     Code = "TRACK_UNKNOWN"

	// Lookup errors
	CodeProjectNotFound   Code = "PROJECT_NOT_FOUND"
	CodeWorkspaceNotFound Code = "WORKSPACE_NOT_FOUND"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"

	// Database errors
	CodeDBOpenFailed    Code = "DB_OPEN_FAILED"
	CodeMigrationFailed Code = "MIGRATION_FAILED"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryTimeout
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeNotInitialized:     CategoryBadRequest,
	CodeAlreadyInitialized: CategoryConflict,
	CodeTaskNotFound:       CategoryNotFound,
	CodeTaskInvalid:        CategoryBadRequest,
	CodeTaskHasChildren:    CategoryConflict,
	CodeParentNotFound:     CategoryNotFound,
	CodePhaseSlotTaken:     CategoryConflict,
	CodePhaseSlotInvalid:   CategoryBadRequest,
	CodeTrackInvalid:       CategoryBadRequest,
	CodeTrackUnknown:       CategoryNotFound,
	CodeProjectNotFound:    CategoryNotFound,
	CodeWorkspaceNotFound:  CategoryNotFound,
	CodeConfigInvalid:      CategoryBadRequest,
	CodeConfigMissing:      CategoryBadRequest,
	CodeDBOpenFailed:       CategoryInternal,
	CodeMigrationFailed:    CategoryInternal,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryTimeout:
		return 504
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// TrellisError is the structured error type for trellis.
type TrellisError struct {
	Code    Code   `json:"code"`
	What    string `json:"what"`
	Why     string `json:"why,omitempty"`
	Fix     string `json:"fix,omitempty"`
	DocsURL string `json:"docs_url,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *TrellisError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *TrellisError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *TrellisError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	if e.DocsURL != "" {
		b.WriteString("\n\nDocs: ")
		b.WriteString(e.DocsURL)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *TrellisError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *TrellisError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *TrellisError) MarshalJSON() ([]byte, error) {
	type alias TrellisError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a TrellisError with the same code.
func (e *TrellisError) Is(target error) bool {
	t, ok := target.(*TrellisError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *TrellisError) WithCause(err error) *TrellisError {
	return &TrellisError{
		Code:    e.Code,
		What:    e.What,
		Why:     e.Why,
		Fix:     e.Fix,
		DocsURL: e.DocsURL,
		Cause:   err,
	}
}

// --- Error constructors ---

// ErrNotInitialized returns an error for an uninitialized directory.
func ErrNotInitialized() *TrellisError {
	return &TrellisError{
		Code:    CodeNotInitialized,
		What:    "trellis is not initialized in this directory",
		Why:     "No .trellis/ directory found in the current path",
		Fix:     "Run 'trellis init' to initialize trellis in this directory",
		DocsURL: "https://github.com/chartwell/trellis#quick-start",
	}
}

// ErrAlreadyInitialized returns an error when trellis is already initialized.
func ErrAlreadyInitialized(path string) *TrellisError {
	return &TrellisError{
		Code:    CodeAlreadyInitialized,
		What:    "trellis is already initialized",
		Why:     fmt.Sprintf("Found existing .trellis/ directory at %s", path),
		Fix:     "Remove .trellis/ manually if you want to start over",
		DocsURL: "https://github.com/chartwell/trellis#initialization",
	}
}

// ErrTaskNotFound returns an error when a task doesn't exist.
func ErrTaskNotFound(id string) *TrellisError {
	return &TrellisError{
		Code:    CodeTaskNotFound,
		What:    fmt.Sprintf("task %s not found", id),
		Why:     "No task with this ID exists in the current project",
		Fix:     "Run 'trellis list' to see available tasks, or create one with 'trellis new'",
		DocsURL: "https://github.com/chartwell/trellis#tasks",
	}
}

// ErrTaskInvalid returns an error for a malformed task request.
func ErrTaskInvalid(reason string) *TrellisError {
	return &TrellisError{
		Code:    CodeTaskInvalid,
		What:    "invalid task",
		Why:     reason,
		Fix:     "Correct the request and retry",
		DocsURL: "https://github.com/chartwell/trellis#tasks",
	}
}

// ErrTaskHasChildren returns an error when deleting a parent with live children.
func ErrTaskHasChildren(id string, count int) *TrellisError {
	return &TrellisError{
		Code:    CodeTaskHasChildren,
		What:    fmt.Sprintf("task %s still has %d child task(s)", id, count),
		Why:     "Deleting a parent would orphan its phase children",
		Fix:     fmt.Sprintf("Delete the children first, or run 'trellis delete %s --force'", id),
		DocsURL: "https://github.com/chartwell/trellis#hierarchy",
	}
}

// ErrParentNotFound returns an error when a referenced parent task doesn't exist.
func ErrParentNotFound(id string) *TrellisError {
	return &TrellisError{
		Code:    CodeParentNotFound,
		What:    fmt.Sprintf("parent task %s not found", id),
		Why:     "The parent_task_id in the request does not match any task",
		Fix:     "Check the parent ID with 'trellis list', or create the task without a parent",
		DocsURL: "https://github.com/chartwell/trellis#hierarchy",
	}
}

// ErrPhaseSlotTaken returns an error when a (parent, phase) slot is occupied.
func ErrPhaseSlotTaken(parentID, phaseKey string) *TrellisError {
	return &TrellisError{
		Code:    CodePhaseSlotTaken,
		What:    fmt.Sprintf("phase slot %q under task %s is already occupied", phaseKey, parentID),
		Why:     "Each parent task can hold at most one child per phase",
		Fix:     fmt.Sprintf("Show the existing child with 'trellis tree %s'", parentID),
		DocsURL: "https://github.com/chartwell/trellis#phases",
	}
}

// ErrPhaseSlotInvalid returns an error when only half of a phase slot is set.
func ErrPhaseSlotInvalid() *TrellisError {
	return &TrellisError{
		Code:    CodePhaseSlotInvalid,
		What:    "parent_task_id and phase_key must be set together",
		Why:     "A phase child needs both a parent and a phase slot; other tasks need neither",
		Fix:     "Provide both fields, or omit both",
		DocsURL: "https://github.com/chartwell/trellis#phases",
	}
}

// ErrTrackInvalid returns an error for an unrecognized track value.
func ErrTrackInvalid(track string) *TrellisError {
	return &TrellisError{
		Code:    CodeTrackInvalid,
		What:    fmt.Sprintf("unknown track %q", track),
		Why:     "Track must be one of the configured tracks",
		Fix:     "Run 'trellis tracks' to list available tracks",
		DocsURL: "https://github.com/chartwell/trellis#tracks",
	}
}

// ErrTrackUnknown returns an error when no catalog defines the track.
func ErrTrackUnknown(track string) *TrellisError {
	return &TrellisError{
		Code:    CodeTrackUnknown,
		What:    fmt.Sprintf("no phase catalog for track %q", track),
		Why:     "Neither the built-in catalogs nor .trellis/tracks/ define this track",
		Fix:     "Add a track definition under .trellis/tracks/ or use a built-in track",
		DocsURL: "https://github.com/chartwell/trellis#tracks",
	}
}

// ErrProjectNotFound returns an error when a project doesn't exist.
func ErrProjectNotFound(id string) *TrellisError {
	return &TrellisError{
		Code:    CodeProjectNotFound,
		What:    fmt.Sprintf("project %s not found", id),
		Why:     "No project with this ID exists",
		Fix:     "List projects with 'trellis projects' or create one first",
		DocsURL: "https://github.com/chartwell/trellis#projects",
	}
}

// ErrWorkspaceNotFound returns an error when a workspace doesn't exist.
func ErrWorkspaceNotFound(id string) *TrellisError {
	return &TrellisError{
		Code:    CodeWorkspaceNotFound,
		What:    fmt.Sprintf("workspace %s not found", id),
		Why:     "No workspace with this ID exists in the current project",
		Fix:     "Check the workspace ID, or create one with the workspaces API",
		DocsURL: "https://github.com/chartwell/trellis#workspaces",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *TrellisError {
	return &TrellisError{
		Code:    CodeConfigInvalid,
		What:    fmt.Sprintf("invalid configuration: %s", field),
		Why:     reason,
		Fix:     "Check .trellis/config.yaml and fix the invalid field",
		DocsURL: "https://github.com/chartwell/trellis#configuration",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field string) *TrellisError {
	return &TrellisError{
		Code:    CodeConfigMissing,
		What:    fmt.Sprintf("missing required configuration: %s", field),
		Why:     "This field is required but not set in configuration",
		Fix:     fmt.Sprintf("Add '%s' to .trellis/config.yaml", field),
		DocsURL: "https://github.com/chartwell/trellis#configuration",
	}
}

// ErrDBOpenFailed returns an error when the database cannot be opened.
func ErrDBOpenFailed(dsn string, cause error) *TrellisError {
	return &TrellisError{
		Code:    CodeDBOpenFailed,
		What:    fmt.Sprintf("cannot open database %s", dsn),
		Why:     "The database file or server is not reachable",
		Fix:     "Check the database path/DSN and permissions",
		DocsURL: "https://github.com/chartwell/trellis#storage",
		Cause:   cause,
	}
}

// ErrMigrationFailed returns an error when schema migration fails.
// Migration failures are not retried; the schema and the version
// ledger must be reconciled by hand.
func ErrMigrationFailed(cause error) *TrellisError {
	return &TrellisError{
		Code:    CodeMigrationFailed,
		What:    "database migration failed",
		Why:     "A schema migration did not apply cleanly",
		Fix:     "Inspect the _migrations table and the error below; restore from backup if needed",
		DocsURL: "https://github.com/chartwell/trellis#storage",
		Cause:   cause,
	}
}

// AsTrellisError attempts to convert an error to a TrellisError.
// Returns nil if the error is not a TrellisError.
func AsTrellisError(err error) *TrellisError {
	var terr *TrellisError
	if As(err, &terr) {
		return terr
	}
	return nil
}

// As is a convenience wrapper for errors.As.
func As(err error, target any) bool {
	return asError(err, target)
}

// asError implements errors.As behavior, including joined errors.
func asError(err error, target any) bool {
	if err == nil {
		return false
	}
	if terr, ok := err.(*TrellisError); ok {
		if t, ok := target.(**TrellisError); ok {
			*t = terr
			return true
		}
	}
	// Check unwrapped error
	switch unwrapper := err.(type) {
	case interface{ Unwrap() error }:
		return asError(unwrapper.Unwrap(), target)
	case interface{ Unwrap() []error }:
		for _, e := range unwrapper.Unwrap() {
			if asError(e, target) {
				return true
			}
		}
	}
	return false
}

// Wrap wraps a generic error into a TrellisError with unknown code.
func Wrap(err error, what string) *TrellisError {
	return &TrellisError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
