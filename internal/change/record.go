// Package change classifies edits to recurring task series. Given a task's
// prior and proposed states it produces a ChangeRecord: the field-level
// diff, a severity classification, and an estimate of how many materialized
// instances the edit touches. The package is pure; callers persist the
// record as an audit row and decide whether to recompute schedule state.
package change

import (
	"time"

	"github.com/google/uuid"
)

// EditScope is the blast radius a user selects when editing a recurring
// series
type EditScope string

// Possible edit scope values
const (
	ScopeThisInstance  EditScope = "this_instance"
	ScopeThisAndFuture EditScope = "this_and_future"
	ScopeAllInstances  EditScope = "all_instances"
)

// Severity classifies how disruptive an edit is to a recurring series
type Severity string

// Severity values, ordered none < minor < major < breaking. Breaking is
// sticky: once set it is never downgraded.
const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityBreaking Severity = "breaking"
)

// ChangeKind tags what aspect of the task a field change belongs to
type ChangeKind string

// Possible change kinds
const (
	KindPatternField     ChangeKind = "pattern_field_change"
	KindPatternAddition  ChangeKind = "pattern_addition"
	KindDurationField    ChangeKind = "duration_field_change"
	KindDurationAddition ChangeKind = "duration_addition"
	KindTiming           ChangeKind = "timing_change"
	KindField            ChangeKind = "field_change"
)

// FieldChange records one field-level difference between the prior and
// proposed states.
type FieldChange struct {
	Field string     `json:"field"`
	Kind  ChangeKind `json:"kind"`
	Old   any        `json:"old,omitempty"`
	New   any        `json:"new,omitempty"`
}

// AffectedEstimate counts the instances an edit is expected to touch,
// split by when they occur relative to now.
type AffectedEstimate struct {
	Past    int `json:"past"`
	Present int `json:"present"`
	Future  int `json:"future"`
	Total   int `json:"total"`
}

// ChangeRecord is the tracker's output: the classified diff between a
// task's prior and proposed states.
type ChangeRecord struct {
	TaskID    uuid.UUID        `json:"task_id"`
	UserID    uuid.UUID        `json:"user_id"`
	EditScope EditScope        `json:"edit_scope"`
	Changes   []FieldChange    `json:"changes"`
	Severity  Severity         `json:"severity"`
	Affected  AffectedEstimate `json:"affected"`

	// OldVersion and NewVersion let the caller stamp the template task
	// and invalidate cached schedule state. NewVersion is always
	// OldVersion + 1.
	OldVersion int `json:"old_recurrence_version"`
	NewVersion int `json:"new_recurrence_version"`

	HasPatternChanges      bool `json:"has_pattern_changes"`
	HasDurationChanges     bool `json:"has_duration_changes"`
	HasTimingChanges       bool `json:"has_timing_changes"`
	HasNonRecurringChanges bool `json:"has_non_recurring_changes"`

	CreatedAt time.Time `json:"created_at"`
}

// RequiresRecomputation reports whether the change obliges the caller to
// eagerly recompute or replace the task's RecurringPattern row. The job
// processor trusts the persisted pattern's next-due value, so a caller that
// skips recomputation for a cosmetic edit loses nothing; the predicate
// makes that choice explicit.
func RequiresRecomputation(rec *ChangeRecord) bool {
	if rec == nil {
		return false
	}
	return rec.HasPatternChanges || rec.HasDurationChanges || rec.HasTimingChanges
}
