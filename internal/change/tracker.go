package change

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence/internal/domain"
	"github.com/phrazzld/cadence/internal/domain/recurrence"
)

// Estimation constants. The fixed placeholders are deliberate conservative
// approximations: counting true historical instances needs a query this
// package does not perform, and recomputing the future sequence is reserved
// for changes that actually alter it.
const (
	// estimationHorizon is how far forward the occurrence walk looks when
	// a pattern or duration level change warrants a real count.
	estimationHorizon = 1 // years

	// estimationWalkLimit bounds the occurrence walk.
	estimationWalkLimit = 500

	// minorFuturePlaceholder stands in for the future count when the
	// change cannot alter the occurrence sequence.
	minorFuturePlaceholder = 10

	// allInstancesPastPlaceholder and allInstancesFuturePlaceholder stand
	// in for the historical and upcoming counts of an all-instances edit.
	allInstancesPastPlaceholder   = 5
	allInstancesFuturePlaceholder = 20
)

// Common tracker errors
var (
	ErrEmptyTrackTaskID = errors.New("track input task ID cannot be empty")
	ErrEmptyTrackUserID = errors.New("track input user ID cannot be empty")
	ErrInvalidEditScope = errors.New("invalid edit scope")
)

// TaskState is the slice of a task the tracker compares: its recurrence
// configuration, duration span, timing, and the plain fields whose changes
// are recorded but never affect severity.
type TaskState struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	CategoryID  *uuid.UUID
	AssigneeIDs []uuid.UUID
	StartDate   *time.Time
	Rule        *recurrence.Rule
	Span        *domain.Duration
}

// TrackInput carries everything Track needs. Now anchors the affected
// estimate; Breaking is the explicit escalation a caller applies when the
// edit is known to invalidate existing instances outright.
type TrackInput struct {
	TaskID     uuid.UUID
	UserID     uuid.UUID
	EditScope  EditScope
	Old        TaskState
	New        TaskState
	OldVersion int
	Breaking   bool
	Now        time.Time
}

// Track compares the task's prior state to a proposed update and produces
// a ChangeRecord. It is a pure function of its input: the severity is
// re-derived from the change list on every call and never observes a value
// lower than what that list implies.
func Track(input TrackInput) (*ChangeRecord, error) {
	if input.TaskID == uuid.Nil {
		return nil, ErrEmptyTrackTaskID
	}
	if input.UserID == uuid.Nil {
		return nil, ErrEmptyTrackUserID
	}
	switch input.EditScope {
	case ScopeThisInstance, ScopeThisAndFuture, ScopeAllInstances:
	default:
		return nil, ErrInvalidEditScope
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec := &ChangeRecord{
		TaskID:     input.TaskID,
		UserID:     input.UserID,
		EditScope:  input.EditScope,
		OldVersion: input.OldVersion,
		NewVersion: input.OldVersion + 1,
		CreatedAt:  now,
	}

	comparePattern(rec, input.Old.Rule, input.New.Rule)
	compareDuration(rec, input.Old.Span, input.New.Span)
	compareTiming(rec, input.Old.StartDate, input.New.StartDate)
	compareNonRecurring(rec, input.Old, input.New)

	rec.Severity = resolveSeverity(rec, input.Breaking)
	rec.Affected = estimateAffected(rec, input.New, now)

	return rec, nil
}

// comparePattern diffs the recurrence configuration field by field. A rule
// appearing where none existed is a pattern addition; array fields compare
// element-wise and order-sensitively.
func comparePattern(rec *ChangeRecord, old, new *recurrence.Rule) {
	switch {
	case old == nil && new == nil:
		return

	case old == nil:
		rec.HasPatternChanges = true
		rec.Changes = append(rec.Changes, FieldChange{
			Field: "recurrence",
			Kind:  KindPatternAddition,
			New:   new.String(),
		})
		return

	case new == nil:
		rec.HasPatternChanges = true
		rec.Changes = append(rec.Changes, FieldChange{
			Field: "recurrence",
			Kind:  KindPatternField,
			Old:   old.String(),
		})
		return
	}

	record := func(field string, oldVal, newVal any) {
		rec.HasPatternChanges = true
		rec.Changes = append(rec.Changes, FieldChange{
			Field: field,
			Kind:  KindPatternField,
			Old:   oldVal,
			New:   newVal,
		})
	}

	if old.Freq != new.Freq {
		record("frequency", old.Freq, new.Freq)
	}
	if old.Interval != new.Interval {
		record("interval", old.Interval, new.Interval)
	}
	if !slices.Equal(old.DaysOfWeek, new.DaysOfWeek) {
		record("daysOfWeek", old.DaysOfWeek, new.DaysOfWeek)
	}
	if old.DayOfMonth != new.DayOfMonth {
		record("dayOfMonth", old.DayOfMonth, new.DayOfMonth)
	}
	if oldUntil, newUntil := endUntil(old.End), endUntil(new.End); !oldUntil.Equal(newUntil) {
		record("endDate", oldUntil, newUntil)
	}
	if oldCount, newCount := endCount(old.End), endCount(new.End); oldCount != newCount {
		record("endOccurrences", oldCount, newCount)
	}
	if old.Timezone != new.Timezone {
		record("timezone", old.Timezone, new.Timezone)
	}
}

// compareDuration diffs the task span field by field, treating a missing
// duration as all zeros. A span appearing where none existed is a duration
// addition.
func compareDuration(rec *ChangeRecord, old, new *domain.Duration) {
	if old == nil && new == nil {
		return
	}

	if old == nil && new != nil && !new.IsZero() {
		rec.HasDurationChanges = true
		rec.Changes = append(rec.Changes, FieldChange{
			Field: "duration",
			Kind:  KindDurationAddition,
			New:   *new,
		})
		return
	}

	oldVal, newVal := domain.Duration{}, domain.Duration{}
	if old != nil {
		oldVal = *old
	}
	if new != nil {
		newVal = *new
	}

	record := func(field string, o, n int) {
		if o == n {
			return
		}
		rec.HasDurationChanges = true
		rec.Changes = append(rec.Changes, FieldChange{
			Field: field,
			Kind:  KindDurationField,
			Old:   o,
			New:   n,
		})
	}

	record("years", oldVal.Years, newVal.Years)
	record("months", oldVal.Months, newVal.Months)
	record("days", oldVal.Days, newVal.Days)
	record("hours", oldVal.Hours, newVal.Hours)
	record("minutes", oldVal.Minutes, newVal.Minutes)
}

// compareTiming diffs the start date by timestamp value, not identity.
func compareTiming(rec *ChangeRecord, old, new *time.Time) {
	oldSet, newSet := old != nil, new != nil
	if !oldSet && !newSet {
		return
	}
	if oldSet && newSet && old.Equal(*new) {
		return
	}

	rec.HasTimingChanges = true
	fc := FieldChange{Field: "startDate", Kind: KindTiming}
	if oldSet {
		fc.Old = *old
	}
	if newSet {
		fc.New = *new
	}
	rec.Changes = append(rec.Changes, fc)
}

// compareNonRecurring diffs the plain task fields. These are recorded for
// the audit trail but never influence severity.
func compareNonRecurring(rec *ChangeRecord, old, new TaskState) {
	record := func(field string, o, n any) {
		rec.HasNonRecurringChanges = true
		rec.Changes = append(rec.Changes, FieldChange{
			Field: field,
			Kind:  KindField,
			Old:   o,
			New:   n,
		})
	}

	if old.Title != new.Title {
		record("title", old.Title, new.Title)
	}
	if old.Description != new.Description {
		record("description", old.Description, new.Description)
	}
	if old.Priority != new.Priority {
		record("priority", old.Priority, new.Priority)
	}
	if old.Status != new.Status {
		record("status", old.Status, new.Status)
	}
	if !uuidPtrEqual(old.CategoryID, new.CategoryID) {
		record("category", old.CategoryID, new.CategoryID)
	}
	if !slices.Equal(old.AssigneeIDs, new.AssigneeIDs) {
		record("assignees", old.AssigneeIDs, new.AssigneeIDs)
	}
}

// resolveSeverity derives the severity from the recorded change list.
// Breaking wins outright and cannot be downgraded. Any pattern or duration
// addition, a frequency change, or an interval jump of more than one step
// escalates to major; any remaining pattern, duration, or timing change is
// minor; otherwise the edit is cosmetic.
func resolveSeverity(rec *ChangeRecord, breaking bool) Severity {
	if breaking {
		return SeverityBreaking
	}

	severity := SeverityNone
	for _, fc := range rec.Changes {
		switch fc.Kind {
		case KindPatternAddition, KindDurationAddition:
			return SeverityMajor

		case KindPatternField:
			if fc.Field == "frequency" {
				return SeverityMajor
			}
			if fc.Field == "interval" {
				oldInterval, okOld := fc.Old.(int)
				newInterval, okNew := fc.New.(int)
				if okOld && okNew && absInt(newInterval-oldInterval) > 1 {
					return SeverityMajor
				}
			}
			severity = SeverityMinor

		case KindDurationField, KindTiming:
			severity = SeverityMinor

		case KindField:
			// Cosmetic; never changes severity.
		}
	}

	return severity
}

// estimateAffected sizes the edit's blast radius by scope. Only
// this_and_future edits at pattern or duration level earn a real walk of
// the occurrence sequence; everything else uses the documented placeholders.
func estimateAffected(rec *ChangeRecord, newState TaskState, now time.Time) AffectedEstimate {
	switch rec.EditScope {
	case ScopeThisInstance:
		return AffectedEstimate{Present: 1, Total: 1}

	case ScopeThisAndFuture:
		est := AffectedEstimate{Present: 1}

		sequenceChanged := (rec.Severity == SeverityMajor || rec.Severity == SeverityBreaking) &&
			(rec.HasPatternChanges || rec.HasDurationChanges)
		if sequenceChanged && newState.Rule != nil {
			anchor := now
			if newState.StartDate != nil {
				anchor = *newState.StartDate
			}
			horizon := now.AddDate(estimationHorizon, 0, 0)
			est.Future = len(newState.Rule.Between(anchor, now, horizon, estimationWalkLimit))
		} else {
			est.Future = minorFuturePlaceholder
		}

		est.Total = est.Present + est.Future
		return est

	case ScopeAllInstances:
		return AffectedEstimate{
			Past:    allInstancesPastPlaceholder,
			Present: 1,
			Future:  allInstancesFuturePlaceholder,
			Total:   allInstancesPastPlaceholder + 1 + allInstancesFuturePlaceholder,
		}

	default:
		return AffectedEstimate{}
	}
}

// endUntil extracts the end date of a rule, zero when unbounded or counted.
func endUntil(end recurrence.End) time.Time {
	if end.Kind == recurrence.EndUntil {
		return end.Until
	}
	return time.Time{}
}

// endCount extracts the occurrence bound of a rule, zero when not counted.
func endCount(end recurrence.End) int {
	if end.Kind == recurrence.EndCount {
		return end.Count
	}
	return 0
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
