// Package risk watches attendance-record writes for the moment a student's
// absence count crosses the configured threshold.
package risk

import (
	"context"
	"fmt"

	"classnotify/internal/attendance"
	"classnotify/internal/notify"
	"classnotify/internal/roster"
	"classnotify/internal/schedule"
)

// DefaultThreshold is the absence count above which the warning fires.
const DefaultThreshold = 5

// Event carries the before/after snapshots of one attendance-record write.
// Before is nil on creation.
type Event struct {
	Before *attendance.Record
	After  *attendance.Record
}

// AbsenceCounter aggregates a student's absences in a class.
type AbsenceCounter interface {
	CountAbsences(ctx context.Context, classID, studentID string) (int, error)
}

// StudentLookup fetches a student, nil when missing.
type StudentLookup interface {
	GetStudent(ctx context.Context, studentID string) (*roster.Student, error)
}

// ClassLookup fetches a class, nil when missing.
type ClassLookup interface {
	GetClass(ctx context.Context, classID string) (*roster.Class, error)
}

// Evaluator fires a one-time warning exactly when the count reaches
// threshold+1. Re-runs for the same crossing are absorbed by the dedupe key;
// later counts never re-fire.
type Evaluator struct {
	counter   AbsenceCounter
	students  StudentLookup
	classes   ClassLookup
	sink      notify.Sink
	threshold int
}

// New creates an evaluator. A non-positive threshold falls back to the default.
func New(counter AbsenceCounter, students StudentLookup, classes ClassLookup, sink notify.Sink, threshold int) *Evaluator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Evaluator{counter: counter, students: students, classes: classes, sink: sink, threshold: threshold}
}

// Run inspects one write event and emits at most one warning.
func (e *Evaluator) Run(ctx context.Context, event Event) error {
	after := event.After
	if after == nil {
		return nil
	}

	if schedule.NormalizeStatus(after.Status) != "absent" {
		return nil
	}
	if event.Before != nil && schedule.NormalizeStatus(event.Before.Status) == "absent" {
		return nil
	}
	if after.IsPending {
		return nil
	}
	if after.ClassID == "" || after.StudentID == "" {
		return nil
	}

	count, err := e.counter.CountAbsences(ctx, after.ClassID, after.StudentID)
	if err != nil {
		return fmt.Errorf("count absences: %w", err)
	}
	if count <= e.threshold {
		return nil
	}
	if count != e.threshold+1 {
		// Past the crossing already; the warning for it has fired (or been skipped for good).
		return nil
	}

	student, err := e.students.GetStudent(ctx, after.StudentID)
	if err != nil {
		return fmt.Errorf("fetch student: %w", err)
	}
	class, err := e.classes.GetClass(ctx, after.ClassID)
	if err != nil {
		return fmt.Errorf("fetch class: %w", err)
	}

	className := after.ClassID
	if class != nil {
		className = class.DisplayName()
	}
	email := ""
	if student != nil {
		email = student.Email
	}

	intent := notify.Intent{
		UserID:      after.StudentID,
		UserEmail:   email,
		Type:        "attendance-risk",
		Title:       "Attendance warning",
		Message:     fmt.Sprintf("You have %d absences in %s. Missing more classes may impact your grade.", count, className),
		Tone:        "warning",
		ActionLabel: "Review attendance",
		ActionHref:  fmt.Sprintf("/student/classes/%s", after.ClassID),
		Payload: map[string]any{
			"classId":      after.ClassID,
			"className":    className,
			"absenceCount": count,
			"threshold":    e.threshold + 1,
		},
		Surfaces:  []notify.Surface{notify.SurfaceBanner, notify.SurfaceInbox},
		DedupeKey: fmt.Sprintf("attendance-risk-%s-%s-%d", after.ClassID, after.StudentID, e.threshold+1),
		Banner:    &notify.BannerOptions{Persistent: true},
	}
	if err := e.sink.Write(ctx, intent); err != nil {
		return fmt.Errorf("write risk warning: %w", err)
	}
	riskWarningsEmitted.Inc()
	return nil
}
