// Package decision polls attendance records under review and notifies the
// student once a reviewer resolves them. Polling is a fixed-interval, capped
// retry loop: one initial wait plus up to three rescheduled checks, then the
// record is abandoned without a notification. Students whose review takes
// longer than the total window receive no decision notification; that bound is
// a product decision, not an oversight.
package decision

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"classnotify/internal/attendance"
	"classnotify/internal/notify"
	"classnotify/internal/queue"
	"classnotify/internal/roster"
	"classnotify/internal/schedule"
)

// Defaults for the retry policy. Configurable, but changing them changes who
// gets notified; keep parity with the deployed behavior.
const (
	DefaultInitialDelay = 30 * time.Minute
	DefaultRetryDelay   = 10 * time.Minute
	DefaultMaxAttempts  = 3
)

// RecordLoader fetches an attendance record, nil when it no longer exists.
type RecordLoader interface {
	Get(ctx context.Context, id string) (*attendance.Record, error)
}

// StudentLookup fetches a student, nil when missing.
type StudentLookup interface {
	GetStudent(ctx context.Context, studentID string) (*roster.Student, error)
}

// ClassLookup fetches a class, nil when missing.
type ClassLookup interface {
	GetClass(ctx context.Context, classID string) (*roster.Class, error)
}

// Workflow drives decision tasks. All resume state lives in the task payload
// and the notification store; the workflow itself is stateless.
type Workflow struct {
	records  RecordLoader
	students StudentLookup
	classes  ClassLookup
	sink     notify.Sink
	tasks    queue.Queue
	zone     *time.Location

	initialDelay time.Duration
	retryDelay   time.Duration
	maxAttempts  int
	now          func() time.Time
}

// Config overrides the retry policy; zero values keep the defaults.
type Config struct {
	InitialDelay time.Duration
	RetryDelay   time.Duration
	MaxAttempts  int
}

// New creates a workflow.
func New(records RecordLoader, students StudentLookup, classes ClassLookup, sink notify.Sink, tasks queue.Queue, zone *time.Location, cfg Config) *Workflow {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if zone == nil {
		zone = time.Local
	}
	return &Workflow{
		records:      records,
		students:     students,
		classes:      classes,
		sink:         sink,
		tasks:        tasks,
		zone:         zone,
		initialDelay: cfg.InitialDelay,
		retryDelay:   cfg.RetryDelay,
		maxAttempts:  cfg.MaxAttempts,
		now:          time.Now,
	}
}

// Schedule enqueues the first poll for a record that just entered review.
func (w *Workflow) Schedule(ctx context.Context, recordID string) error {
	if recordID == "" {
		return fmt.Errorf("decision task requires a record id")
	}
	return w.tasks.Enqueue(ctx, queue.Task{RecordID: recordID, Attempt: 0}, w.initialDelay)
}

// Execute runs one poll. A still-pending record reschedules with attempt+1
// until the cap; a resolved record produces the outcome notification; a
// missing record means it was resolved externally and there is nothing to do.
func (w *Workflow) Execute(ctx context.Context, task queue.Task) error {
	if task.RecordID == "" {
		log.Printf("decision task without record id, dropping")
		return nil
	}

	record, err := w.records.Get(ctx, task.RecordID)
	if err != nil {
		return fmt.Errorf("load record %s: %w", task.RecordID, err)
	}
	if record == nil {
		log.Printf("attendance record %s already removed", task.RecordID)
		return nil
	}

	status := schedule.NormalizeStatus(record.Status)
	if status == "" {
		status = schedule.NormalizeStatus(record.ProposedStatus)
	}

	if status == "" || status == "pending" {
		nextAttempt := task.Attempt + 1
		if nextAttempt > w.maxAttempts {
			log.Printf("WARNING: stopping retries for unresolved attendance record %s after %d attempts", task.RecordID, nextAttempt)
			tasksAbandoned.Inc()
			return nil
		}
		if err := w.tasks.Enqueue(ctx, queue.Task{RecordID: task.RecordID, Attempt: nextAttempt}, w.retryDelay); err != nil {
			return fmt.Errorf("reschedule record %s: %w", task.RecordID, err)
		}
		tasksRescheduled.Inc()
		return nil
	}

	return w.notifyOutcome(ctx, record, status)
}

func (w *Workflow) notifyOutcome(ctx context.Context, record *attendance.Record, status string) error {
	// Lookups are best effort: a missing student or class degrades to raw ids.
	student, err := w.students.GetStudent(ctx, record.StudentID)
	if err != nil {
		log.Printf("student lookup failed for %s: %v", record.StudentID, err)
	}
	class, err := w.classes.GetClass(ctx, record.ClassID)
	if err != nil {
		log.Printf("class lookup failed for %s: %v", record.ClassID, err)
	}

	classID := record.ClassID
	if classID == "" {
		classID = "unknown-class"
	}
	className := classID
	if class != nil {
		className = class.DisplayName()
	}
	email := ""
	if student != nil {
		email = student.Email
	}

	reviewDate := w.now().In(w.zone)
	if record.Date != nil {
		reviewDate = record.Date.In(w.zone)
	}

	resolvedStatus := capitalize(status)
	isAbsent := status == "absent"

	title := "Attendance finalized"
	tone := "success"
	surfaces := []notify.Surface{notify.SurfaceToast, notify.SurfaceInbox}
	toast := &notify.ToastOptions{AutoDismiss: false, DurationMS: 10000}
	var banner *notify.BannerOptions
	if isAbsent {
		title = "Attendance review result"
		tone = "error"
		surfaces = []notify.Surface{notify.SurfaceBanner, notify.SurfaceInbox}
		toast = nil
		banner = &notify.BannerOptions{Persistent: true}
	}

	intent := notify.Intent{
		UserID:      record.StudentID,
		UserEmail:   email,
		Type:        "attendance-decision",
		Title:       title,
		Message:     decisionMessage(className, reviewDate, resolvedStatus, isAbsent),
		Tone:        tone,
		ActionLabel: "View attendance",
		ActionHref:  fmt.Sprintf("/student/classes/%s", classID),
		Payload: map[string]any{
			"classId":      classID,
			"className":    className,
			"attendanceId": record.ID,
			"status":       resolvedStatus,
			"showToast":    !isAbsent,
			"reviewedAt":   w.now().In(w.zone).Format(time.RFC3339),
		},
		Surfaces:  surfaces,
		DedupeKey: fmt.Sprintf("attendance-decision-%s-%s", record.ID, status),
		Toast:     toast,
		Banner:    banner,
	}
	if err := w.sink.Write(ctx, intent); err != nil {
		return fmt.Errorf("write decision notification for %s: %w", record.ID, err)
	}
	decisionsNotified.Inc()
	return nil
}

func decisionMessage(className string, reviewDate time.Time, status string, isAbsent bool) string {
	formatted := schedule.FormatDisplayDate(reviewDate)
	if isAbsent {
		return fmt.Sprintf("The review marked you as absent for %s on %s.", className, formatted)
	}
	return fmt.Sprintf("The review is complete. You're marked %s for %s on %s.", status, className, formatted)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
