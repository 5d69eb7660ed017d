// Package reminder emits class-start reminders to enrolled students inside the
// pre-class lookahead window.
package reminder

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"classnotify/internal/notify"
	"classnotify/internal/roster"
	"classnotify/internal/schedule"
)

// DefaultLookaheadMinutes applies when a class carries no reminder lead time.
const DefaultLookaheadMinutes = 5

// ClassSource lists the classes to evaluate.
type ClassSource interface {
	ListClasses(ctx context.Context) ([]roster.Class, error)
}

// StudentSource lists the students enrolled in one class.
type StudentSource interface {
	StudentsInClass(ctx context.Context, classID string) ([]roster.Student, error)
}

// Evaluator runs once per minute. It keeps no state between runs; the
// notification dedupe key makes repeated runs inside the same window safe.
type Evaluator struct {
	classes   ClassSource
	students  StudentSource
	sink      notify.Sink
	zone      *time.Location
	lookahead int
}

// New creates an evaluator. lookaheadMinutes is the default window for classes
// without their own lead time; zero or negative falls back to the package
// default.
func New(classes ClassSource, students StudentSource, sink notify.Sink, zone *time.Location, lookaheadMinutes int) *Evaluator {
	if lookaheadMinutes <= 0 {
		lookaheadMinutes = DefaultLookaheadMinutes
	}
	if zone == nil {
		zone = time.Local
	}
	return &Evaluator{classes: classes, students: students, sink: sink, zone: zone, lookahead: lookaheadMinutes}
}

// Run evaluates every class against now. Classes are processed concurrently
// and one class's failure never aborts the others.
func (e *Evaluator) Run(ctx context.Context, now time.Time) error {
	now = now.In(e.zone)
	classes, err := e.classes.ListClasses(ctx)
	if err != nil {
		return fmt.Errorf("list classes: %w", err)
	}

	var wg sync.WaitGroup
	for _, class := range classes {
		wg.Add(1)
		go func(class roster.Class) {
			defer wg.Done()
			if err := e.evaluateClass(ctx, class, now); err != nil {
				log.Printf("reminder evaluation failed for class %s: %v", class.ID, err)
			}
		}(class)
	}
	wg.Wait()
	return nil
}

func (e *Evaluator) evaluateClass(ctx context.Context, class roster.Class, now time.Time) error {
	if class.ID == "" || class.Schedule == "" {
		return nil
	}

	parsed := schedule.Parse(class.Schedule, e.zone, now)
	if parsed == nil {
		log.Printf("skipping class %s with un-parseable schedule %q", class.ID, class.Schedule)
		return nil
	}

	if len(parsed.Days) > 0 && !containsDay(parsed.Days, schedule.ISOWeekday(now)) {
		return nil
	}

	minutesUntilStart := parsed.Start.Sub(now).Minutes()
	lookahead := e.lookahead
	if class.ReminderLeadMinutes != nil {
		lookahead = *class.ReminderLeadMinutes
	}
	if minutesUntilStart < 0 || minutesUntilStart > float64(lookahead) {
		return nil
	}

	students, err := e.students.StudentsInClass(ctx, class.ID)
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	if len(students) == 0 {
		return nil
	}

	startTimestamp := parsed.Start.Truncate(time.Minute).Format(time.RFC3339)
	roundedMinutes := int(math.Round(minutesUntilStart))
	if roundedMinutes < 0 {
		roundedMinutes = 0
	}
	className := class.DisplayName()
	startTimeText := parsed.Start.Format("3:04 PM")

	var wg sync.WaitGroup
	for _, student := range students {
		if student.ID == "" {
			continue
		}
		wg.Add(1)
		go func(student roster.Student) {
			defer wg.Done()
			intent := notify.Intent{
				UserID:      student.ID,
				UserEmail:   student.Email,
				Type:        "class-start-reminder",
				Title:       fmt.Sprintf("%s starts soon", className),
				Message:     reminderMessage(className, startTimeText, roundedMinutes),
				Tone:        "info",
				ActionLabel: "Open class",
				ActionHref:  fmt.Sprintf("/student/classes/%s", class.ID),
				Payload: map[string]any{
					"classId":           class.ID,
					"className":         className,
					"minutesUntilStart": roundedMinutes,
					"startTime":         startTimestamp,
				},
				Surfaces:  []notify.Surface{notify.SurfaceToast, notify.SurfaceInbox},
				DedupeKey: fmt.Sprintf("class-start-%s-%s-%s", class.ID, startTimestamp, student.ID),
				Toast:     &notify.ToastOptions{AutoDismiss: true, DurationMS: 8000},
			}
			if err := e.sink.Write(ctx, intent); err != nil {
				log.Printf("reminder write failed for student %s in class %s: %v", student.ID, class.ID, err)
				return
			}
			remindersEmitted.Inc()
		}(student)
	}
	wg.Wait()
	return nil
}

func reminderMessage(className, startTimeText string, roundedMinutes int) string {
	if roundedMinutes == 0 {
		return fmt.Sprintf("%s is starting now. Head to class!", className)
	}
	plural := "s"
	if roundedMinutes == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s begins at %s. That's in %d minute%s.", className, startTimeText, roundedMinutes, plural)
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
