package risk

import (
	"context"
	"sync"
	"testing"

	"classnotify/internal/attendance"
	"classnotify/internal/notify"
	"classnotify/internal/roster"
)

type fakeDeps struct {
	count   int
	student *roster.Student
	class   *roster.Class
}

func (f *fakeDeps) CountAbsences(context.Context, string, string) (int, error) {
	return f.count, nil
}

func (f *fakeDeps) GetStudent(context.Context, string) (*roster.Student, error) {
	return f.student, nil
}

func (f *fakeDeps) GetClass(context.Context, string) (*roster.Class, error) {
	return f.class, nil
}

type captureSink struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (s *captureSink) Write(_ context.Context, intent notify.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, intent)
	return nil
}

func absentRecord() *attendance.Record {
	return &attendance.Record{
		ID:        "rec-1",
		ClassID:   "CS101",
		StudentID: "student-1",
		Status:    "Absent",
	}
}

func TestEvaluatorFiresOnCrossingOnly(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		wantFire bool
	}{
		{name: "below threshold", count: 4, wantFire: false},
		{name: "at threshold", count: 5, wantFire: false},
		{name: "crossing", count: 6, wantFire: true},
		{name: "past crossing", count: 7, wantFire: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &fakeDeps{count: tt.count, class: &roster.Class{ID: "CS101", Name: "Intro to CS"}}
			sink := &captureSink{}
			eval := New(deps, deps, deps, sink, 5)

			err := eval.Run(context.Background(), Event{After: absentRecord()})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			fired := len(sink.intents) == 1
			if fired != tt.wantFire {
				t.Fatalf("fired = %v, want %v (count %d)", fired, tt.wantFire, tt.count)
			}
			if !fired {
				return
			}

			intent := sink.intents[0]
			wantSurfaces := []notify.Surface{notify.SurfaceBanner, notify.SurfaceInbox}
			if len(intent.Surfaces) != 2 || intent.Surfaces[0] != wantSurfaces[0] || intent.Surfaces[1] != wantSurfaces[1] {
				t.Errorf("surfaces = %v, want %v", intent.Surfaces, wantSurfaces)
			}
			if intent.Tone != "warning" {
				t.Errorf("tone = %q, want warning", intent.Tone)
			}
			if intent.Banner == nil || !intent.Banner.Persistent {
				t.Errorf("banner = %+v, want persistent", intent.Banner)
			}
			if got := intent.Payload["absenceCount"]; got != 6 {
				t.Errorf("absenceCount = %v, want 6", got)
			}
			if got := intent.Payload["threshold"]; got != 6 {
				t.Errorf("threshold payload = %v, want 6", got)
			}
			if intent.DedupeKey != "attendance-risk-CS101-student-1-6" {
				t.Errorf("dedupe key = %q", intent.DedupeKey)
			}
		})
	}
}

func TestEvaluatorGuards(t *testing.T) {
	pending := absentRecord()
	pending.IsPending = true

	noClass := absentRecord()
	noClass.ClassID = ""

	noStudent := absentRecord()
	noStudent.StudentID = ""

	present := absentRecord()
	present.Status = "Present"

	tests := []struct {
		name  string
		event Event
	}{
		{name: "no after record", event: Event{}},
		{name: "status not absent", event: Event{After: present}},
		{
			name: "previous status already absent",
			event: Event{
				Before: &attendance.Record{ID: "rec-1", Status: "absent"},
				After:  absentRecord(),
			},
		},
		{name: "still pending", event: Event{After: pending}},
		{name: "missing class id", event: Event{After: noClass}},
		{name: "missing student id", event: Event{After: noStudent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := &fakeDeps{count: 6}
			sink := &captureSink{}
			eval := New(deps, deps, deps, sink, 5)

			if err := eval.Run(context.Background(), tt.event); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(sink.intents) != 0 {
				t.Fatalf("emitted %d intents, want 0", len(sink.intents))
			}
		})
	}
}

func TestEvaluatorDegradesToRawIDs(t *testing.T) {
	deps := &fakeDeps{count: 6} // no class, no student on file
	sink := &captureSink{}
	eval := New(deps, deps, deps, sink, 5)

	if err := eval.Run(context.Background(), Event{After: absentRecord()}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.intents) != 1 {
		t.Fatalf("emitted %d intents, want 1", len(sink.intents))
	}
	if got := sink.intents[0].Payload["className"]; got != "CS101" {
		t.Errorf("className = %v, want raw class id", got)
	}
	if sink.intents[0].UserEmail != "" {
		t.Errorf("userEmail = %q, want empty for unknown student", sink.intents[0].UserEmail)
	}
}
