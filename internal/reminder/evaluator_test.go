package reminder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"classnotify/internal/notify"
	"classnotify/internal/roster"
)

type fakeRoster struct {
	classes  []roster.Class
	students map[string][]roster.Student
}

func (f *fakeRoster) ListClasses(context.Context) ([]roster.Class, error) {
	return f.classes, nil
}

func (f *fakeRoster) StudentsInClass(_ context.Context, classID string) ([]roster.Student, error) {
	return f.students[classID], nil
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

func (s *captureSink) all() []notify.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Intent(nil), s.intents...)
}

func chicago(t *testing.T) *time.Location {
	t.Helper()
	zone, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return zone
}

func TestEvaluatorWindow(t *testing.T) {
	zone := chicago(t)
	source := &fakeRoster{
		classes: []roster.Class{
			{ID: "CS101", Name: "Intro to CS", Schedule: "MWF 9:00AM - 9:50AM"},
		},
		students: map[string][]roster.Student{
			"CS101": {{ID: "student-1", Email: "student@example.com"}},
		},
	}

	tests := []struct {
		name        string
		now         time.Time
		wantIntents int
		wantMinutes int
	}{
		{
			name:        "inside lookahead",
			now:         time.Date(2024, 4, 1, 8, 55, 0, 0, zone), // Monday 08:55
			wantIntents: 1,
			wantMinutes: 5,
		},
		{
			name:        "starting now",
			now:         time.Date(2024, 4, 1, 9, 0, 0, 0, zone),
			wantIntents: 1,
			wantMinutes: 0,
		},
		{
			name:        "too early",
			now:         time.Date(2024, 4, 1, 7, 0, 0, 0, zone),
			wantIntents: 0,
		},
		{
			name:        "already started",
			now:         time.Date(2024, 4, 1, 9, 1, 0, 0, zone),
			wantIntents: 0,
		},
		{
			name:        "wrong weekday",
			now:         time.Date(2024, 4, 2, 8, 55, 0, 0, zone), // Tuesday
			wantIntents: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			eval := New(source, source, sink, zone, 0)
			if err := eval.Run(context.Background(), tt.now); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			intents := sink.all()
			if len(intents) != tt.wantIntents {
				t.Fatalf("emitted %d intents, want %d", len(intents), tt.wantIntents)
			}
			if tt.wantIntents == 0 {
				return
			}

			intent := intents[0]
			if intent.UserID != "student-1" {
				t.Errorf("userID = %q", intent.UserID)
			}
			wantSurfaces := []notify.Surface{notify.SurfaceToast, notify.SurfaceInbox}
			if len(intent.Surfaces) != 2 || intent.Surfaces[0] != wantSurfaces[0] || intent.Surfaces[1] != wantSurfaces[1] {
				t.Errorf("surfaces = %v, want %v", intent.Surfaces, wantSurfaces)
			}
			if got := intent.Payload["minutesUntilStart"]; got != tt.wantMinutes {
				t.Errorf("minutesUntilStart = %v, want %d", got, tt.wantMinutes)
			}
			if intent.Tone != "info" {
				t.Errorf("tone = %q, want info", intent.Tone)
			}
		})
	}
}

func TestEvaluatorDedupeKeyStableAcrossRuns(t *testing.T) {
	zone := chicago(t)
	source := &fakeRoster{
		classes: []roster.Class{
			{ID: "CS101", Name: "Intro to CS", Schedule: "MWF 9:00AM - 9:50AM"},
		},
		students: map[string][]roster.Student{
			"CS101": {{ID: "student-1"}},
		},
	}
	sink := &captureSink{}
	eval := New(source, source, sink, zone, 0)

	// Two ticks inside the same window; the key must anchor on the rounded
	// class start, not on now.
	for _, minute := range []int{55, 57} {
		now := time.Date(2024, 4, 1, 8, minute, 0, 0, zone)
		if err := eval.Run(context.Background(), now); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	intents := sink.all()
	if len(intents) != 2 {
		t.Fatalf("emitted %d intents, want 2", len(intents))
	}
	if intents[0].DedupeKey != intents[1].DedupeKey {
		t.Errorf("dedupe keys differ across runs: %q vs %q", intents[0].DedupeKey, intents[1].DedupeKey)
	}
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, zone).Format(time.RFC3339)
	want := fmt.Sprintf("class-start-CS101-%s-student-1", start)
	if intents[0].DedupeKey != want {
		t.Errorf("dedupe key = %q, want %q", intents[0].DedupeKey, want)
	}
}

func TestEvaluatorSkipsBrokenClasses(t *testing.T) {
	zone := chicago(t)
	source := &fakeRoster{
		classes: []roster.Class{
			{ID: "", Schedule: "MWF 9:00AM - 9:50AM"},
			{ID: "no-schedule"},
			{ID: "bad-schedule", Schedule: "see syllabus"},
			{ID: "CS101", Schedule: "MWF 9:00AM - 9:50AM"},
		},
		students: map[string][]roster.Student{
			"CS101": {{ID: "student-1"}, {ID: ""}},
		},
	}
	sink := &captureSink{}
	eval := New(source, source, sink, zone, 0)

	now := time.Date(2024, 4, 1, 8, 55, 0, 0, zone)
	if err := eval.Run(context.Background(), now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Only the valid class and the student with an id produce an intent.
	if got := len(sink.all()); got != 1 {
		t.Fatalf("emitted %d intents, want 1", got)
	}
}

func TestEvaluatorPerClassLookahead(t *testing.T) {
	zone := chicago(t)
	lead := 20
	source := &fakeRoster{
		classes: []roster.Class{
			{ID: "CS101", Schedule: "MWF 9:00AM - 9:50AM", ReminderLeadMinutes: &lead},
		},
		students: map[string][]roster.Student{
			"CS101": {{ID: "student-1"}},
		},
	}
	sink := &captureSink{}
	eval := New(source, source, sink, zone, 0)

	// 15 minutes out: outside the default window, inside the class override.
	now := time.Date(2024, 4, 1, 8, 45, 0, 0, zone)
	if err := eval.Run(context.Background(), now); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(sink.all()); got != 1 {
		t.Fatalf("emitted %d intents, want 1", got)
	}
}
