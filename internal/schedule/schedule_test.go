package schedule

import (
	"reflect"
	"testing"
	"time"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	zone, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return zone
}

func TestParse(t *testing.T) {
	zone := chicago(t)
	baseDate := time.Date(2024, 4, 1, 0, 0, 0, 0, zone) // a Monday

	tests := []struct {
		name      string
		input     string
		wantNil   bool
		wantDays  []int
		wantStart [2]int // hour, minute
		wantEnd   [2]int
	}{
		{
			name:      "condensed MWF",
			input:     "MWF 9:00AM - 9:50AM",
			wantDays:  []int{1, 3, 5},
			wantStart: [2]int{9, 0},
			wantEnd:   [2]int{9, 50},
		},
		{
			name:      "condensed TTh no spaces around dash",
			input:     "TTh 11:00am-11:50am",
			wantDays:  []int{2, 4},
			wantStart: [2]int{11, 0},
			wantEnd:   [2]int{11, 50},
		},
		{
			name:      "delimited day names",
			input:     "Mon, Wed 2:00PM - 3:15PM",
			wantDays:  []int{1, 3},
			wantStart: [2]int{14, 0},
			wantEnd:   [2]int{15, 15},
		},
		{
			name:      "TR is a condensed Thursday pair",
			input:     "TR 8:00am - 9:15am",
			wantDays:  []int{4},
			wantStart: [2]int{8, 0},
			wantEnd:   [2]int{9, 15},
		},
		{
			name:      "R alone is Thursday",
			input:     "R 8:00am - 9:15am",
			wantDays:  []int{4},
			wantStart: [2]int{8, 0},
			wantEnd:   [2]int{9, 15},
		},
		{
			name:      "full condensed week",
			input:     "MTuWThF 1:00pm - 1:50pm",
			wantDays:  []int{1, 2, 3, 4, 5},
			wantStart: [2]int{13, 0},
			wantEnd:   [2]int{13, 50},
		},
		{
			name:      "lone S defaults to Saturday",
			input:     "S 10:00am - 11:00am",
			wantDays:  []int{6},
			wantStart: [2]int{10, 0},
			wantEnd:   [2]int{11, 0},
		},
		{
			name:      "Su is Sunday",
			input:     "SaSu 10:00am - 11:00am",
			wantDays:  []int{6, 7},
			wantStart: [2]int{10, 0},
			wantEnd:   [2]int{11, 0},
		},
		{
			name:      "empty day portion means every day",
			input:     "9:00AM - 9:50AM",
			wantDays:  []int{},
			wantStart: [2]int{9, 0},
			wantEnd:   [2]int{9, 50},
		},
		{
			name:      "internal whitespace in times",
			input:     "MWF 9:00 AM - 9:50 AM",
			wantDays:  []int{1, 3, 5},
			wantStart: [2]int{9, 0},
			wantEnd:   [2]int{9, 50},
		},
		{
			name:      "duplicate days deduplicated",
			input:     "MMW 9:00am - 9:50am",
			wantDays:  []int{1, 3},
			wantStart: [2]int{9, 0},
			wantEnd:   [2]int{9, 50},
		},
		{
			name:      "end before start accepted",
			input:     "M 9:00PM - 8:00AM",
			wantDays:  []int{1},
			wantStart: [2]int{21, 0},
			wantEnd:   [2]int{8, 0},
		},
		{name: "garbage without time range", input: "see syllabus", wantNil: true},
		{name: "empty string", input: "", wantNil: true},
		{name: "whitespace only", input: "   ", wantNil: true},
		{name: "days without times", input: "MWF", wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Parse(tt.input, zone, baseDate)
			if tt.wantNil {
				if parsed != nil {
					t.Fatalf("Parse(%q) = %+v, want nil", tt.input, parsed)
				}
				return
			}
			if parsed == nil {
				t.Fatalf("Parse(%q) = nil, want a result", tt.input)
			}
			if !reflect.DeepEqual(parsed.Days, tt.wantDays) {
				t.Errorf("days = %v, want %v", parsed.Days, tt.wantDays)
			}
			if parsed.Start.Hour() != tt.wantStart[0] || parsed.Start.Minute() != tt.wantStart[1] {
				t.Errorf("start = %02d:%02d, want %02d:%02d", parsed.Start.Hour(), parsed.Start.Minute(), tt.wantStart[0], tt.wantStart[1])
			}
			if parsed.End.Hour() != tt.wantEnd[0] || parsed.End.Minute() != tt.wantEnd[1] {
				t.Errorf("end = %02d:%02d, want %02d:%02d", parsed.End.Hour(), parsed.End.Minute(), tt.wantEnd[0], tt.wantEnd[1])
			}
			if parsed.Start.Second() != 0 || parsed.Start.Nanosecond() != 0 {
				t.Errorf("start not truncated to the minute: %v", parsed.Start)
			}
			if y, m, d := parsed.Start.Date(); y != 2024 || m != time.April || d != 1 {
				t.Errorf("start not anchored to base date: %v", parsed.Start)
			}
		})
	}
}

func TestISOWeekday(t *testing.T) {
	zone := chicago(t)
	tests := []struct {
		day  int
		want int
	}{
		{1, 1}, // 2024-04-01 Monday
		{6, 6}, // Saturday
		{7, 7}, // Sunday
	}
	for _, tt := range tests {
		got := ISOWeekday(time.Date(2024, 4, tt.day, 12, 0, 0, 0, zone))
		if got != tt.want {
			t.Errorf("ISOWeekday(2024-04-%02d) = %d, want %d", tt.day, got, tt.want)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Absent", "absent"},
		{"  PENDING  ", "pending"},
		{"present", "present"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDisplayDate(t *testing.T) {
	zone := chicago(t)
	got := FormatDisplayDate(time.Date(2024, 4, 5, 10, 0, 0, 0, zone))
	if got != "Apr 5" {
		t.Errorf("FormatDisplayDate = %q, want %q", got, "Apr 5")
	}
}
