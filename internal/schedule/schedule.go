// Package schedule parses human-written weekly schedule strings such as
// "MWF 9:00AM - 9:50AM" into weekday sets and wall-clock start/end times.
package schedule

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Parsed is the structured form of a schedule string. Days are ISO weekday
// numbers (1=Monday..7=Sunday); an empty slice means every day. Start and End
// sit on the base date's calendar day with seconds zeroed.
type Parsed struct {
	Start time.Time
	End   time.Time
	Days  []int
}

var timeRangeRe = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*[ap]m)\s*-\s*(\d{1,2}:\d{2}\s*[ap]m)`)

var dayTokens = map[string]int{
	"M": 1, "MON": 1, "MONDAY": 1,
	"T": 2, "TU": 2, "TUE": 2, "TUES": 2, "TUESDAY": 2,
	"W": 3, "WED": 3, "WEDS": 3, "WEDNESDAY": 3,
	"R": 4, "TH": 4, "THU": 4, "THUR": 4, "THURS": 4, "THURSDAY": 4,
	"F": 5, "FRI": 5, "FRIDAY": 5,
	"SA": 6, "SAT": 6, "SATURDAY": 6,
	"SU": 7, "SUN": 7, "SUNDAY": 7,
}

// Condensed runs like "MTuWThF" are scanned pairs-first so "Th" wins over "T"+"H".
var condensedPairs = map[string]int{
	"TU": 2, "TH": 4, "TR": 4, "SA": 6, "SU": 7,
}

// A lone "S" cannot distinguish Saturday from Sunday; it defaults to Saturday.
var singleLetters = map[byte]int{
	'M': 1, 'T': 2, 'W': 3, 'R': 4, 'H': 4, 'F': 5, 'S': 6,
}

var nonLetterRe = regexp.MustCompile(`[^A-Za-z]`)

// Parse extracts the first 12-hour time range from text and anchors it onto
// baseDate's calendar day in zone. It returns nil for anything it cannot
// parse; it never returns a partial result. An end at or before the start is
// accepted as-is.
func Parse(text string, zone *time.Location, baseDate time.Time) *Parsed {
	if zone == nil {
		zone = time.Local
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	loc := timeRangeRe.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return nil
	}
	startText := strings.ReplaceAll(trimmed[loc[2]:loc[3]], " ", "")
	endText := strings.ReplaceAll(trimmed[loc[4]:loc[5]], " ", "")

	start, ok := anchorClockTime(startText, zone, baseDate)
	if !ok {
		return nil
	}
	end, ok := anchorClockTime(endText, zone, baseDate)
	if !ok {
		return nil
	}

	dayPortion := ""
	if loc[0] > 0 {
		dayPortion = strings.TrimSpace(trimmed[:loc[0]])
	}

	return &Parsed{Start: start, End: end, Days: parseDayPortion(dayPortion)}
}

func anchorClockTime(text string, zone *time.Location, baseDate time.Time) (time.Time, bool) {
	parsed, err := time.Parse("3:04pm", strings.ToLower(text))
	if err != nil {
		return time.Time{}, false
	}
	base := baseDate.In(zone)
	return time.Date(base.Year(), base.Month(), base.Day(), parsed.Hour(), parsed.Minute(), 0, 0, zone), true
}

func parseDayPortion(value string) []int {
	if value == "" {
		return []int{}
	}

	seen := map[int]bool{}
	tokens := strings.Fields(nonLetterRe.ReplaceAllString(value, " "))
	if len(tokens) > 0 {
		for _, token := range tokens {
			token = strings.ToUpper(token)
			if day, ok := dayTokens[token]; ok {
				seen[day] = true
			} else {
				scanCondensed(token, seen)
			}
		}
	} else {
		scanCondensed(strings.ToUpper(value), seen)
	}

	days := make([]int, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

func scanCondensed(token string, seen map[int]bool) {
	for i := 0; i < len(token); {
		if i+2 <= len(token) {
			if day, ok := condensedPairs[token[i:i+2]]; ok {
				seen[day] = true
				i += 2
				continue
			}
		}
		if day, ok := singleLetters[token[i]]; ok {
			seen[day] = true
		}
		i++
	}
}

// ISOWeekday maps Go's Sunday-based weekday onto ISO numbering (1=Monday..7=Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// NormalizeStatus lowercases and trims an attendance status for comparison.
// Empty input normalizes to "".
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// FormatDisplayDate renders a date the way notifications reference it, e.g. "Apr 5".
func FormatDisplayDate(t time.Time) string {
	return t.Format("Jan 2")
}
