// Package duration parses the duration spellings that show up in schedule
// files and configuration: Go-style ("90s", "1h30m"), human-readable
// ("30 minutes", "2 days"), clock notation ("01:30:00", "05:30"), and
// ISO-8601 ("PT1H30M").
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day represents 24 hours.
	Day = 24 * time.Hour
	// Week represents 7 days.
	Week = 7 * Day
)

// extendedUnits maps day-and-above unit names to their hour multiplier.
// Hours are the base unit because time.ParseDuration tops out at hours.
var extendedUnits = map[string]int64{
	"w":     7 * 24,
	"wk":    7 * 24,
	"wks":   7 * 24,
	"week":  7 * 24,
	"weeks": 7 * 24,

	"d":    24,
	"day":  24,
	"days": 24,
}

// wordUnits maps spelled-out sub-day units to their Go short form.
var wordUnits = map[string]string{
	"hour":  "h",
	"hours": "h",
	"hr":    "h",
	"hrs":   "h",

	"minute":  "m",
	"minutes": "m",
	"min":     "m",
	"mins":    "m",

	"second":  "s",
	"seconds": "s",
	"sec":     "s",
	"secs":    "s",
}

var (
	extendedUnitPattern = regexp.MustCompile(`(?i)(\d+)\s*(weeks?|wks?|w|days?|d)`)
	wordUnitPattern     = regexp.MustCompile(`(?i)(\d+)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?)`)
	clockPattern        = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	iso8601Pattern      = regexp.MustCompile(`(?i)^PT(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?$`)
)

// Parse parses a duration written in Go syntax or with spelled-out units.
// Whitespace between number and unit is optional: "2d" and "2 days" are
// equivalent. Days and weeks are converted to hours before delegating to
// time.ParseDuration.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var totalHours int64

	remaining := extendedUnitPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := extendedUnitPattern.FindStringSubmatch(match)
		if len(parts) == 3 {
			value, _ := strconv.ParseInt(parts[1], 10, 64)
			if mult, ok := extendedUnits[strings.ToLower(parts[2])]; ok {
				totalHours += value * mult
			}
		}
		return ""
	})

	remaining = wordUnitPattern.ReplaceAllStringFunc(remaining, func(match string) string {
		parts := wordUnitPattern.FindStringSubmatch(match)
		if len(parts) == 3 {
			if short, ok := wordUnits[strings.ToLower(parts[2])]; ok {
				return parts[1] + short
			}
		}
		return match
	})

	// time.ParseDuration rejects spaces between components.
	remaining = strings.Join(strings.Fields(strings.TrimSpace(remaining)), "")

	var durationStr string
	if totalHours > 0 {
		durationStr = fmt.Sprintf("%dh", totalHours)
	}
	durationStr += remaining
	if durationStr == "" {
		durationStr = "0s"
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// ParseClock parses "HH:MM:SS" or "MM:SS" clock notation.
func ParseClock(s string) (time.Duration, error) {
	parts := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if parts == nil {
		return 0, fmt.Errorf("duration: %q is not clock notation", s)
	}

	first, _ := strconv.Atoi(parts[1])
	second, _ := strconv.Atoi(parts[2])

	if parts[3] == "" {
		// MM:SS
		if second > 59 {
			return 0, fmt.Errorf("duration: seconds out of range in %q", s)
		}
		return time.Duration(first)*time.Minute + time.Duration(second)*time.Second, nil
	}

	// HH:MM:SS
	third, _ := strconv.Atoi(parts[3])
	if second > 59 || third > 59 {
		return 0, fmt.Errorf("duration: component out of range in %q", s)
	}
	return time.Duration(first)*time.Hour +
		time.Duration(second)*time.Minute +
		time.Duration(third)*time.Second, nil
}

// ParseISO8601 parses the time portion of an ISO-8601 duration ("PT1H30M",
// "PT90S"). Date components (years, months, days) are not accepted.
func ParseISO8601(s string) (time.Duration, error) {
	parts := iso8601Pattern.FindStringSubmatch(strings.TrimSpace(s))
	if parts == nil || (parts[1] == "" && parts[2] == "" && parts[3] == "") {
		return 0, fmt.Errorf("duration: %q is not an ISO-8601 time duration", s)
	}

	var d time.Duration
	if parts[1] != "" {
		h, _ := strconv.ParseFloat(parts[1], 64)
		d += time.Duration(h * float64(time.Hour))
	}
	if parts[2] != "" {
		m, _ := strconv.ParseFloat(parts[2], 64)
		d += time.Duration(m * float64(time.Minute))
	}
	if parts[3] != "" {
		sec, _ := strconv.ParseFloat(parts[3], 64)
		d += time.Duration(sec * float64(time.Second))
	}
	return d, nil
}

// ParseFlexible accepts any duration spelling used by schedule files:
// clock notation ("01:30:00", "05:30"), ISO-8601 ("PT90S"), bare seconds
// ("90"), and everything Parse accepts ("90s", "2 hours").
func ParseFlexible(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	if strings.Contains(s, ":") {
		return ParseClock(s)
	}
	if len(s) > 2 && (s[0] == 'P' || s[0] == 'p') {
		return ParseISO8601(s)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return Parse(s)
}

// MustParse is like Parse but panics on error. Use only for constants.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders a duration with the largest applicable units, omitting
// zero components: 90 minutes becomes "1h30m".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var result strings.Builder

	weeks := d / Week
	d -= weeks * Week
	days := d / Day
	d -= days * Day
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second

	if weeks > 0 {
		fmt.Fprintf(&result, "%dw", weeks)
	}
	if days > 0 {
		fmt.Fprintf(&result, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&result, "%dh", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&result, "%dm", minutes)
	}
	if seconds > 0 {
		fmt.Fprintf(&result, "%ds", seconds)
	}
	if d > 0 && result.Len() == 0 {
		fmt.Fprintf(&result, "%dms", d/time.Millisecond)
	}
	if result.Len() == 0 {
		return "0s"
	}
	if negative {
		return "-" + result.String()
	}
	return result.String()
}

// FormatClock renders a duration as "HH:MM:SS".
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
