// Package format provides human-readable formatting helpers for status
// output: byte counts, large numbers, cron schedules, relative times.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bytes formats a byte count into human-readable form.
// Example: Bytes(1536) => "1.5 KB"
func Bytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	sizes := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), sizes[exp])
}

var printer = message.NewPrinter(language.English)

// Number formats a number with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Percentage formats a percentage value.
// Example: Percentage(45.678, 1) => "45.7%"
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// CronDescription returns a human-readable description of a standard
// 5-field cron expression (minutes hours day-of-month month day-of-week).
// Example: CronDescription("0 2 * * *") => "Daily at 2AM"
func CronDescription(cronExpr string) string {
	fields := strings.Fields(strings.TrimSpace(cronExpr))
	if len(fields) != 5 {
		return cronExpr
	}

	min, hour, dayOfMonth, _, dayOfWeek := fields[0], fields[1], fields[2], fields[3], fields[4]

	if min == "*" && hour == "*" && dayOfMonth == "*" && dayOfWeek == "*" {
		return "Every minute"
	}

	// Minute intervals
	if strings.Contains(min, "/") {
		if interval := extractInterval(min); interval > 0 {
			if h, err := strconv.Atoi(hour); err == nil {
				return fmt.Sprintf("Every %d minutes during %s hour", interval, formatHour(strconv.Itoa(h)))
			}
			return fmt.Sprintf("Every %d minutes", interval)
		}
	}

	// Hour intervals
	if strings.Contains(hour, "/") {
		if interval := extractInterval(hour); interval > 0 {
			switch interval {
			case 1:
				return "Every hour"
			case 12:
				return "Twice daily"
			default:
				return fmt.Sprintf("Every %d hours", interval)
			}
		}
	}

	// Every hour at a specific minute
	if hour == "*" {
		if m, err := strconv.Atoi(min); err == nil {
			if m == 0 {
				return "Every hour"
			}
			return fmt.Sprintf("Every hour at :%02d", m)
		}
	}

	h, hErr := strconv.Atoi(hour)
	m, mErr := strconv.Atoi(min)
	if hErr == nil && mErr == nil {
		timeStr := formatTime(h, m)

		if dayOfWeek != "*" && dayOfMonth == "*" {
			if strings.Contains(dayOfWeek, ",") {
				days := strings.Split(dayOfWeek, ",")
				names := make([]string, len(days))
				for i, d := range days {
					names[i] = shortDayName(d)
				}
				return fmt.Sprintf("%s at %s", strings.Join(names, ", "), timeStr)
			}
			return fmt.Sprintf("%ss at %s", fullDayName(dayOfWeek), timeStr)
		}

		if dayOfMonth != "*" {
			if d, err := strconv.Atoi(dayOfMonth); err == nil {
				return fmt.Sprintf("%s of each month at %s", ordinal(d), timeStr)
			}
		}

		return fmt.Sprintf("Daily at %s", timeStr)
	}

	return strings.Join(fields, " ")
}

func extractInterval(field string) int {
	idx := strings.Index(field, "/")
	if idx < 0 {
		return 0
	}
	interval, err := strconv.Atoi(field[idx+1:])
	if err != nil {
		return 0
	}
	return interval
}

func formatHour(h string) string {
	hour, err := strconv.Atoi(h)
	if err != nil {
		return h
	}
	switch {
	case hour == 0:
		return "12AM"
	case hour == 12:
		return "12PM"
	case hour > 12:
		return fmt.Sprintf("%dPM", hour-12)
	default:
		return fmt.Sprintf("%dAM", hour)
	}
}

func formatTime(hour, minute int) string {
	if hour == 0 && minute == 0 {
		return "midnight"
	}
	if hour == 12 && minute == 0 {
		return "noon"
	}

	period := "AM"
	hour12 := hour
	if hour >= 12 {
		period = "PM"
		if hour > 12 {
			hour12 = hour - 12
		}
	}
	if hour == 0 {
		hour12 = 12
	}

	if minute == 0 {
		return fmt.Sprintf("%d%s", hour12, period)
	}
	return fmt.Sprintf("%d:%02d%s", hour12, minute, period)
}

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
var shortDayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func fullDayName(day string) string {
	if d, err := strconv.Atoi(day); err == nil && d >= 0 && d < 7 {
		return dayNames[d]
	}
	return day
}

func shortDayName(day string) string {
	if d, err := strconv.Atoi(day); err == nil && d >= 0 && d < 7 {
		return shortDayNames[d]
	}
	return day
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 10 {
	case 1:
		if n%100 != 11 {
			suffix = "st"
		}
	case 2:
		if n%100 != 12 {
			suffix = "nd"
		}
	case 3:
		if n%100 != 13 {
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// RelativeTime formats a time as a relative duration from now.
// Example: RelativeTime(time.Now().Add(-5*time.Minute)) => "5 minutes ago"
func RelativeTime(t time.Time) string {
	diff := time.Since(t)
	if diff < 0 {
		return formatRelativeFuture(-diff)
	}
	return formatRelativePast(diff)
}

func formatRelativePast(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatRelativeFuture(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "in a moment"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "in 1 minute"
		}
		return fmt.Sprintf("in %d minutes", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "in 1 hour"
		}
		return fmt.Sprintf("in %d hours", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "in 1 day"
		}
		return fmt.Sprintf("in %d days", days)
	}
}
