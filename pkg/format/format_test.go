package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5 * 1024 * 1024, "5.0 MB"},
		{"gigabytes", 2 * 1024 * 1024 * 1024, "2.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Bytes(tt.input))
		})
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "1,234,567", Number(1234567))
	assert.Equal(t, "42", Number(42))
	assert.Equal(t, "0", Number(0))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "45.7%", Percentage(45.678, 1))
	assert.Equal(t, "100%", Percentage(100, 0))
}

func TestCronDescription(t *testing.T) {
	tests := []struct {
		name     string
		cron     string
		expected string
	}{
		{"every minute", "* * * * *", "Every minute"},
		{"daily at 2am", "0 2 * * *", "Daily at 2AM"},
		{"daily at midnight", "0 0 * * *", "Daily at midnight"},
		{"daily with minutes", "30 14 * * *", "Daily at 2:30PM"},
		{"every hour", "0 * * * *", "Every hour"},
		{"hourly at minute", "15 * * * *", "Every hour at :15"},
		{"every 15 minutes", "*/15 * * * *", "Every 15 minutes"},
		{"every 6 hours", "0 */6 * * *", "Every 6 hours"},
		{"twice daily", "0 */12 * * *", "Twice daily"},
		{"sundays", "0 3 * * 0", "Sundays at 3AM"},
		{"weekdays list", "0 9 * * 1,5", "Mon, Fri at 9AM"},
		{"monthly", "0 4 1 * *", "1st of each month at 4AM"},
		{"passthrough invalid", "not a cron", "not a cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CronDescription(tt.cron))
		})
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "just now", RelativeTime(now.Add(-10*time.Second)))
	assert.Equal(t, "5 minutes ago", RelativeTime(now.Add(-5*time.Minute)))
	assert.Equal(t, "1 hour ago", RelativeTime(now.Add(-time.Hour-time.Minute)))
	assert.Equal(t, "2 days ago", RelativeTime(now.Add(-49*time.Hour)))
	assert.Equal(t, "in 2 hours", RelativeTime(now.Add(2*time.Hour+time.Minute)))
}
