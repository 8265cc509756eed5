package schedule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchedule = `
name: Saturday Cartoons
description: morning block
content:
  - key: cartoons
    collection: Classic Cartoons
    order: shuffle
  - key: breaks
    collection: Commercials
sequences:
  main:
    - pre_roll: {enabled: true, sequence: bumpers}
    - all: cartoons
    - duration_fill:
        content: breaks
        duration: "12:30"
        filler: Commercial
        discard_attempts: 2
    - pad_to_next: 30
    - pad_until:
        time: "06:00"
        content: breaks
    - wait_until:
        time: "06:00"
        tomorrow: true
    - skip_items:
        content: cartoons
        expr: count/2
    - sequence: evening
    - shuffle_sequence: evening
    - post_roll: off
  bumpers:
    - reference: breaks
  evening:
    - all: cartoons
playout:
  - repeat: true
`

func TestParse(t *testing.T) {
	parsed, err := Parse([]byte(sampleSchedule))
	require.NoError(t, err)

	assert.Equal(t, "Saturday Cartoons", parsed.Name)
	assert.Equal(t, "main", parsed.MainSequence)
	assert.True(t, parsed.Repeat)
	assert.Empty(t, parsed.Malformed)

	require.Contains(t, parsed.Content, "cartoons")
	assert.Equal(t, "Classic Cartoons", parsed.Content["cartoons"].Collection)
	assert.Equal(t, OrderShuffle, parsed.Content["cartoons"].Order)
	assert.Equal(t, OrderChronological, parsed.Content["breaks"].Order)

	main := parsed.Sequences["main"]
	require.Len(t, main, 10)

	assert.Equal(t, OpPreRoll, main[0].Kind)
	assert.True(t, main[0].Enabled)
	assert.Equal(t, "bumpers", main[0].SequenceKey)

	assert.Equal(t, OpAll, main[1].Kind)
	assert.Equal(t, "cartoons", main[1].ContentKey)

	fill := main[2]
	assert.Equal(t, OpDurationFill, fill.Kind)
	assert.Equal(t, 750.0, fill.Duration)
	assert.Equal(t, "Commercial", fill.FillerKind)
	assert.Equal(t, 2, fill.DiscardAttempts)

	assert.Equal(t, OpPadToNext, main[3].Kind)
	assert.Equal(t, 30, main[3].Minutes)

	assert.Equal(t, OpPadUntil, main[4].Kind)
	assert.Equal(t, 6*3600, main[4].ClockSeconds)

	wait := main[5]
	assert.Equal(t, OpWaitUntil, wait.Kind)
	assert.True(t, wait.Tomorrow)

	skip := main[6]
	assert.Equal(t, OpSkipItems, skip.Kind)
	assert.Equal(t, "count/2", skip.SkipExpr)

	assert.Equal(t, OpSequence, main[7].Kind)
	assert.Equal(t, "evening", main[7].SequenceKey)
	assert.Equal(t, OpShuffleSequence, main[8].Kind)

	assert.Equal(t, OpPostRoll, main[9].Kind)
	assert.False(t, main[9].Enabled)
}

func TestParseMalformedOpsRecorded(t *testing.T) {
	doc := `
sequences:
  main:
    - all: cartoons
    - frobnicate: whatever
    - duration_fill:
        content: breaks
        duration: "not a duration"
    - skip_items:
        content: cartoons
        expr: "half"
    - reference: breaks
`
	parsed, err := Parse([]byte(doc))
	require.NoError(t, err)

	// Bad ops are skipped, good ones survive in order.
	main := parsed.Sequences["main"]
	require.Len(t, main, 2)
	assert.Equal(t, OpAll, main[0].Kind)
	assert.Equal(t, OpReference, main[1].Kind)

	require.Len(t, parsed.Malformed, 3)
	assert.Contains(t, parsed.Malformed[0].Reason, "frobnicate")
	assert.Contains(t, parsed.Malformed[1].Reason, "duration")
	assert.Contains(t, parsed.Malformed[2].Reason, "expression")
	for _, m := range parsed.Malformed {
		assert.Contains(t, m.Path, "sequences.main[")
	}
}

func TestParseRejectsUnsafeTags(t *testing.T) {
	doc := `
sequences:
  main:
    - all: !!python/object:os.system cartoons
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafeTag)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("sequences:\n  main:\n - [unclosed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseRejectsOversizedInput(t *testing.T) {
	data := []byte("name: " + strings.Repeat("x", MaxScheduleFileSize))
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestParseDurationForms(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"01:30:00", 5400},
		{"12:30", 750},
		{"90s", 90},
		{"PT1H30M", 5400},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			doc := "sequences:\n  main:\n    - duration_fill:\n        content: breaks\n        duration: \"" + tt.raw + "\"\n"
			parsed, err := Parse([]byte(doc))
			require.NoError(t, err)
			require.Len(t, parsed.Sequences["main"], 1)
			assert.Equal(t, tt.want, parsed.Sequences["main"][0].Duration)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"03:00", 3 * 3600, false},
		{"23:59:59", 23*3600 + 59*60 + 59, false},
		{"6:30", 6*3600 + 30*60, false},
		{"24:00", 0, true},
		{"12", 0, true},
		{"aa:bb", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTimeOfDay(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindScheduleFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "42.yml"), []byte("name: x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "80.yaml"), []byte("name: y\n"), 0o644))

	path, err := FindScheduleFile(root, "42")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "42.yml"), path)

	path, err = FindScheduleFile(root, "80")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "80.yaml"), path)

	_, err = FindScheduleFile(root, "99")
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}
