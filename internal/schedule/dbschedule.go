package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tgrayson/streamtv/internal/models"
)

// MediaKeyPrefix marks a content key that names a single media item by ID
// rather than a collection. Lookups resolve the suffix with the media
// repository.
const MediaKeyPrefix = "media:"

// FromModel converts a database-defined schedule into the parsed form the
// engine expands. Rows are visited in position order; fixed-start rows
// become wait_until anchors, playout modes map onto reference, repeated
// reference, and duration_fill ops. Rows with unparseable fields are
// recorded as malformed and skipped.
func FromModel(s *models.Schedule) *ParsedSchedule {
	parsed := &ParsedSchedule{
		Name:         s.Name,
		Content:      make(map[string]ContentRef),
		Sequences:    map[string][]Op{DefaultMainSequence: nil},
		MainSequence: DefaultMainSequence,
		Repeat:       true,
	}

	rows := make([]models.ScheduleItem, len(s.Items))
	copy(rows, s.Items)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	var ops []Op
	for i, row := range rows {
		key, ref, err := contentRefForRow(&row)
		if err != nil {
			parsed.Malformed = append(parsed.Malformed, MalformedDirectiveError{
				Path:   fmt.Sprintf("items[%d]", i),
				Reason: err.Error(),
			})
			continue
		}
		parsed.Content[key] = ref

		if row.StartType == models.StartFixed && row.StartTime != "" {
			clock, err := parseTimeOfDay(row.StartTime)
			if err != nil {
				parsed.Malformed = append(parsed.Malformed, MalformedDirectiveError{
					Path:   fmt.Sprintf("items[%d].start_time", i),
					Reason: err.Error(),
				})
				continue
			}
			ops = append(ops, Op{Kind: OpWaitUntil, ClockSeconds: clock})
		}

		switch row.PlayoutMode {
		case models.PlayDuration:
			if row.PlayoutDuration <= 0 {
				parsed.Malformed = append(parsed.Malformed, MalformedDirectiveError{
					Path:   fmt.Sprintf("items[%d].playout_duration", i),
					Reason: "duration mode requires a positive duration",
				})
				continue
			}
			ops = append(ops, Op{
				Kind:        OpDurationFill,
				ContentKey:  key,
				Duration:    row.PlayoutDuration,
				CustomTitle: row.CustomTitle,
			})
		case models.PlayMultiple:
			count := row.MultipleCount
			if count < 1 {
				count = 1
			}
			for n := 0; n < count; n++ {
				ops = append(ops, Op{Kind: OpReference, ContentKey: key, CustomTitle: row.CustomTitle})
			}
		default:
			ops = append(ops, Op{Kind: OpReference, ContentKey: key, CustomTitle: row.CustomTitle})
		}
	}

	parsed.Sequences[DefaultMainSequence] = ops
	return parsed
}

// contentRefForRow derives the content key and reference for one row.
// Collection-like targets use the target name; MEDIA targets use an ID
// key the planner's lookup resolves directly.
func contentRefForRow(row *models.ScheduleItem) (string, ContentRef, error) {
	order := OrderChronological
	if strings.EqualFold(row.PlaybackOrder, string(OrderShuffle)) {
		order = OrderShuffle
	}

	if row.Target() == models.TargetMedia {
		if row.TargetID.IsZero() {
			return "", ContentRef{}, fmt.Errorf("media target without target_id")
		}
		key := MediaKeyPrefix + row.TargetID.String()
		return key, ContentRef{Collection: key, Order: order}, nil
	}

	if row.TargetName == "" {
		return "", ContentRef{}, fmt.Errorf("%s target without target_name", row.Target())
	}
	return row.TargetName, ContentRef{Collection: row.TargetName, Order: order}, nil
}
