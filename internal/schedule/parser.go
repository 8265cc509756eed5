package schedule

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tgrayson/streamtv/pkg/duration"
	"gopkg.in/yaml.v3"
)

// MaxScheduleFileSize is the cap on a schedule YAML file.
const MaxScheduleFileSize = 5 * 1024 * 1024

// DefaultMainSequence is used when the file names no main sequence.
const DefaultMainSequence = "main"

// defaultPadMinutes is pad_to_next's fallback block size.
const defaultPadMinutes = 60

var skipExprPattern = regexp.MustCompile(`^(\d+|count|count/\d+|random)$`)

// FindScheduleFile locates `{number}.yml|.yaml` under the schedules root.
// Returns ErrScheduleNotFound when neither exists.
func FindScheduleFile(root, number string) (string, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(root, number+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("channel %s under %s: %w", number, root, ErrScheduleNotFound)
}

// ParseFile reads and parses a schedule YAML file.
func ParseFile(path string) (*ParsedSchedule, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrScheduleNotFound)
		}
		return nil, fmt.Errorf("reading schedule %s: %w", path, err)
	}
	if info.Size() > MaxScheduleFileSize {
		return nil, fmt.Errorf("%s is %d bytes: %w", path, info.Size(), ErrFileTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses schedule YAML into a ParsedSchedule. Unknown or malformed
// ops are recorded in Malformed and skipped; structural problems fail.
func Parse(data []byte) (*ParsedSchedule, error) {
	if len(data) > MaxScheduleFileSize {
		return nil, fmt.Errorf("%d bytes: %w", len(data), ErrFileTooLarge)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	if tag := findUnsafeTag(&doc); tag != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsafeTag, tag)
	}

	var raw rawSchedule
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	parsed := &ParsedSchedule{
		Name:         raw.Name,
		Description:  raw.Description,
		Content:      make(map[string]ContentRef, len(raw.Content)),
		Sequences:    make(map[string][]Op, len(raw.Sequences)),
		MainSequence: raw.MainSequence,
	}
	if parsed.MainSequence == "" {
		parsed.MainSequence = DefaultMainSequence
	}

	for _, c := range raw.Content {
		order := OrderChronological
		if strings.EqualFold(c.Order, string(OrderShuffle)) {
			order = OrderShuffle
		}
		parsed.Content[c.Key] = ContentRef{Collection: c.Collection, Order: order}
	}

	for name, nodes := range raw.Sequences {
		ops := make([]Op, 0, len(nodes))
		for i := range nodes {
			path := fmt.Sprintf("sequences.%s[%d]", name, i)
			op, err := parseOp(&nodes[i], path)
			if err != nil {
				var malformed MalformedDirectiveError
				if asMalformed(err, &malformed) {
					parsed.Malformed = append(parsed.Malformed, malformed)
					continue
				}
				return nil, err
			}
			ops = append(ops, op)
		}
		parsed.Sequences[name] = ops
	}

	for _, flags := range raw.Playout {
		if repeat, ok := flags["repeat"]; ok {
			parsed.Repeat = repeat
		}
	}

	return parsed, nil
}

type rawSchedule struct {
	Name         string                 `yaml:"name"`
	Description  string                 `yaml:"description"`
	Content      []rawContent           `yaml:"content"`
	Sequences    map[string][]yaml.Node `yaml:"sequences"`
	MainSequence string                 `yaml:"main_sequence"`
	Playout      []map[string]bool      `yaml:"playout"`
}

type rawContent struct {
	Key        string `yaml:"key"`
	Collection string `yaml:"collection"`
	Order      string `yaml:"order"`
}

type rawDurationFill struct {
	Content         string `yaml:"content"`
	Duration        string `yaml:"duration"`
	Filler          string `yaml:"filler"`
	DiscardAttempts int    `yaml:"discard_attempts"`
}

type rawPadToNext struct {
	Minutes  int    `yaml:"minutes"`
	Content  string `yaml:"content"`
	Fallback string `yaml:"fallback"`
}

type rawPadUntil struct {
	Time    string `yaml:"time"`
	Content string `yaml:"content"`
}

type rawWaitUntil struct {
	Time          string `yaml:"time"`
	Tomorrow      bool   `yaml:"tomorrow"`
	RewindOnReset bool   `yaml:"rewind_on_reset"`
}

type rawSkipItems struct {
	Content string `yaml:"content"`
	Expr    string `yaml:"expr"`
}

type rawRoll struct {
	Enabled  bool   `yaml:"enabled"`
	Sequence string `yaml:"sequence"`
}

// parseOp parses one sequence op node. Each op is a single-key mapping:
// the key names the variant and the value is a scalar shorthand or a
// nested mapping.
func parseOp(node *yaml.Node, path string) (Op, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return Op{}, MalformedDirectiveError{Path: path, Reason: "op must be a single-key mapping"}
	}

	keyNode, valueNode := node.Content[0], node.Content[1]
	kind := keyNode.Value

	switch kind {
	case "reference", "all":
		var key string
		if err := valueNode.Decode(&key); err != nil || key == "" {
			return Op{}, MalformedDirectiveError{Path: path, Reason: kind + " requires a content key"}
		}
		op := Op{Kind: OpReference, ContentKey: key}
		if kind == "all" {
			op.Kind = OpAll
		}
		return op, nil

	case "sequence", "shuffle_sequence":
		var key string
		if err := valueNode.Decode(&key); err != nil || key == "" {
			return Op{}, MalformedDirectiveError{Path: path, Reason: kind + " requires a sequence key"}
		}
		op := Op{Kind: OpSequence, SequenceKey: key}
		if kind == "shuffle_sequence" {
			op.Kind = OpShuffleSequence
		}
		return op, nil

	case "duration_fill":
		var raw rawDurationFill
		if err := valueNode.Decode(&raw); err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "duration_fill: " + err.Error()}
		}
		if raw.Content == "" || raw.Duration == "" {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "duration_fill requires content and duration"}
		}
		d, err := duration.ParseFlexible(raw.Duration)
		if err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "duration_fill: bad duration " + strconv.Quote(raw.Duration)}
		}
		return Op{
			Kind:            OpDurationFill,
			ContentKey:      raw.Content,
			Duration:        d.Seconds(),
			FillerKind:      raw.Filler,
			DiscardAttempts: raw.DiscardAttempts,
		}, nil

	case "pad_to_next":
		var raw rawPadToNext
		if err := valueNode.Decode(&raw); err != nil {
			// Scalar shorthand: just the minutes value.
			var minutes int
			if serr := valueNode.Decode(&minutes); serr != nil {
				return Op{}, MalformedDirectiveError{Path: path, Reason: "pad_to_next: " + err.Error()}
			}
			raw = rawPadToNext{Minutes: minutes}
		}
		if raw.Minutes <= 0 {
			raw.Minutes = defaultPadMinutes
		}
		return Op{
			Kind:        OpPadToNext,
			Minutes:     raw.Minutes,
			ContentKey:  raw.Content,
			FallbackKey: raw.Fallback,
		}, nil

	case "pad_until":
		var raw rawPadUntil
		if err := valueNode.Decode(&raw); err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "pad_until: " + err.Error()}
		}
		clock, err := parseTimeOfDay(raw.Time)
		if err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "pad_until: " + err.Error()}
		}
		return Op{Kind: OpPadUntil, ClockSeconds: clock, ContentKey: raw.Content}, nil

	case "wait_until":
		var raw rawWaitUntil
		if err := valueNode.Decode(&raw); err != nil {
			// Scalar shorthand: just the target time.
			var at string
			if serr := valueNode.Decode(&at); serr != nil {
				return Op{}, MalformedDirectiveError{Path: path, Reason: "wait_until: " + err.Error()}
			}
			raw = rawWaitUntil{Time: at}
		}
		clock, err := parseTimeOfDay(raw.Time)
		if err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "wait_until: " + err.Error()}
		}
		return Op{
			Kind:          OpWaitUntil,
			ClockSeconds:  clock,
			Tomorrow:      raw.Tomorrow,
			RewindOnReset: raw.RewindOnReset,
		}, nil

	case "skip_items":
		var raw rawSkipItems
		if err := valueNode.Decode(&raw); err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "skip_items: " + err.Error()}
		}
		if raw.Content == "" {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "skip_items requires a content key"}
		}
		if !skipExprPattern.MatchString(raw.Expr) {
			return Op{}, MalformedDirectiveError{Path: path, Reason: "skip_items: bad expression " + strconv.Quote(raw.Expr)}
		}
		return Op{Kind: OpSkipItems, ContentKey: raw.Content, SkipExpr: raw.Expr}, nil

	case "pre_roll", "mid_roll", "post_roll":
		op := Op{Kind: OpKind(kind)}

		var raw rawRoll
		if err := valueNode.Decode(&raw); err == nil && valueNode.Kind == yaml.MappingNode {
			op.Enabled = raw.Enabled
			op.SequenceKey = raw.Sequence
			return op, nil
		}

		// Scalar shorthand: on/off or a bool.
		var enabled bool
		if err := valueNode.Decode(&enabled); err == nil {
			op.Enabled = enabled
			return op, nil
		}
		var toggle string
		if err := valueNode.Decode(&toggle); err != nil {
			return Op{}, MalformedDirectiveError{Path: path, Reason: kind + ": expected on/off or mapping"}
		}
		switch strings.ToLower(toggle) {
		case "on":
			op.Enabled = true
		case "off":
			op.Enabled = false
		default:
			return Op{}, MalformedDirectiveError{Path: path, Reason: kind + ": bad toggle " + strconv.Quote(toggle)}
		}
		return op, nil

	default:
		return Op{}, MalformedDirectiveError{Path: path, Reason: "unknown op " + strconv.Quote(kind)}
	}
}

// safeTags is the core YAML schema. Anything else ("!custom",
// "!!python/object", ...) could trigger type instantiation elsewhere and
// is rejected outright.
var safeTags = map[string]bool{
	"!!str": true, "!!int": true, "!!float": true, "!!bool": true,
	"!!null": true, "!!map": true, "!!seq": true, "!!timestamp": true,
	"!!binary": true, "!!merge": true,
}

// findUnsafeTag walks the node tree looking for tags outside the core
// schema.
func findUnsafeTag(node *yaml.Node) string {
	if strings.HasPrefix(node.Tag, "!") && !safeTags[node.Tag] {
		return node.Tag
	}
	for _, child := range node.Content {
		if tag := findUnsafeTag(child); tag != "" {
			return tag
		}
	}
	return ""
}

// parseTimeOfDay parses "HH:MM" or "HH:MM:SS" into seconds since midnight.
func parseTimeOfDay(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("bad time of day %q", s)
	}

	var hms [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad time of day %q", s)
		}
		hms[i] = v
	}

	if hms[0] > 23 || hms[1] > 59 || hms[2] > 59 {
		return 0, fmt.Errorf("bad time of day %q", s)
	}
	return hms[0]*3600 + hms[1]*60 + hms[2], nil
}

// asMalformed is errors.As specialized for the concrete type.
func asMalformed(err error, target *MalformedDirectiveError) bool {
	m, ok := err.(MalformedDirectiveError)
	if ok {
		*target = m
	}
	return ok
}
