package schedule

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxItems bounds a single expansion.
const DefaultMaxItems = 1000

// fillOvershoot is how far past a fill target the greedy picker may run.
const fillOvershoot = 1.10

// ExpandOptions parameterize one expansion run.
type ExpandOptions struct {
	// ChannelNumber feeds the shuffle seed.
	ChannelNumber string

	// Now anchors the time cursor and the day-of-year seed component.
	Now time.Time

	// MaxItems caps the output length (default DefaultMaxItems).
	MaxItems int

	Logger *slog.Logger
}

// Expand walks the schedule's main sequence and produces an ordered
// playout list. Deterministic for the same channel, day, and inputs.
// Unresolved content or sequence keys degrade to empty emissions, each
// logged once.
func Expand(parsed *ParsedSchedule, lookup Lookup, opts ExpandOptions) []PlayoutItem {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	e := &expander{
		parsed:   parsed,
		lookup:   lookup,
		opts:     opts,
		cursor:   opts.Now,
		views:    make(map[string]*contentView),
		seqOps:   make(map[string][]Op),
		shuffles: make(map[string]int),
		logged:   make(map[string]bool),
		active:   make(map[string]bool),
	}

	if _, ok := parsed.Sequences[parsed.MainSequence]; !ok {
		opts.Logger.Warn("schedule has no main sequence", "sequence", parsed.MainSequence)
		return nil
	}

	e.expandSequence(parsed.MainSequence, true)

	if parsed.Repeat && len(e.out) > 0 && len(e.out) < opts.MaxItems {
		base := make([]PlayoutItem, len(e.out))
		copy(base, e.out)
		for len(e.out) < opts.MaxItems {
			for _, it := range base {
				if len(e.out) >= opts.MaxItems {
					break
				}
				// Wall-clock anchors only hold for the first walk.
				it.StartTime = nil
				e.out = append(e.out, it)
			}
		}
	}

	if len(e.out) > opts.MaxItems {
		e.out = e.out[:opts.MaxItems]
	}
	return e.out
}

// contentView is a cached, ordered snapshot of a collection with a
// consumption cursor shared by the ops of one sequence.
type contentView struct {
	items []Item
	pos   int
}

func (v *contentView) next() (Item, bool) {
	if len(v.items) == 0 {
		return Item{}, false
	}
	item := v.items[v.pos%len(v.items)]
	v.pos++
	return item, true
}

type rollSlot struct {
	enabled  bool
	sequence string
}

type expander struct {
	parsed *ParsedSchedule
	lookup Lookup
	opts   ExpandOptions

	cursor       time.Time
	pendingStart *time.Time

	pre, mid, post rollSlot

	views    map[string]*contentView
	seqOps   map[string][]Op
	shuffles map[string]int
	logged   map[string]bool
	active   map[string]bool

	out []PlayoutItem
}

func (e *expander) full() bool { return len(e.out) >= e.opts.MaxItems }

func (e *expander) warnOnce(key, msg string, args ...any) {
	if e.logged[key] {
		return
	}
	e.logged[key] = true
	e.opts.Logger.Warn(msg, args...)
}

// ops returns the (possibly re-shuffled) op list for a sequence.
func (e *expander) ops(name string) ([]Op, bool) {
	if ops, ok := e.seqOps[name]; ok {
		return ops, true
	}
	ops, ok := e.parsed.Sequences[name]
	return ops, ok
}

func (e *expander) expandSequence(name string, withRolls bool) {
	if e.active[name] {
		e.warnOnce("cycle:"+name, "schedule sequence references itself", "sequence", name)
		return
	}
	ops, ok := e.ops(name)
	if !ok {
		e.warnOnce("seq:"+name, "schedule references unknown sequence", "sequence", name)
		return
	}

	e.active[name] = true
	defer delete(e.active, name)

	for _, op := range ops {
		if e.full() {
			return
		}
		e.applyOp(name, op, withRolls)
	}
}

func (e *expander) applyOp(seqName string, op Op, withRolls bool) {
	switch op.Kind {
	case OpPreRoll:
		e.pre = rollSlot{enabled: op.Enabled, sequence: op.SequenceKey}
	case OpMidRoll:
		e.mid = rollSlot{enabled: op.Enabled, sequence: op.SequenceKey}
	case OpPostRoll:
		e.post = rollSlot{enabled: op.Enabled, sequence: op.SequenceKey}

	case OpSequence:
		e.expandSequence(op.SequenceKey, withRolls)

	case OpShuffleSequence:
		e.reshuffleSequence(op.SequenceKey)

	case OpWaitUntil:
		e.waitUntil(op)

	case OpSkipItems:
		e.skipItems(seqName, op)

	case OpReference:
		view := e.view(seqName, op.ContentKey)
		if item, ok := view.next(); ok {
			e.emit(seqName, retitle([]PlayoutItem{{Media: item}}, op.CustomTitle), withRolls)
		}

	case OpAll:
		view := e.view(seqName, op.ContentKey)
		batch := make([]PlayoutItem, 0, len(view.items))
		for _, item := range view.items {
			batch = append(batch, PlayoutItem{Media: item})
		}
		e.emit(seqName, retitle(batch, op.CustomTitle), withRolls)

	case OpDurationFill:
		batch := e.durationFill(seqName, op.ContentKey, op.Duration, op.FillerKind, op.DiscardAttempts)
		e.emit(seqName, retitle(batch, op.CustomTitle), withRolls)

	case OpPadToNext:
		e.pad(seqName, op, e.nextBoundary(op.Minutes), withRolls)

	case OpPadUntil:
		e.pad(seqName, op, e.nextClock(op.ClockSeconds), withRolls)
	}
}

func retitle(batch []PlayoutItem, title string) []PlayoutItem {
	if title == "" {
		return batch
	}
	for i := range batch {
		batch[i].CustomTitle = title
	}
	return batch
}

// emit appends a batch of playout items, wrapping them with the active
// roll slots: pre-roll before every item, mid-roll once after the first
// item of a multi-item batch, post-roll after the last.
func (e *expander) emit(seqName string, batch []PlayoutItem, withRolls bool) {
	if len(batch) == 0 {
		return
	}
	for i, item := range batch {
		if e.full() {
			return
		}
		if withRolls && e.pre.enabled {
			e.expandRoll(e.pre.sequence, string(OpPreRoll))
		}
		e.append(item)
		if i == 0 && len(batch) > 1 && withRolls && e.mid.enabled {
			e.expandRoll(e.mid.sequence, string(OpMidRoll))
		}
	}
	if withRolls && e.post.enabled {
		e.expandRoll(e.post.sequence, string(OpPostRoll))
	}
}

// expandRoll expands a roll sequence inline. Roll content never nests
// further rolls, and untagged emissions inherit the roll kind.
func (e *expander) expandRoll(name, kind string) {
	from := len(e.out)
	e.expandSequence(name, false)
	for i := from; i < len(e.out); i++ {
		if e.out[i].FillerKind == "" {
			e.out[i].FillerKind = kind
		}
	}
}

// append writes one item to the output, stamps any pending wall-clock
// anchor, and advances the time cursor.
func (e *expander) append(item PlayoutItem) {
	if e.pendingStart != nil {
		at := *e.pendingStart
		item.StartTime = &at
		e.pendingStart = nil
	}
	e.out = append(e.out, item)
	e.cursor = e.cursor.Add(time.Duration(item.Media.EffectiveDuration() * float64(time.Second)))
}

// view returns the cached collection view for (sequence, content key).
func (e *expander) view(seqName, contentKey string) *contentView {
	cacheKey := seqName + "\x00" + contentKey
	if v, ok := e.views[cacheKey]; ok {
		return v
	}

	v := &contentView{}
	e.views[cacheKey] = v

	ref, ok := e.parsed.Content[contentKey]
	if !ok {
		e.warnOnce("content:"+contentKey, "schedule references unknown content key", "content", contentKey)
		return v
	}

	items, ok := e.lookup.CollectionItems(ref.Collection)
	if !ok {
		e.warnOnce("collection:"+ref.Collection, "schedule references unknown collection",
			"content", contentKey, "collection", ref.Collection)
		return v
	}

	if ref.Order == OrderShuffle {
		seed := shuffleSeed(e.opts.ChannelNumber, e.opts.Now, contentKey)
		items = shuffleItems(seed, items)
	} else {
		items = append([]Item(nil), items...)
	}
	v.items = items
	return v
}

// durationFill greedily picks items whose durations sum to at least
// target seconds with at most 10% overshoot. Items that would overflow
// may be skipped up to discardAttempts times.
func (e *expander) durationFill(seqName, contentKey string, target float64, fillerKind string, discardAttempts int) []PlayoutItem {
	if target <= 0 {
		return nil
	}
	view := e.view(seqName, contentKey)
	if len(view.items) == 0 {
		return nil
	}

	budget := target * fillOvershoot
	var sum float64
	discards := 0
	out := make([]PlayoutItem, 0, 8)

	for sum < target && len(out) < e.opts.MaxItems {
		item, ok := view.next()
		if !ok {
			break
		}
		d := item.EffectiveDuration()
		if sum+d > budget {
			discards++
			if discards > discardAttempts {
				break
			}
			continue
		}
		out = append(out, PlayoutItem{Media: item, FillerKind: fillerKind})
		sum += d
	}
	return out
}

// pad fills the gap between the cursor and an absolute boundary with a
// duration fill over the op's content key, or its fallback when the
// primary yields nothing.
func (e *expander) pad(seqName string, op Op, boundary time.Time, withRolls bool) {
	gap := boundary.Sub(e.cursor).Seconds()
	if gap <= 0 {
		return
	}

	batch := e.durationFill(seqName, op.ContentKey, gap, op.FillerKind, op.DiscardAttempts)
	if len(batch) == 0 && op.FallbackKey != "" {
		batch = e.durationFill(seqName, op.FallbackKey, gap, op.FillerKind, op.DiscardAttempts)
	}
	e.emit(seqName, batch, withRolls)
}

// nextBoundary is the next wall-clock multiple of m minutes after the
// cursor.
func (e *expander) nextBoundary(m int) time.Time {
	if m <= 0 {
		m = defaultPadMinutes
	}
	block := time.Duration(m) * time.Minute
	day := e.dayStart()
	into := e.cursor.Sub(day)
	return day.Add((into/block + 1) * block)
}

// nextClock is today's instant at the given seconds-since-midnight,
// rolled to tomorrow when already past.
func (e *expander) nextClock(clockSeconds int) time.Time {
	at := e.dayStart().Add(time.Duration(clockSeconds) * time.Second)
	if !at.After(e.cursor) {
		at = at.Add(24 * time.Hour)
	}
	return at
}

func (e *expander) dayStart() time.Time {
	y, m, d := e.cursor.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.cursor.Location())
}

// waitUntil moves the cursor without emitting. The next emitted item is
// stamped with the new cursor as its absolute start.
func (e *expander) waitUntil(op Op) {
	target := e.dayStart().Add(time.Duration(op.ClockSeconds) * time.Second)
	switch {
	case op.Tomorrow:
		target = target.Add(24 * time.Hour)
	case target.Before(e.cursor) && !op.RewindOnReset:
		target = target.Add(24 * time.Hour)
	}
	e.cursor = target
	at := target
	e.pendingStart = &at
}

// skipItems drops items from the front of the cached view. The
// expression is validated at parse time.
func (e *expander) skipItems(seqName string, op Op) {
	view := e.view(seqName, op.ContentKey)
	n := len(view.items)
	if n == 0 {
		return
	}

	var skip int
	switch {
	case op.SkipExpr == "count":
		skip = n
	case op.SkipExpr == "random":
		seed := shuffleSeed(e.opts.ChannelNumber, e.opts.Now, "skip:"+op.ContentKey)
		skip = rand.New(rand.NewSource(seed)).Intn(n)
	case strings.HasPrefix(op.SkipExpr, "count/"):
		div, err := strconv.Atoi(strings.TrimPrefix(op.SkipExpr, "count/"))
		if err != nil || div <= 0 {
			return
		}
		skip = n / div
	default:
		skip, _ = strconv.Atoi(op.SkipExpr)
	}
	view.pos += skip
}

// reshuffleSequence re-permutes a sequence's op order with the seeded
// RNG. Repeated shuffles of the same sequence advance the seed so they
// differ from each other but stay reproducible.
func (e *expander) reshuffleSequence(name string) {
	ops, ok := e.ops(name)
	if !ok {
		e.warnOnce("seq:"+name, "schedule references unknown sequence", "sequence", name)
		return
	}

	e.shuffles[name]++
	seed := shuffleSeed(e.opts.ChannelNumber, e.opts.Now,
		fmt.Sprintf("seq:%s:%d", name, e.shuffles[name]))

	shuffled := make([]Op, len(ops))
	for i, j := range seededPermutation(seed, len(ops)) {
		shuffled[i] = ops[j]
	}
	e.seqOps[name] = shuffled
}
