package ffmpeg

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// stderrRingSize is how many recent stderr lines are retained.
const stderrRingSize = 100

// stderrTailSize is how many lines error reports quote.
const stderrTailSize = 10

// lineSeverity classifies one stderr line.
type lineSeverity int

const (
	severityDebug lineSeverity = iota
	severityWarn
	severityError
	severityFatal
)

// noisyPatterns are downgraded to debug: transient decoder and network
// chatter that FFmpeg recovers from on its own.
var noisyPatterns = []string{
	"failed to initialise vaapi",
	"failed setup for format",
	"hwaccel initialisation returned error",
	"error while decoding mb",
	"concealing",
	"will reconnect",
	"skip ",
}

// fatalPatterns end the stream: the demuxer cannot make progress.
var fatalPatterns = []string{
	"error during demuxing",
}

// classifyStderrLine maps one line to a severity.
func classifyStderrLine(line string) lineSeverity {
	lower := strings.ToLower(line)

	for _, p := range fatalPatterns {
		if strings.Contains(lower, p) {
			return severityFatal
		}
	}
	if strings.Contains(lower, "demuxing") && strings.Contains(lower, "input/output error") {
		return severityFatal
	}

	for _, p := range noisyPatterns {
		if strings.Contains(lower, p) {
			return severityDebug
		}
	}

	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		return severityError
	}
	if strings.Contains(lower, "warning") {
		return severityWarn
	}
	return severityDebug
}

// stderrMonitor drains an FFmpeg stderr pipe, keeps a bounded ring of
// recent lines, and raises a flag on fatal demux errors.
type stderrMonitor struct {
	logger *slog.Logger

	mu    sync.Mutex
	ring  []string
	fatal bool
	done  chan struct{}
}

func newStderrMonitor(logger *slog.Logger) *stderrMonitor {
	return &stderrMonitor{
		logger: logger,
		ring:   make([]string, 0, stderrRingSize),
		done:   make(chan struct{}),
	}
}

// drain consumes the pipe until EOF. Run it in its own goroutine; the
// child blocks on a full pipe otherwise.
func (m *stderrMonitor) drain(r io.Reader) {
	defer close(m.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m.record(line)

		switch classifyStderrLine(line) {
		case severityFatal:
			m.mu.Lock()
			m.fatal = true
			m.mu.Unlock()
			m.logger.Error("ffmpeg fatal stderr", "line", line)
		case severityError:
			m.logger.Error("ffmpeg stderr", "line", line)
		case severityWarn:
			m.logger.Warn("ffmpeg stderr", "line", line)
		default:
			m.logger.Debug("ffmpeg stderr", "line", line)
		}
	}
}

func (m *stderrMonitor) record(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ring) == stderrRingSize {
		copy(m.ring, m.ring[1:])
		m.ring = m.ring[:stderrRingSize-1]
	}
	m.ring = append(m.ring, line)
}

// isFatal reports whether a fatal demux line was seen.
func (m *stderrMonitor) isFatal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

// tail returns the most recent lines for error reports.
func (m *stderrMonitor) tail() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := len(m.ring) - stderrTailSize
	if start < 0 {
		start = 0
	}
	out := make([]string, len(m.ring)-start)
	copy(out, m.ring[start:])
	return out
}

// wait blocks until the drainer finishes.
func (m *stderrMonitor) wait() {
	<-m.done
}
