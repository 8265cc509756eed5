package ffmpeg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/tgrayson/streamtv/internal/config"
)

const (
	// streamChunkSize is the stdout read size; a multiple of the
	// 188-byte TS packet keeps downstream alignment cheap.
	streamChunkSize = 8 * 1024

	// firstChunkDeadline is the initial wait for output.
	firstChunkDeadline = 15 * time.Second

	// firstChunkRetryDeadline is the single extended wait after the
	// initial deadline lapses.
	firstChunkRetryDeadline = 10 * time.Second

	// chunkSoftDeadline is the steady-state wait between chunks. When
	// it lapses with the process alive and no fatal flag, we keep
	// waiting.
	chunkSoftDeadline = 5 * time.Second

	// termGrace is how long SIGTERM gets before SIGKILL.
	termGrace = 5 * time.Second
)

// Streamer runs FFmpeg children producing MPEG-TS chunk streams.
type Streamer struct {
	builder *StreamCommandBuilder
	logger  *slog.Logger
}

// NewStreamer builds a Streamer. availableAccels comes from startup
// hardware detection.
func NewStreamer(cfg *config.FFmpegConfig, availableAccels []string, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		builder: NewStreamCommandBuilder(cfg, availableAccels),
		logger:  logger.With("component", "ffmpeg"),
	}
}

// Stream spawns FFmpeg for the request and returns a running stream.
// The caller must drain Chunks() and call Stop() when done; cancelling
// ctx also tears the child down.
func (s *Streamer) Stream(ctx context.Context, req StreamRequest) (*Stream, error) {
	command := s.builder.Build(req)

	binary, err := exec.LookPath(command.Binary)
	if err != nil {
		return nil, ErrFFmpegNotFound
	}

	streamCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(streamCtx, binary, command.Args...)
	cmd.Cancel = func() error {
		// Context cancellation goes through our graceful path.
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = termGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}
	s.logger.Debug("ffmpeg started", "pid", cmd.Process.Pid, "url", truncate(req.URL))

	monitor := newStderrMonitor(s.logger)
	go monitor.drain(stderr)

	st := &Stream{
		cmd:         cmd,
		cancel:      cancel,
		monitor:     monitor,
		chunks:      make(chan []byte, 16),
		done:        make(chan struct{}),
		logger:      s.logger,
		firstBudget: req.FirstChunkTimeout,
	}
	go st.pump(streamCtx, stdout)
	return st, nil
}

// Stream is one running FFmpeg child and its chunk feed.
type Stream struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	monitor *stderrMonitor
	chunks  chan []byte
	logger  *slog.Logger

	// firstBudget is the caller's flat first-chunk budget; zero means
	// the default deadline with its single retry extension.
	firstBudget time.Duration

	done chan struct{}

	mu  sync.Mutex
	err error

	stopOnce sync.Once
}

// Chunks delivers stdout in order. Closed on stream end; check Err()
// afterwards.
func (st *Stream) Chunks() <-chan []byte {
	return st.chunks
}

// Err reports why the stream ended. Nil means clean EOF.
func (st *Stream) Err() error {
	<-st.done
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Stop tears the child down: SIGTERM via context cancel, grace,
// SIGKILL, stderr drainer joined. Safe to call more than once.
func (st *Stream) Stop() {
	st.stopOnce.Do(func() {
		st.cancel()
		select {
		case <-st.done:
		case <-time.After(2 * termGrace):
			if p := st.cmd.Process; p != nil {
				_ = p.Kill()
			}
			<-st.done
		}
	})
}

type readResult struct {
	chunk []byte
	err   error
}

// pump reads stdout and applies the chunk deadlines.
func (st *Stream) pump(ctx context.Context, stdout io.ReadCloser) {
	defer close(st.done)
	defer close(st.chunks)

	readCh := make(chan readResult)
	// The reader must never block forever on a pump that already
	// returned.
	defer func() {
		go func() {
			for range readCh {
			}
		}()
	}()
	go func() {
		defer close(readCh)
		for {
			buf := make([]byte, streamChunkSize)
			n, err := stdout.Read(buf)
			if n > 0 {
				readCh <- readResult{chunk: buf[:n]}
			}
			if err != nil {
				readCh <- readResult{err: err}
				return
			}
		}
	}()

	var (
		gotFirst     bool
		retried      bool
		bytesWritten int64
	)
	firstDeadline := firstChunkDeadline
	if st.firstBudget > 0 {
		firstDeadline = st.firstBudget
		retried = true
	}
	deadline := time.NewTimer(firstDeadline)
	defer deadline.Stop()

	finish := func(err error) {
		st.reap()
		st.monitor.wait()
		st.mu.Lock()
		st.err = err
		st.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			// Cancelled streams end clean: Stop is not an error.
			finish(nil)
			return

		case res, ok := <-readCh:
			if !ok || res.err != nil {
				st.handleEOF(finish, bytesWritten)
				return
			}
			gotFirst = true
			bytesWritten += int64(len(res.chunk))

			select {
			case st.chunks <- res.chunk:
			case <-ctx.Done():
				finish(nil)
				return
			}

			if st.monitor.isFatal() {
				finish(&FatalDemuxError{Tail: st.monitor.tail()})
				return
			}
			resetTimer(deadline, chunkSoftDeadline)

		case <-deadline.C:
			switch {
			case !gotFirst && !retried:
				retried = true
				st.logger.Warn("no first chunk yet, extending deadline",
					"extra", firstChunkRetryDeadline)
				deadline.Reset(firstChunkRetryDeadline)
			case !gotFirst:
				finish(&FirstChunkTimeoutError{Tail: st.monitor.tail()})
				return
			case st.monitor.isFatal():
				finish(&FatalDemuxError{Tail: st.monitor.tail()})
				return
			default:
				// Process alive, no fatal flag: keep waiting.
				resetTimer(deadline, chunkSoftDeadline)
			}
		}
	}
}

// handleEOF decides what a closed stdout means.
func (st *Stream) handleEOF(finish func(error), bytesWritten int64) {
	exitCode := st.reap()
	st.monitor.wait()

	var err error
	switch {
	case st.monitor.isFatal():
		err = &FatalDemuxError{Tail: st.monitor.tail()}
	case bytesWritten == 0:
		err = &ImmediateExitError{Code: exitCode, Tail: st.monitor.tail()}
	}

	st.mu.Lock()
	st.err = err
	st.mu.Unlock()
}

// reap terminates the child if needed and collects its exit status.
func (st *Stream) reap() int {
	if p := st.cmd.Process; p != nil {
		_ = p.Signal(syscall.SIGTERM)
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- st.cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitDone:
	case <-time.After(termGrace):
		if p := st.cmd.Process; p != nil {
			_ = p.Kill()
		}
		waitErr = <-waitDone
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return 0
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func truncate(s string) string {
	if len(s) > 120 {
		return s[:120] + "…"
	}
	return s
}
