package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgrayson/streamtv/internal/config"
)

// writeStub writes a shell script that stands in for ffmpeg.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func stubStreamer(t *testing.T, script string) *Streamer {
	return NewStreamer(&config.FFmpegConfig{FFmpegPath: writeStub(t, script)}, nil, nil)
}

func collect(t *testing.T, st *Stream) int {
	t.Helper()
	total := 0
	for chunk := range st.Chunks() {
		total += len(chunk)
	}
	return total
}

func TestStreamCleanEOF(t *testing.T) {
	s := stubStreamer(t, "head -c 16384 /dev/zero\nexit 0\n")
	st, err := s.Stream(context.Background(), StreamRequest{URL: "https://example.com/a.ts"})
	require.NoError(t, err)

	total := collect(t, st)
	assert.Equal(t, 16384, total)
	assert.NoError(t, st.Err())
}

func TestStreamImmediateExit(t *testing.T) {
	s := stubStreamer(t, "echo 'Error opening input: not found' >&2\nexit 3\n")
	st, err := s.Stream(context.Background(), StreamRequest{URL: "https://example.com/a.ts"})
	require.NoError(t, err)

	assert.Zero(t, collect(t, st))

	var exitErr *ImmediateExitError
	require.ErrorAs(t, st.Err(), &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, joinTail(exitErr.Tail), "Error opening input")
}

func TestStreamFatalDemux(t *testing.T) {
	s := stubStreamer(t, `
head -c 8192 /dev/zero
echo 'Error during demuxing: Input/output error' >&2
sleep 1
head -c 8192 /dev/zero
sleep 30
`)
	st, err := s.Stream(context.Background(), StreamRequest{URL: "https://example.com/a.ts"})
	require.NoError(t, err)

	total := collect(t, st)
	assert.GreaterOrEqual(t, total, 8192)

	var fatal *FatalDemuxError
	require.ErrorAs(t, st.Err(), &fatal)
	assert.Contains(t, joinTail(fatal.Tail), "Error during demuxing")
}

func TestStreamStop(t *testing.T) {
	s := stubStreamer(t, `
while true; do
  head -c 8192 /dev/zero
  sleep 0.1
done
`)
	st, err := s.Stream(context.Background(), StreamRequest{URL: "https://example.com/a.ts"})
	require.NoError(t, err)

	// Take a couple of chunks, then tear down.
	<-st.Chunks()
	<-st.Chunks()

	done := make(chan struct{})
	go func() {
		st.Stop()
		close(done)
	}()

	for range st.Chunks() {
	}
	select {
	case <-done:
	case <-time.After(termGrace + 5*time.Second):
		t.Fatal("Stop did not return")
	}
	assert.NoError(t, st.Err())
}

func TestStreamContextCancel(t *testing.T) {
	s := stubStreamer(t, "head -c 8192 /dev/zero\nsleep 30\n")
	ctx, cancel := context.WithCancel(context.Background())

	st, err := s.Stream(ctx, StreamRequest{URL: "https://example.com/a.ts"})
	require.NoError(t, err)

	<-st.Chunks()
	cancel()

	for range st.Chunks() {
	}
	assert.NoError(t, st.Err())
}

func TestStreamFirstChunkBudget(t *testing.T) {
	s := stubStreamer(t, "sleep 30\n")
	start := time.Now()

	st, err := s.Stream(context.Background(), StreamRequest{
		URL:               "https://example.com/a.ts",
		FirstChunkTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Zero(t, collect(t, st))

	var timeout *FirstChunkTimeoutError
	require.ErrorAs(t, st.Err(), &timeout)
	// The flat budget applies with no retry extension.
	assert.Less(t, time.Since(start), firstChunkDeadline)
}

func TestStreamFFmpegNotFound(t *testing.T) {
	s := NewStreamer(&config.FFmpegConfig{FFmpegPath: "/nonexistent/ffmpeg"}, nil, nil)
	_, err := s.Stream(context.Background(), StreamRequest{URL: "https://example.com/a.ts"})
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
}
