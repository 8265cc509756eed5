package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFFmpegNotFound indicates no usable ffmpeg binary on the PATH.
var ErrFFmpegNotFound = errors.New("ffmpeg binary not found")

// ImmediateExitError reports a process that exited before producing any
// output.
type ImmediateExitError struct {
	Code int
	Tail []string
}

func (e *ImmediateExitError) Error() string {
	return fmt.Sprintf("ffmpeg exited immediately with code %d: %s", e.Code, joinTail(e.Tail))
}

// FirstChunkTimeoutError reports a stream that never produced its first
// chunk within the deadline (including the extended retry).
type FirstChunkTimeoutError struct {
	Tail []string
}

func (e *FirstChunkTimeoutError) Error() string {
	return fmt.Sprintf("no output before first-chunk deadline: %s", joinTail(e.Tail))
}

// FatalDemuxError reports an unrecoverable demuxing failure reported on
// stderr mid-stream.
type FatalDemuxError struct {
	Tail []string
}

func (e *FatalDemuxError) Error() string {
	return fmt.Sprintf("fatal demux error: %s", joinTail(e.Tail))
}

func joinTail(tail []string) string {
	if len(tail) == 0 {
		return "(no stderr output)"
	}
	return strings.Join(tail, " | ")
}
