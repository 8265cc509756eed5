// Package mpegts keeps transport-stream chunk boundaries honest:
// chunks handed to late-joining clients must start on a packet boundary
// and lead with a PAT so decoders lock on immediately.
package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/asticode/go-astits"
)

// PacketSize is the fixed TS packet length.
const PacketSize = 188

// syncByte opens every TS packet.
const syncByte = 0x47

// patPID is the program association table PID.
const patPID = 0

// Aligner re-chunks a byte stream onto packet boundaries, carrying the
// partial tail between pushes.
type Aligner struct {
	rem []byte
}

// Push appends a chunk and returns the whole packets accumulated so
// far. The returned slice is nil when fewer than PacketSize bytes are
// buffered.
func (a *Aligner) Push(chunk []byte) []byte {
	a.rem = append(a.rem, chunk...)
	n := (len(a.rem) / PacketSize) * PacketSize
	if n == 0 {
		return nil
	}
	out := a.rem[:n:n]
	a.rem = append([]byte(nil), a.rem[n:]...)
	return out
}

// Pending reports the buffered partial packet length.
func (a *Aligner) Pending() int {
	return len(a.rem)
}

// Reset drops any partial tail, e.g. when the upstream item changes.
func (a *Aligner) Reset() {
	a.rem = nil
}

// IsAligned reports whether data is whole packets with sync bytes in
// place.
func IsAligned(data []byte) bool {
	if len(data) == 0 || len(data)%PacketSize != 0 {
		return false
	}
	for i := 0; i < len(data); i += PacketSize {
		if data[i] != syncByte {
			return false
		}
	}
	return true
}

// LeadsWithPAT reports whether the buffer's first packet is a PAT.
// Pre-warm buffers served to fresh clients must satisfy this.
func LeadsWithPAT(data []byte) bool {
	if len(data) < PacketSize || data[0] != syncByte {
		return false
	}

	dmx := newDemuxer(data[:PacketSize])
	pkt, err := dmx.NextPacket()
	if err != nil {
		return false
	}
	return pkt.Header.PID == patPID
}

// newDemuxer builds a demuxer with the packet size pinned. Auto-detection
// needs a second sync byte and cannot parse a buffer of one packet.
func newDemuxer(data []byte) *astits.Demuxer {
	return astits.NewDemuxer(context.Background(), bytes.NewReader(data),
		astits.DemuxerOptPacketSize(PacketSize))
}

// FindPATOffset scans aligned data for the first PAT packet and returns
// its byte offset, or -1 when none exists.
func FindPATOffset(data []byte) int {
	dmx := newDemuxer(data)
	offset := 0
	for {
		pkt, err := dmx.NextPacket()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, astits.ErrNoMorePackets) {
				return -1
			}
			return -1
		}
		if pkt.Header.PID == patPID {
			return offset
		}
		offset += PacketSize
	}
}
