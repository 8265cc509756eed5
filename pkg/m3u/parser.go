// Package m3u provides streaming M3U playlist parsing and writing.
// It supports standard M3U and extended M3U formats with EXTINF metadata
// and transparently decompresses gzip, bzip2, and xz playlists.
package m3u

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

// Entry represents a single channel entry in an M3U playlist.
type Entry struct {
	// Duration is the track duration in seconds (-1 for live streams).
	Duration int

	// TvgID is the EPG channel identifier.
	TvgID string

	// TvgName is the display name from tvg-name attribute.
	TvgName string

	// TvgLogo is the URL to the channel logo.
	TvgLogo string

	// GroupTitle is the category/group from group-title or #EXTGRP.
	GroupTitle string

	// ChannelNumber is the channel number from tvg-chno attribute.
	ChannelNumber int

	// Title is the display title from the EXTINF line.
	Title string

	// URL is the stream URL.
	URL string

	// Extra contains any additional attributes not explicitly parsed.
	Extra map[string]string
}

// Parser provides streaming M3U parsing with callback-based processing.
type Parser struct {
	// OnEntry is called for each parsed entry.
	OnEntry func(entry *Entry) error

	// OnError is called for recoverable parsing errors.
	// If nil, errors are silently ignored.
	OnError func(lineNum int, err error)
}

var (
	// Matches duration and attributes portion: #EXTINF:-1 tvg-id="..." tvg-name="...",Title
	extinfRegex = regexp.MustCompile(`^#EXTINF:\s*(-?\d+)\s*(.*)$`)

	// Matches key="value" or key=value patterns
	attrRegex = regexp.MustCompile(`([a-zA-Z0-9_-]+)=(?:"([^"]*)"|([^\s,]+))`)
)

// Parse parses an M3U playlist from a reader, calling OnEntry for each channel.
func (p *Parser) Parse(r io.Reader) error {
	if p.OnEntry == nil {
		return fmt.Errorf("OnEntry callback is required")
	}

	scanner := bufio.NewScanner(r)
	// Some playlists carry very long URLs with embedded tokens.
	const maxLineSize = 1024 * 1024
	buf := make([]byte, maxLineSize)
	scanner.Buffer(buf, maxLineSize)

	var (
		pending  *Entry
		group    string
		lineNum  int
		extended bool
	)

	emit := func(e *Entry) error {
		if e.GroupTitle == "" {
			e.GroupTitle = group
		}
		if err := p.OnEntry(e); err != nil {
			return fmt.Errorf("callback error at line %d: %w", lineNum, err)
		}
		return nil
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":

		case strings.HasPrefix(line, "#EXTM3U"):
			extended = true

		case strings.HasPrefix(line, "#EXTINF:"):
			entry, err := p.parseExtinf(line)
			if err != nil {
				p.handleError(lineNum, err)
				continue
			}
			pending = entry

		// #EXTGRP sets the group for subsequent entries that lack group-title.
		case strings.HasPrefix(line, "#EXTGRP:"):
			group = strings.TrimSpace(strings.TrimPrefix(line, "#EXTGRP:"))

		case strings.HasPrefix(line, "#"):
			// Unknown directive or comment.

		case pending != nil:
			pending.URL = line
			if err := emit(pending); err != nil {
				return err
			}
			pending = nil

		case extended:
			// URL without EXTINF, synthesize a minimal entry.
			if err := emit(&Entry{Duration: -1, URL: line, Title: titleFromURL(line)}); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning M3U: %w", err)
	}

	return nil
}

// Magic bytes for the compression formats playlist providers serve.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ParseCompressed parses a potentially compressed M3U playlist,
// detecting gzip, bzip2, and xz from magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) error {
	br := bufio.NewReader(r)

	header, err := br.Peek(len(magicXZ))
	if err != nil && err != io.EOF {
		return fmt.Errorf("peeking header: %w", err)
	}

	switch {
	case bytesHavePrefix(header, magicGzip):
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzr.Close()
		return p.Parse(gzr)

	case bytesHavePrefix(header, magicBzip2):
		bzr, err := bzip2.NewReader(br, nil)
		if err != nil {
			return fmt.Errorf("creating bzip2 reader: %w", err)
		}
		defer bzr.Close()
		return p.Parse(bzr)

	case bytesHavePrefix(header, magicXZ):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		return p.Parse(xzr)

	default:
		return p.Parse(br)
	}
}

func bytesHavePrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (p *Parser) parseExtinf(line string) (*Entry, error) {
	matches := extinfRegex.FindStringSubmatch(line)
	if matches == nil {
		return nil, fmt.Errorf("invalid EXTINF format")
	}

	duration, _ := strconv.Atoi(matches[1])
	attrs, title := splitExtinfTail(matches[2])

	entry := &Entry{
		Duration: duration,
		Title:    title,
		Extra:    make(map[string]string),
	}

	for _, match := range attrRegex.FindAllStringSubmatch(attrs, -1) {
		value := match[2]
		if value == "" {
			value = match[3]
		}
		entry.setAttr(strings.ToLower(match[1]), value)
	}

	return entry, nil
}

func (e *Entry) setAttr(key, value string) {
	switch key {
	case "tvg-id":
		e.TvgID = value
	case "tvg-name":
		e.TvgName = value
	case "tvg-logo":
		e.TvgLogo = value
	case "group-title":
		e.GroupTitle = value
	case "tvg-chno":
		e.ChannelNumber, _ = strconv.Atoi(value)
	default:
		e.Extra[key] = value
	}
}

// splitExtinfTail splits the EXTINF remainder into the attribute block and
// the display title. The title follows the last comma outside quotes.
func splitExtinfTail(s string) (attrs, title string) {
	inQuotes := false
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				return s[:i], strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s, ""
}

// titleFromURL derives a fallback title from the last path segment of a
// stream URL, stripping any query string and extension.
func titleFromURL(url string) string {
	name := url
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.IndexByte(name, '?'); idx > 0 {
		name = name[:idx]
	}
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	if name == "" {
		return "Unknown"
	}
	return name
}

func (p *Parser) handleError(lineNum int, err error) {
	if p.OnError != nil {
		p.OnError(lineNum, err)
	}
}
