package m3u

import (
	"bytes"
	"compress/gzip"
	"errors"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/ulikunitz/xz"
)

func collectEntries(t *testing.T, content string) []*Entry {
	t.Helper()

	var entries []*Entry
	p := &Parser{
		OnEntry: func(entry *Entry) error {
			entries = append(entries, entry)
			return nil
		},
	}
	if err := p.Parse(strings.NewReader(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return entries
}

func TestParser_BasicParsing(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-id="channel1" tvg-name="Channel One" tvg-logo="http://example.com/logo.png" group-title="News",Channel 1 HD
http://example.com/stream1.m3u8
#EXTINF:-1 tvg-id="channel2" tvg-name="Channel Two" group-title="Sports",Channel 2
http://example.com/stream2.m3u8
`

	entries := collectEntries(t, content)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	e1 := entries[0]
	if e1.TvgID != "channel1" {
		t.Errorf("expected tvg-id 'channel1', got '%s'", e1.TvgID)
	}
	if e1.TvgName != "Channel One" {
		t.Errorf("expected tvg-name 'Channel One', got '%s'", e1.TvgName)
	}
	if e1.TvgLogo != "http://example.com/logo.png" {
		t.Errorf("expected tvg-logo 'http://example.com/logo.png', got '%s'", e1.TvgLogo)
	}
	if e1.GroupTitle != "News" {
		t.Errorf("expected group-title 'News', got '%s'", e1.GroupTitle)
	}
	if e1.Title != "Channel 1 HD" {
		t.Errorf("expected title 'Channel 1 HD', got '%s'", e1.Title)
	}
	if e1.URL != "http://example.com/stream1.m3u8" {
		t.Errorf("expected URL 'http://example.com/stream1.m3u8', got '%s'", e1.URL)
	}
	if e1.Duration != -1 {
		t.Errorf("expected duration -1, got %d", e1.Duration)
	}

	if entries[1].GroupTitle != "Sports" {
		t.Errorf("expected group-title 'Sports', got '%s'", entries[1].GroupTitle)
	}
}

func TestParser_ChannelNumber(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-id="ch1" tvg-chno="42",Channel with Number
http://example.com/stream.m3u8
`

	entries := collectEntries(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ChannelNumber != 42 {
		t.Errorf("expected channel number 42, got %d", entries[0].ChannelNumber)
	}
}

func TestParser_ExtraAttributes(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-id="ch1" custom-attr="custom-value" another="test",Channel
http://example.com/stream.m3u8
`

	entries := collectEntries(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Extra["custom-attr"] != "custom-value" {
		t.Errorf("expected extra attr 'custom-value', got '%s'", entries[0].Extra["custom-attr"])
	}
	if entries[0].Extra["another"] != "test" {
		t.Errorf("expected extra attr 'test', got '%s'", entries[0].Extra["another"])
	}
}

func TestParser_ExtGrp(t *testing.T) {
	content := `#EXTM3U
#EXTGRP:Documentaries
#EXTINF:-1 tvg-id="ch1",First
http://example.com/1.ts
#EXTINF:-1 tvg-id="ch2" group-title="Movies",Second
http://example.com/2.ts
#EXTINF:-1 tvg-id="ch3",Third
http://example.com/3.ts
`

	entries := collectEntries(t, content)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].GroupTitle != "Documentaries" {
		t.Errorf("expected group from #EXTGRP, got '%s'", entries[0].GroupTitle)
	}
	// group-title on the EXTINF line wins over #EXTGRP
	if entries[1].GroupTitle != "Movies" {
		t.Errorf("expected group-title 'Movies', got '%s'", entries[1].GroupTitle)
	}
	if entries[2].GroupTitle != "Documentaries" {
		t.Errorf("expected group from #EXTGRP to persist, got '%s'", entries[2].GroupTitle)
	}
}

func TestParser_TitleWithCommaInQuotes(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1 tvg-name="News, Weather & Sports",The Title
http://example.com/stream.ts
`

	entries := collectEntries(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].TvgName != "News, Weather & Sports" {
		t.Errorf("comma inside quotes mangled: '%s'", entries[0].TvgName)
	}
	if entries[0].Title != "The Title" {
		t.Errorf("expected title 'The Title', got '%s'", entries[0].Title)
	}
}

func TestParser_URLWithoutExtinf(t *testing.T) {
	content := `#EXTM3U
http://example.com/streams/morning-show.m3u8?token=abc
`

	entries := collectEntries(t, content)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Title != "morning-show" {
		t.Errorf("expected synthesized title 'morning-show', got '%s'", entries[0].Title)
	}
}

func TestParser_CallbackError(t *testing.T) {
	content := `#EXTM3U
#EXTINF:-1,Channel
http://example.com/stream.ts
`

	wantErr := errors.New("stop")
	p := &Parser{
		OnEntry: func(entry *Entry) error { return wantErr },
	}
	err := p.Parse(strings.NewReader(content))
	if err == nil || !strings.Contains(err.Error(), "stop") {
		t.Fatalf("expected callback error to propagate, got %v", err)
	}
}

func TestParser_MissingCallback(t *testing.T) {
	p := &Parser{}
	if err := p.Parse(strings.NewReader("#EXTM3U\n")); err == nil {
		t.Fatal("expected error when OnEntry is nil")
	}
}

func TestParser_OnErrorCallback(t *testing.T) {
	content := `#EXTM3U
#EXTINF:not-a-number,Broken
http://example.com/stream.ts
`

	var reportedLine int
	p := &Parser{
		OnEntry: func(entry *Entry) error { return nil },
		OnError: func(lineNum int, err error) { reportedLine = lineNum },
	}
	if err := p.Parse(strings.NewReader(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reportedLine != 2 {
		t.Errorf("expected error reported at line 2, got %d", reportedLine)
	}
}

const compressedFixture = `#EXTM3U
#EXTINF:-1 tvg-id="ch1" group-title="News",Compressed Channel
http://example.com/stream.ts
`

func parseCompressed(t *testing.T, data []byte) []*Entry {
	t.Helper()

	var entries []*Entry
	p := &Parser{
		OnEntry: func(entry *Entry) error {
			entries = append(entries, entry)
			return nil
		},
	}
	if err := p.ParseCompressed(bytes.NewReader(data)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return entries
}

func TestParseCompressed_Plain(t *testing.T) {
	entries := parseCompressed(t, []byte(compressedFixture))
	if len(entries) != 1 || entries[0].TvgID != "ch1" {
		t.Fatalf("plain passthrough failed: %+v", entries)
	}
}

func TestParseCompressed_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(compressedFixture)); err != nil {
		t.Fatal(err)
	}
	gz.Close()

	entries := parseCompressed(t, buf.Bytes())
	if len(entries) != 1 || entries[0].Title != "Compressed Channel" {
		t.Fatalf("gzip parse failed: %+v", entries)
	}
}

func TestParseCompressed_Bzip2(t *testing.T) {
	var buf bytes.Buffer
	bz, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bz.Write([]byte(compressedFixture)); err != nil {
		t.Fatal(err)
	}
	bz.Close()

	entries := parseCompressed(t, buf.Bytes())
	if len(entries) != 1 || entries[0].GroupTitle != "News" {
		t.Fatalf("bzip2 parse failed: %+v", entries)
	}
}

func TestParseCompressed_XZ(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := xw.Write([]byte(compressedFixture)); err != nil {
		t.Fatal(err)
	}
	xw.Close()

	entries := parseCompressed(t, buf.Bytes())
	if len(entries) != 1 || entries[0].URL != "http://example.com/stream.ts" {
		t.Fatalf("xz parse failed: %+v", entries)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	orig := &Entry{
		Duration:      -1,
		TvgID:         "5",
		TvgName:       "Cartoons",
		TvgLogo:       "http://host/logo/5.png",
		GroupTitle:    "Kids",
		ChannelNumber: 5,
		Title:         "Cartoons",
		URL:           "http://host/stream/5",
	}
	if err := w.WriteEntry(orig); err != nil {
		t.Fatalf("write: %v", err)
	}

	var parsed []*Entry
	p := &Parser{
		OnEntry: func(entry *Entry) error {
			parsed = append(parsed, entry)
			return nil
		},
	}
	if err := p.Parse(&buf); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(parsed))
	}

	got := parsed[0]
	if got.TvgID != orig.TvgID || got.TvgName != orig.TvgName || got.TvgLogo != orig.TvgLogo ||
		got.GroupTitle != orig.GroupTitle || got.ChannelNumber != orig.ChannelNumber ||
		got.Title != orig.Title || got.URL != orig.URL {
		t.Errorf("round trip mismatch:\n  orig: %+v\n  got:  %+v", orig, got)
	}
}

func TestWriter_DeterministicExtras(t *testing.T) {
	entry := &Entry{
		Title: "Ch",
		URL:   "http://host/stream/1",
		Extra: map[string]string{"zeta": "1", "alpha": "2", "mid": "3"},
	}

	var first string
	for i := 0; i < 5; i++ {
		var buf bytes.Buffer
		if err := NewWriter(&buf).WriteEntry(entry); err != nil {
			t.Fatalf("write: %v", err)
		}
		if i == 0 {
			first = buf.String()
		} else if buf.String() != first {
			t.Fatal("extra attribute order is not deterministic")
		}
	}
	if !strings.Contains(first, `alpha="2" mid="3" zeta="1"`) {
		t.Errorf("extras not sorted: %s", first)
	}
}

func TestWriter_DefaultsDurationToLive(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteEntry(&Entry{Title: "Ch", URL: "http://u"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.Split(buf.String(), "\n")[1], "#EXTINF:-1") {
		t.Errorf("zero duration should serialize as -1: %s", buf.String())
	}
}
