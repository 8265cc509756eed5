// Package xmltv provides streaming XMLTV parsing and writing for
// electronic program guide data.
package xmltv

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// Programme represents a single program entry in an XMLTV file.
type Programme struct {
	Start       time.Time
	Stop        time.Time
	Channel     string
	Title       string
	SubTitle    string
	Description string
	Categories  []string
	Icon        string
	EpisodeNum  string
	Rating      string
	Language    string
	IsNew       bool
	IsLive      bool
	Credits     *Credits

	// TimezoneOffset is the offset string from the start attribute,
	// e.g. "+0000" or "-0500".
	TimezoneOffset string
}

// Credits holds cast and crew information.
type Credits struct {
	Directors  []string
	Actors     []string
	Writers    []string
	Producers  []string
	Presenters []string
}

// Channel represents a channel definition in an XMLTV file.
type Channel struct {
	ID          string
	DisplayName string
	Icon        string
	URL         string
}

// Parser provides streaming XMLTV parsing with callback-based processing.
type Parser struct {
	// OnChannel is called for each channel definition.
	OnChannel func(channel *Channel) error

	// OnProgramme is called for each parsed programme.
	OnProgramme func(programme *Programme) error

	// OnError is called for recoverable parsing errors.
	OnError func(err error)
}

// ParsedTime contains a parsed time value and the timezone offset string
// if present.
type ParsedTime struct {
	Time           time.Time
	TimezoneOffset string
}

// xmltvTimeFormats lists accepted layouts in order of preference. Some
// guides omit the offset or the seconds.
var xmltvTimeFormats = []string{
	"20060102150405 -0700",
	"20060102150405 +0000",
	"20060102150405",
	"200601021504",
}

// parseXMLTVTime parses the XMLTV time format: "20240101120000 +0000".
func parseXMLTVTime(s string) (ParsedTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ParsedTime{}, fmt.Errorf("empty time string")
	}

	var tzOffset string
	if _, rest, ok := strings.Cut(s, " "); ok {
		tzOffset = strings.TrimSpace(rest)
	}

	for _, format := range xmltvTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return ParsedTime{Time: t, TimezoneOffset: tzOffset}, nil
		}
	}

	return ParsedTime{}, fmt.Errorf("unable to parse time: %s", s)
}

// Parse parses an XMLTV file from a reader.
func (p *Parser) Parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch elem.Name.Local {
		case "channel":
			if p.OnChannel == nil {
				_ = decoder.Skip()
				continue
			}
			channel, err := p.parseChannel(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnChannel(channel); err != nil {
				return fmt.Errorf("channel callback: %w", err)
			}

		case "programme":
			if p.OnProgramme == nil {
				_ = decoder.Skip()
				continue
			}
			programme, err := p.parseProgramme(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnProgramme(programme); err != nil {
				return fmt.Errorf("programme callback: %w", err)
			}
		}
	}
}

// ParseCompressed parses a potentially compressed XMLTV file, detecting
// gzip, bzip2, and xz from magic bytes.
func (p *Parser) ParseCompressed(r io.Reader) error {
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return fmt.Errorf("peeking header: %w", err)
	}

	switch {
	case strings.HasPrefix(string(header), "\x1f\x8b"):
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzr.Close()
		return p.Parse(gzr)

	case strings.HasPrefix(string(header), "BZh"):
		return p.Parse(bzip2.NewReader(br))

	case strings.HasPrefix(string(header), "\xfd7zXZ\x00"):
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		return p.Parse(xzr)

	default:
		return p.Parse(br)
	}
}

// elementText decodes the character data of the current element and trims it.
func elementText(decoder *xml.Decoder, elem *xml.StartElement) (string, bool) {
	var s string
	if err := decoder.DecodeElement(&s, elem); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// iconSrc reads the src attribute of an icon element and skips its body.
func iconSrc(decoder *xml.Decoder, elem xml.StartElement) string {
	var src string
	for _, attr := range elem.Attr {
		if attr.Name.Local == "src" {
			src = attr.Value
		}
	}
	_ = decoder.Skip()
	return src
}

func (p *Parser) parseChannel(decoder *xml.Decoder, start xml.StartElement) (*Channel, error) {
	channel := &Channel{}
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			channel.ID = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "display-name":
				// Only the first display-name wins.
				if name, ok := elementText(decoder, &elem); ok && channel.DisplayName == "" {
					channel.DisplayName = name
				}
			case "icon":
				channel.Icon = iconSrc(decoder, elem)
			case "url":
				if url, ok := elementText(decoder, &elem); ok {
					channel.URL = url
				}
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "channel" {
				return channel, nil
			}
		}
	}
}

func (p *Parser) parseProgramme(decoder *xml.Decoder, start xml.StartElement) (*Programme, error) {
	prog := &Programme{}

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "start":
			if parsed, err := parseXMLTVTime(attr.Value); err == nil {
				prog.Start = parsed.Time
				prog.TimezoneOffset = parsed.TimezoneOffset
			}
		case "stop":
			if parsed, err := parseXMLTVTime(attr.Value); err == nil {
				prog.Stop = parsed.Time
			}
		case "channel":
			prog.Channel = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "title":
				if title, ok := elementText(decoder, &elem); ok && prog.Title == "" {
					prog.Title = title
				}
			case "sub-title":
				if subtitle, ok := elementText(decoder, &elem); ok {
					prog.SubTitle = subtitle
				}
			case "desc":
				if desc, ok := elementText(decoder, &elem); ok {
					prog.Description = desc
				}
			case "category":
				if cat, ok := elementText(decoder, &elem); ok && cat != "" {
					prog.Categories = append(prog.Categories, cat)
				}
			case "icon":
				prog.Icon = iconSrc(decoder, elem)
			case "episode-num":
				if epNum, ok := elementText(decoder, &elem); ok {
					prog.EpisodeNum = epNum
				}
			case "rating":
				p.parseRating(decoder, prog)
			case "language":
				if lang, ok := elementText(decoder, &elem); ok {
					prog.Language = lang
				}
			case "new":
				prog.IsNew = true
				_ = decoder.Skip()
			case "live":
				prog.IsLive = true
				_ = decoder.Skip()
			case "credits":
				prog.Credits = parseCredits(decoder)
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "programme" {
				return prog, nil
			}
		}
	}
}

func (p *Parser) parseRating(decoder *xml.Decoder, prog *Programme) {
	for {
		token, err := decoder.Token()
		if err != nil {
			return
		}

		switch elem := token.(type) {
		case xml.StartElement:
			if elem.Name.Local == "value" {
				if value, ok := elementText(decoder, &elem); ok {
					prog.Rating = value
				}
			} else {
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "rating" {
				return
			}
		}
	}
}

func parseCredits(decoder *xml.Decoder) *Credits {
	credits := &Credits{}
	roles := map[string]*[]string{
		"director":  &credits.Directors,
		"actor":     &credits.Actors,
		"writer":    &credits.Writers,
		"producer":  &credits.Producers,
		"presenter": &credits.Presenters,
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return credits
		}

		switch elem := token.(type) {
		case xml.StartElement:
			dest, known := roles[elem.Name.Local]
			value, ok := elementText(decoder, &elem)
			if known && ok {
				*dest = append(*dest, value)
			}
		case xml.EndElement:
			if elem.Name.Local == "credits" {
				return credits
			}
		}
	}
}

func (p *Parser) handleError(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}

// ParseAll parses an entire XMLTV file and returns all programmes.
// It loads everything into memory; use Parse with callbacks for large files.
func ParseAll(r io.Reader) ([]*Programme, error) {
	var programmes []*Programme
	p := &Parser{
		OnProgramme: func(prog *Programme) error {
			programmes = append(programmes, prog)
			return nil
		},
	}
	if err := p.Parse(r); err != nil {
		return nil, err
	}
	return programmes, nil
}
