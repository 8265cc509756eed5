package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// Writer provides streaming XMLTV file writing. Channels must be written
// before programmes, matching the XMLTV DTD element order.
type Writer struct {
	w             io.Writer
	headerWritten bool
	channelsDone  bool
}

// NewWriter creates a new XMLTV writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the XML declaration and opens the tv element.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if _, err := fmt.Fprintln(w.w, `<?xml version="1.0" encoding="UTF-8"?>`); err != nil {
		return fmt.Errorf("writing XML declaration: %w", err)
	}
	if _, err := fmt.Fprintln(w.w, `<tv generator-info-name="streamtv" generator-info-url="https://github.com/tgrayson/streamtv">`); err != nil {
		return fmt.Errorf("writing tv element: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel writes a channel definition.
func (w *Writer) WriteChannel(ch *Channel) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if w.channelsDone {
		return fmt.Errorf("channels must be written before programmes")
	}

	if _, err := fmt.Fprintf(w.w, "  <channel id=\"%s\">\n", xmlEscape(ch.ID)); err != nil {
		return fmt.Errorf("writing channel start: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "    <display-name>%s</display-name>\n", xmlEscape(ch.DisplayName)); err != nil {
		return err
	}
	if ch.Icon != "" {
		if _, err := fmt.Fprintf(w.w, "    <icon src=\"%s\"/>\n", xmlEscape(ch.Icon)); err != nil {
			return err
		}
	}
	if ch.URL != "" {
		if _, err := fmt.Fprintf(w.w, "    <url>%s</url>\n", xmlEscape(ch.URL)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w.w, "  </channel>")
	return err
}

// WriteProgramme writes a programme entry. A programme with no categories
// gets the default "General" so every entry carries at least one, and an
// empty description falls back to the title.
func (w *Writer) WriteProgramme(prog *Programme) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	w.channelsDone = true

	if _, err := fmt.Fprintf(w.w, "  <programme start=\"%s\" stop=\"%s\" channel=\"%s\">\n",
		formatXMLTVTime(prog.Start), formatXMLTVTime(prog.Stop), xmlEscape(prog.Channel)); err != nil {
		return fmt.Errorf("writing programme start: %w", err)
	}

	lang := prog.Language
	if lang == "" {
		lang = "en"
	}

	if _, err := fmt.Fprintf(w.w, "    <title lang=\"%s\">%s</title>\n", lang, xmlEscape(prog.Title)); err != nil {
		return err
	}

	if prog.SubTitle != "" {
		if _, err := fmt.Fprintf(w.w, "    <sub-title lang=\"%s\">%s</sub-title>\n", lang, xmlEscape(prog.SubTitle)); err != nil {
			return err
		}
	}

	desc := prog.Description
	if desc == "" {
		desc = prog.Title
	}
	if _, err := fmt.Fprintf(w.w, "    <desc lang=\"%s\">%s</desc>\n", lang, xmlEscape(desc)); err != nil {
		return err
	}

	categories := prog.Categories
	if len(categories) == 0 {
		categories = []string{"General"}
	}
	for _, cat := range categories {
		if _, err := fmt.Fprintf(w.w, "    <category lang=\"%s\">%s</category>\n", lang, xmlEscape(cat)); err != nil {
			return err
		}
	}

	if prog.Icon != "" {
		if _, err := fmt.Fprintf(w.w, "    <icon src=\"%s\"/>\n", xmlEscape(prog.Icon)); err != nil {
			return err
		}
	}

	if prog.EpisodeNum != "" {
		if _, err := fmt.Fprintf(w.w, "    <episode-num system=\"onscreen\">%s</episode-num>\n", xmlEscape(prog.EpisodeNum)); err != nil {
			return err
		}
	}

	if prog.Rating != "" {
		if _, err := fmt.Fprintf(w.w, "    <rating><value>%s</value></rating>\n", xmlEscape(prog.Rating)); err != nil {
			return err
		}
	}

	if prog.IsNew {
		if _, err := fmt.Fprintln(w.w, "    <new/>"); err != nil {
			return err
		}
	}
	if prog.IsLive {
		if _, err := fmt.Fprintln(w.w, "    <live/>"); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w.w, "  </programme>")
	return err
}

// WriteFooter closes the tv element.
func (w *Writer) WriteFooter() error {
	_, err := fmt.Fprintln(w.w, `</tv>`)
	return err
}

func formatXMLTVTime(t time.Time) string {
	return t.UTC().Format("20060102150405 +0000")
}

func xmlEscape(s string) string {
	var buf []byte
	xml.EscapeText((*xmlEscapeWriter)(&buf), []byte(s))
	return string(buf)
}

type xmlEscapeWriter []byte

func (w *xmlEscapeWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
