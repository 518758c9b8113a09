package report

import (
	"bytes"
	"fmt"
	"io"

	"charm.land/glamour/v2"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
)

// Sink projects a built Roster to an output.
type Sink interface {
	Render(roster *Roster, w io.Writer) error
}

// TextSink renders the roster as glamour-styled ANSI, degrading to plain
// text automatically on a non-tty by way of termenv's color-profile
// detection (spec's "Reporter output sinks").
type TextSink struct{}

func (TextSink) Render(roster *Roster, w io.Writer) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(termenv.ColorProfile()),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("build glamour renderer: %w", err)
	}
	out, err := renderer.Render(roster.Markdown())
	if err != nil {
		return fmt.Errorf("render roster markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// HTMLSink renders the same Markdown roster with goldmark, for the API's
// /v1/disciplines/{d}/roster.html route and `obrad report --format html`.
type HTMLSink struct{}

func (HTMLSink) Render(roster *Roster, w io.Writer) error {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(roster.Markdown()), &buf); err != nil {
		return fmt.Errorf("convert roster markdown to html: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// NullSink discards the rendered roster; used by `obrad report --format
// null`, which still builds the roster (so its query and aggregation logic
// runs) but prints nothing.
type NullSink struct{}

func (NullSink) Render(_ *Roster, _ io.Writer) error { return nil }
