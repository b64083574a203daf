// Package render turns cleaned bot text into styled terminal output.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const minWidth = 20

type Renderer struct {
	width int
	style string
	term  *glamour.TermRenderer
}

// New builds a renderer wrapping at width columns. style is a glamour style name
// ("dark", "light", "notty", ...); empty picks one from the terminal background.
func New(width int, style string) (*Renderer, error) {
	r := &Renderer{style: strings.TrimSpace(style)}
	if err := r.SetWidth(width); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Width() int {
	return r.width
}

// SetWidth rebuilds the underlying renderer when the wrap width changes.
func (r *Renderer) SetWidth(width int) error {
	if width < minWidth {
		width = minWidth
	}
	if r.term != nil && width == r.width {
		return nil
	}
	styleOpt := glamour.WithAutoStyle()
	if r.style != "" {
		styleOpt = glamour.WithStandardStyle(r.style)
	}
	term, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create markdown renderer")
	}
	r.term = term
	r.width = width
	return nil
}

// Markdown renders text as GitHub-flavored markdown. If rendering fails the text is
// returned as is.
func (r *Renderer) Markdown(text string) string {
	out, err := r.term.Render(text)
	if err != nil {
		log.Warn().Err(err).Int("length", len(text)).Msg("markdown render failed, showing raw text")
		return text
	}
	return strings.Trim(out, "\n")
}
