// Package normalize turns the raw reply payload of the chat backend into display
// text. The backend may hand back terminal-colored output, the "Ai Message" banner of
// its pretty printer, or a JSON array of content blocks serialized as a string.
//
// Normalization is total: every input yields a string, parse problems are logged
// and the best-effort text is returned instead.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ansiPattern       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	aiBannerPattern   = regexp.MustCompile(`^={34}\s*Ai Message\s*={34}\s*`)
	ruleBannerPattern = regexp.MustCompile(`^={34}\s*`)
)

const blockArrayPrefix = "[{"

type Option func(*Normalizer)

// WithLogger sets the logger used for parse warnings and debug traces.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// WithCollapseWhitespace restores the legacy behaviour of folding every whitespace
// run, newlines included, into a single space. Markdown lists and line breaks do not
// survive it.
func WithCollapseWhitespace(collapse bool) Option {
	return func(n *Normalizer) {
		n.collapseWhitespace = collapse
	}
}

type Normalizer struct {
	logger             zerolog.Logger
	collapseWhitespace bool
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		logger: log.Logger.With().Str("component", "normalize").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize cleans raw with the default settings.
func Normalize(raw string) string {
	return New().Normalize(raw)
}

// Normalize applies, in order: ANSI stripping, removal of the leading "Ai Message"
// banner, extraction of the first text block of a JSON block array, trimming, and
// removal of a leftover leading rule of 34 '=' characters.
func (n *Normalizer) Normalize(raw string) string {
	cleaned := ansiPattern.ReplaceAllString(raw, "")
	cleaned = aiBannerPattern.ReplaceAllString(cleaned, "")

	if strings.HasPrefix(strings.TrimSpace(cleaned), blockArrayPrefix) {
		if text, err := firstBlockText(cleaned); err != nil {
			n.logger.Warn().Err(err).Int("length", len(cleaned)).Msg("could not decode content block array, keeping raw text")
		} else {
			// escapes inside a JSON string only become raw ESC bytes once decoded
			cleaned = ansiPattern.ReplaceAllString(text, "")
		}
	}

	if n.collapseWhitespace {
		cleaned = strings.Join(strings.Fields(cleaned), " ")
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = ruleBannerPattern.ReplaceAllString(cleaned, "")

	n.logger.Debug().
		Str("original", raw).
		Str("cleaned", cleaned).
		Msg("normalized bot message")
	return cleaned
}

type contentBlock struct {
	Text *string `json:"text"`
}

// firstBlockText decodes payload as an array and reads the text of element 0 only;
// later elements may have any shape.
func firstBlockText(payload string) (string, error) {
	var blocks []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &blocks); err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", errEmptyBlocks
	}
	var first contentBlock
	if err := json.Unmarshal(blocks[0], &first); err != nil {
		return "", errors.Wrap(err, "first content block")
	}
	if first.Text == nil {
		return "", errMissingText
	}
	return *first.Text, nil
}
