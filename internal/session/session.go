// Package session produces the conversation token that correlates every turn of one
// chat with the backend.
package session

import (
	"io"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const idTemplate = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"

var idPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// NewID returns a fresh version-4 style identifier. It never fails: if the system
// entropy source is unavailable the template is filled from math/rand.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fromTemplate()
	}
	return id.String()
}

// NewIDFromReader builds an identifier from the bytes read from r.
func NewIDFromReader(r io.Reader) (string, error) {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Valid reports whether id has the xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx shape with
// y in {8,9,a,b}.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}

func fromTemplate() string {
	var b strings.Builder
	b.Grow(len(idTemplate))
	for _, c := range idTemplate {
		switch c {
		case 'x':
			b.WriteString(strconv.FormatInt(int64(rand.IntN(16)), 16))
		case 'y':
			b.WriteString(strconv.FormatInt(int64(rand.IntN(4)|0x8), 16))
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
