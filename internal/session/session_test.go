package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDMatchesTemplate(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := NewID()
		require.Truef(t, Valid(id), "unexpected id shape: %q", id)
		require.Len(t, id, len(idTemplate))
		require.Equal(t, byte('4'), id[14])
		require.Contains(t, "89ab", string(id[19]))
	}
}

func TestNewIDIsUnique(t *testing.T) {
	first := NewID()
	second := NewID()
	assert.NotEqual(t, first, second)
}

func TestFromTemplateMatchesTemplate(t *testing.T) {
	seen := map[byte]bool{}
	for i := 0; i < 500; i++ {
		id := fromTemplate()
		require.Truef(t, Valid(id), "unexpected id shape: %q", id)
		seen[id[19]] = true
	}
	for y := range seen {
		assert.Contains(t, "89ab", string(y))
	}
}

func TestNewIDFromReaderIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0xff}, 16)
	id, err := NewIDFromReader(bytes.NewReader(seed))
	require.NoError(t, err)
	assert.Equal(t, "ffffffff-ffff-4fff-bfff-ffffffffffff", id)

	zero := make([]byte, 16)
	id, err = NewIDFromReader(bytes.NewReader(zero))
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-4000-8000-000000000000", id)
}

func TestNewIDFromReaderShortRead(t *testing.T) {
	_, err := NewIDFromReader(bytes.NewReader([]byte{0x01, 0x02}))
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"3f2b8c1e-9a4d-4e7f-8b6a-1c2d3e4f5a6b", true},
		{"3f2b8c1e-9a4d-4e7f-cb6a-1c2d3e4f5a6b", false},
		{"3f2b8c1e-9a4d-1e7f-8b6a-1c2d3e4f5a6b", false},
		{"3F2B8C1E-9A4D-4E7F-8B6A-1C2D3E4F5A6B", false},
		{"abc123", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, Valid(tc.id), "Valid(%q)", tc.id)
	}
}
