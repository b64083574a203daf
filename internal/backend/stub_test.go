package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bottegachat/internal/normalize"
	"bottegachat/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubRejectsEmptyMessage(t *testing.T) {
	srv := httptest.NewServer(NewStubHandler())
	defer srv.Close()

	_, err := NewClient(srv.URL).Chat(context.Background(), ChatRequest{ThreadID: "t"})
	require.Error(t, err)
	var nf *NetworkFailure
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, http.StatusBadRequest, nf.StatusCode)
	assert.Contains(t, err.Error(), "No message provided")
}

func TestStubAssignsAndKeepsThreadID(t *testing.T) {
	srv := httptest.NewServer(NewStubHandler())
	defer srv.Close()
	client := NewClient(srv.URL)

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "Hello"})
	require.NoError(t, err)
	assert.True(t, session.Valid(resp.ThreadID), "assigned thread id %q", resp.ThreadID)

	resp, err = client.Chat(context.Background(), ChatRequest{Message: "Again", ThreadID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.ThreadID)
}

func TestStubRejectsWrongMethod(t *testing.T) {
	srv := httptest.NewServer(NewStubHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStubStylesNormalizeToSameText(t *testing.T) {
	plain, err := StyledReply(StylePlain)
	require.NoError(t, err)
	want := normalize.Normalize(plain("Una pizza, per favore", ""))
	require.NotEmpty(t, want)

	for _, style := range StubStyles {
		t.Run(style, func(t *testing.T) {
			reply, err := StyledReply(style)
			require.NoError(t, err)

			srv := httptest.NewServer(NewStubHandler(WithStubReply(reply)))
			defer srv.Close()

			resp, err := NewClient(srv.URL).Chat(context.Background(), ChatRequest{Message: "Una pizza, per favore"})
			require.NoError(t, err)
			assert.Equal(t, want, normalize.Normalize(resp.Messages))
			assert.False(t, strings.Contains(normalize.Normalize(resp.Messages), "\x1b"))
		})
	}
}

func TestStyledReplyUnknown(t *testing.T) {
	_, err := StyledReply("sepia")
	assert.Error(t, err)
}

func TestStubLogsTurnsToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	srv := httptest.NewServer(NewStubHandler(WithStubLogger(zerolog.New(&buf))))
	defer srv.Close()

	_, err := NewClient(srv.URL).Chat(context.Background(), ChatRequest{Message: "Hello", ThreadID: "abc123"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "stub chat turn")
	assert.Contains(t, buf.String(), `"thread_id":"abc123"`)
}
