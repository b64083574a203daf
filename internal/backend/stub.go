package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StubReply produces the raw "messages" payload for one turn.
type StubReply func(message, threadID string) string

// Reply styles mirror the payload shapes the real backend is known to emit.
const (
	StyleBanner = "banner"
	StylePlain  = "plain"
	StyleANSI   = "ansi"
	StyleBlocks = "blocks"
)

var StubStyles = []string{StyleBanner, StylePlain, StyleANSI, StyleBlocks}

var aiBanner = strings.Repeat("=", 34) + " Ai Message " + strings.Repeat("=", 34)

// StyledReply echoes the user message wrapped in the given payload shape.
func StyledReply(style string) (StubReply, error) {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case StylePlain:
		return func(message, _ string) string {
			return echoText(message)
		}, nil
	case StyleBanner, "":
		return func(message, _ string) string {
			return aiBanner + "\n\n" + echoText(message)
		}, nil
	case StyleANSI:
		return func(message, _ string) string {
			return "\x1b[1m" + aiBanner + "\x1b[0m\n\n\x1b[32m" + echoText(message) + "\x1b[0m"
		}, nil
	case StyleBlocks:
		return func(message, _ string) string {
			blocks := []map[string]any{
				{"text": echoText(message), "type": "text", "index": 0},
			}
			buf, _ := json.Marshal(blocks)
			return aiBanner + "\n\n" + string(buf)
		}, nil
	default:
		return nil, errors.Errorf("unknown stub style %q (want one of %s)", style, strings.Join(StubStyles, ", "))
	}
}

func echoText(message string) string {
	return fmt.Sprintf("You said:\n\n> %s\n\n- this reply comes from the local stub backend", strings.TrimSpace(message))
}

type StubOption func(*stubServer)

func WithStubReply(reply StubReply) StubOption {
	return func(s *stubServer) {
		if reply != nil {
			s.reply = reply
		}
	}
}

func WithStubPath(path string) StubOption {
	return func(s *stubServer) {
		if strings.TrimSpace(path) != "" {
			s.path = path
		}
	}
}

func WithStubLogger(logger zerolog.Logger) StubOption {
	return func(s *stubServer) {
		s.logger = logger
	}
}

type stubServer struct {
	path   string
	reply  StubReply
	logger zerolog.Logger
}

// NewStubHandler returns a handler serving POST /chat with the same contract as the
// real backend: 400 on a missing message, a fresh thread id when the client sent
// none, and a reply payload in one of the backend's output shapes.
func NewStubHandler(opts ...StubOption) http.Handler {
	banner, _ := StyledReply(StyleBanner)
	s := &stubServer{
		path:   DefaultChatPath,
		reply:  banner,
		logger: log.Logger.With().Str("component", "stub-backend").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+s.path, s.handleChat)
	return mux
}

func (s *stubServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat request body")
		writeJSON(w, http.StatusBadRequest, ChatResponse{Error: "Invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Error: "No message provided"})
		return
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	s.logger.Info().
		Str("thread_id", threadID).
		Int("message_chars", len(req.Message)).
		Msg("stub chat turn")
	writeJSON(w, http.StatusOK, ChatResponse{
		ThreadID: threadID,
		Messages: s.reply(req.Message, threadID),
	})
}

func writeJSON(w http.ResponseWriter, status int, body ChatResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
