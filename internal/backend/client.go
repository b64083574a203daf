// Package backend talks to the chat backend over HTTP and provides a local stand-in
// for it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultChatPath = "/chat"

const errorSnippetChars = 240

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithPath(path string) ClientOption {
	return func(c *Client) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.path = path
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		path:       DefaultChatPath,
		httpClient: &http.Client{},
		logger:     log.Logger.With().Str("component", "backend").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string {
	return c.baseURL + c.path
}

// Chat submits one turn and decodes the reply. It waits as long as ctx allows. Any
// failure is returned as a *NetworkFailure.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	endpoint := c.Endpoint()
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &NetworkFailure{Op: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkFailure{Op: "build request", Err: errors.Wrapf(err, "invalid endpoint %q", endpoint)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkFailure{Op: "post " + c.path, Err: errors.Wrap(err, "chat request failed")}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkFailure{Op: "read response", StatusCode: resp.StatusCode, Err: err}
	}
	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Int("bytes", len(payload)).
		Dur("elapsed", time.Since(started)).
		Msg("received chat response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkFailure{
			Op:         "post " + c.path,
			StatusCode: resp.StatusCode,
			Err:        errors.New(describeErrorBody(payload)),
		}
	}

	var parsed ChatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, &NetworkFailure{
			Op:         "decode response",
			StatusCode: resp.StatusCode,
			Err:        errors.Wrapf(err, "backend returned non-json payload %q", snippet(payload)),
		}
	}
	return &parsed, nil
}

func describeErrorBody(payload []byte) string {
	var body ChatResponse
	if err := json.Unmarshal(payload, &body); err == nil && strings.TrimSpace(body.Error) != "" {
		return body.Error
	}
	if s := snippet(payload); s != "" {
		return s
	}
	return "empty response body"
}

func snippet(payload []byte) string {
	compact := strings.Join(strings.Fields(string(payload)), " ")
	if len(compact) <= errorSnippetChars {
		return compact
	}
	cut := errorSnippetChars - 3
	for cut > 0 && !utf8.RuneStart(compact[cut]) {
		cut--
	}
	return compact[:cut] + "..."
}
