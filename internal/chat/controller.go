// Package chat owns one conversation: its turn log, its session identifier and the
// flags that lock input while a reply is outstanding.
//
// A turn goes Idle -> AwaitingResponse on Begin and back to Idle on Settle. The
// network call in between (Exchange.Run) never touches controller state, so a UI
// can run it off its event loop and feed the Outcome back.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"bottegachat/internal/backend"
	"bottegachat/internal/normalize"
	"bottegachat/internal/session"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Turn is one entry of the conversation log.
type Turn struct {
	Text   string
	IsUser bool
}

// Sender performs a single backend round trip.
type Sender interface {
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
}

// Snapshot is a copy of the controller state, safe to keep and render.
type Snapshot struct {
	Turns           []Turn
	SessionID       string
	Input           string
	IsTyping        bool
	IsBotResponding bool
	LastError       error
}

type Option func(*Controller)

func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *Controller) {
		if n != nil {
			c.normalizer = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSessionID resumes a known conversation instead of generating a new token.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id = strings.TrimSpace(id); id != "" {
			c.sessionID = id
		}
	}
}

// WithTimeout bounds each exchange. The default of zero waits indefinitely.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Controller) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithOnChange registers a hook called after every log append and every return to
// Idle. It runs outside the controller lock.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

type Controller struct {
	sender     Sender
	normalizer *normalize.Normalizer
	logger     zerolog.Logger
	timeout    time.Duration
	onChange   func(Snapshot)

	mu         sync.Mutex
	turns      []Turn
	sessionID  string
	input      string
	typing     bool
	responding bool
	lastErr    error
	exchangeID uint64
}

func New(sender Sender, opts ...Option) *Controller {
	c := &Controller{
		sender: sender,
		logger: log.Logger.With().Str("component", "chat").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.normalizer == nil {
		c.normalizer = normalize.New(normalize.WithLogger(c.logger))
	}
	if c.sessionID == "" {
		c.sessionID = session.NewID()
	}
	c.logger.Debug().Str("thread_id", c.sessionID).Msg("conversation started")
	return c
}

func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	return Snapshot{
		Turns:           turns,
		SessionID:       c.sessionID,
		Input:           c.input,
		IsTyping:        c.typing,
		IsBotResponding: c.responding,
		LastError:       c.lastErr,
	}
}

// Begin starts a turn from the current input. It returns false, and changes
// nothing, when the input is blank or a reply is still outstanding.
func (c *Controller) Begin() (*Exchange, bool) {
	c.mu.Lock()
	if strings.TrimSpace(c.input) == "" || c.responding {
		c.logger.Debug().
			Bool("blank", strings.TrimSpace(c.input) == "").
			Bool("responding", c.responding).
			Msg("ignoring submission")
		c.mu.Unlock()
		return nil, false
	}

	message := c.input
	c.turns = append(c.turns, Turn{Text: message, IsUser: true})
	c.input = ""
	c.typing = true
	c.responding = true
	c.lastErr = nil
	c.exchangeID++

	ex := &Exchange{
		id:      c.exchangeID,
		sender:  c.sender,
		timeout: c.timeout,
		request: backend.ChatRequest{Message: message, ThreadID: c.sessionID},
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return ex, true
}

// Settle applies the result of an exchange and always returns the controller to
// Idle, whether the exchange succeeded or not.
func (c *Controller) Settle(out Outcome) {
	c.mu.Lock()
	if !c.responding || out.exchangeID != c.exchangeID {
		c.logger.Warn().
			Uint64("exchange", out.exchangeID).
			Uint64("current", c.exchangeID).
			Msg("dropping outcome of an exchange that is not in flight")
		c.mu.Unlock()
		return
	}
	defer func() {
		c.typing = false
		c.responding = false
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
	}()

	if out.Err != nil {
		c.lastErr = out.Err
		c.logger.Warn().
			Err(out.Err).
			Str("thread_id", c.sessionID).
			Dur("elapsed", out.Elapsed).
			Msg("chat turn failed")
		return
	}
	resp := out.Response
	if resp == nil {
		return
	}
	c.logger.Debug().
		Str("thread_id", resp.ThreadID).
		Int("message_chars", len(resp.Messages)).
		Bool("requires_approval", resp.RequiresApproval).
		Dur("elapsed", out.Elapsed).
		Msg("received data")

	if resp.ThreadID != "" && resp.ThreadID != c.sessionID {
		c.logger.Info().
			Str("previous", c.sessionID).
			Str("thread_id", resp.ThreadID).
			Msg("backend assigned thread id")
		c.sessionID = resp.ThreadID
	}
	if resp.Messages != "" {
		c.turns = append(c.turns, Turn{Text: c.normalizer.Normalize(resp.Messages), IsUser: false})
	}
}

// Submit runs a whole turn synchronously. It reports whether a turn was started.
func (c *Controller) Submit(ctx context.Context) bool {
	ex, ok := c.Begin()
	if !ok {
		return false
	}
	c.Settle(ex.Run(ctx))
	return true
}

// Send sets the input to text and submits it.
func (c *Controller) Send(ctx context.Context, text string) bool {
	c.SetInput(text)
	return c.Submit(ctx)
}

func (c *Controller) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
