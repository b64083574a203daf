package chat

import (
	"context"
	"time"

	"bottegachat/internal/backend"

	"github.com/pkg/errors"
)

// Exchange is one in-flight turn, handed out by Controller.Begin.
type Exchange struct {
	id      uint64
	sender  Sender
	timeout time.Duration
	request backend.ChatRequest
}

// Outcome is what Exchange.Run produced; pass it to Controller.Settle.
type Outcome struct {
	exchangeID uint64
	Request    backend.ChatRequest
	Response   *backend.ChatResponse
	Err        error
	Elapsed    time.Duration
}

func (e *Exchange) Request() backend.ChatRequest {
	return e.request
}

// Run performs the backend call. It is safe to call from any goroutine and blocks
// until the backend answers, ctx is done, or the configured timeout elapses.
func (e *Exchange) Run(ctx context.Context) (out Outcome) {
	out = Outcome{exchangeID: e.id, Request: e.request}
	started := time.Now()
	defer func() {
		out.Elapsed = time.Since(started)
		if r := recover(); r != nil {
			out.Response = nil
			out.Err = errors.Errorf("chat sender panicked: %v", r)
		}
	}()

	if e.sender == nil {
		out.Err = errors.New("no chat backend configured")
		return out
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	out.Response, out.Err = e.sender.Chat(ctx, e.request)
	return out
}
