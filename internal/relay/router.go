package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc processes one message payload and eventually produces a
// result or an error. Handlers run on their own goroutine; they must
// respect ctx for deadlines.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Router holds a fixed dispatch table keyed by message type and
// delivers each handler's eventual result back over the channel the
// request was dispatched on. The router itself never blocks on a
// handler: several requests can be in flight at once, each making
// independent progress.
type Router struct {
	mu       sync.RWMutex
	handlers map[MessageType]HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[MessageType]HandlerFunc)}
}

// Handle registers the handler for a message type, replacing any
// previous registration.
func (r *Router) Handle(msgType MessageType, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = fn
}

// Handles reports whether a handler is registered for the type.
func (r *Router) Handles(msgType MessageType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[msgType]
	return ok
}

// Dispatch routes one message and returns the channel its response
// will arrive on. The channel is buffered so the response can be
// written even after the caller stops listening; it is closed after
// the response is sent. Unknown types resolve immediately with an
// explicit failure.
func (r *Router) Dispatch(ctx context.Context, msg Message) <-chan Response {
	ch := make(chan Response, 1)

	r.mu.RLock()
	fn, ok := r.handlers[msg.Type]
	r.mu.RUnlock()

	if !ok {
		log.Warn().Str("type", string(msg.Type)).Msg("Message with unknown type")
		ch <- Response{Success: false, Error: fmt.Sprintf("unknown message type: %s", msg.Type)}
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)

		data, err := fn(ctx, msg.Data)
		if err != nil {
			ch <- Response{Success: false, Error: err.Error()}
			return
		}
		ch <- Response{Success: true, Data: data}
	}()

	return ch
}
