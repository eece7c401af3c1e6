package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"nxgov/core/events"
	"nxgov/core/types"
)

// typedEvent is satisfied by the governance package's internal event
// wrapper, which exposes the concrete *types.Event alongside the
// events.Event interface's bare EventType() string.
type typedEvent interface {
	Event() *types.Event
}

const wsWriteTimeout = 10 * time.Second

// EventStream is a broadcast governance.Emitter fanning every proposal
// lifecycle event out to connected WebSocket subscribers, grounded in the
// teacher's rpc/ws.go streamPOSFinality shape (one goroutine per
// connection, a buffered per-subscriber channel, context-bound writes).
// Unlike HookNotifier's pending-task stack, subscribers that aren't
// currently connected simply miss events published while absent; this is a
// live tail, not a durable log.
type EventStream struct {
	mu          sync.Mutex
	subscribers map[chan *types.Event]struct{}
}

// NewEventStream constructs an empty broadcaster.
func NewEventStream() *EventStream {
	return &EventStream{subscribers: make(map[chan *types.Event]struct{})}
}

// Emit implements governance.Emitter (core/events.Emitter), fanning out to
// every currently connected subscriber without blocking the caller: a full
// subscriber channel drops the event rather than stalling the Coordinator.
func (e *EventStream) Emit(event events.Event) {
	typed, ok := event.(typedEvent)
	if !ok {
		return
	}
	payload := typed.Event()
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (e *EventStream) subscribe() chan *types.Event {
	ch := make(chan *types.Event, 32)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

func (e *EventStream) unsubscribe(ch chan *types.Event) {
	e.mu.Lock()
	delete(e.subscribers, ch)
	e.mu.Unlock()
}

// ServeHTTP upgrades the request to a WebSocket and streams events to it
// until the client disconnects.
func (e *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ch := e.subscribe()
	defer e.unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			if err := writeEvent(ctx, conn, event); err != nil {
				if status := websocket.CloseStatus(err); status == -1 {
					_ = conn.Close(websocket.StatusInternalError, "stream error")
				}
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event *types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
