package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/api"
	"github.com/BaSui01/blockflow/session"
	"github.com/BaSui01/blockflow/trace"
)

// HandleEvents streams step and reset events of a session over WebSocket.
// The first frame is a hello carrying the current snapshot. A client that
// falls more than the event buffer behind is disconnected.
// @Summary Session events
// @Tags session
// @Param sid path string true "Session ID"
// @Success 101
// @Failure 404 {object} Response
// @Security ApiKeyAuth
// @Router /api/v1/sessions/{sid}/events [get]
func (h *SessionHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	entry, r, ok := h.entry(w, r)
	if !ok {
		return
	}
	logger := h.logger.With(zap.String("session_id", entry.ID))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// Reads are discarded; the returned context ends when the client closes.
	ctx := conn.CloseRead(r.Context())

	q := newEventQueue(h.eventBuffer)
	unsubscribe := entry.Controller.Subscribe(session.ListenerFuncs{
		StepChange: func(index int, item trace.Item) {
			it := item
			q.push(api.SessionEvent{Type: api.EventStep, Index: index, Item: &it, Time: time.Now()})
		},
		Reset: func() {
			q.push(api.SessionEvent{Type: api.EventReset, Time: time.Now()})
		},
	})
	defer unsubscribe()

	snap := entry.Controller.Snapshot(false)
	if err := h.write(ctx, conn, api.SessionEvent{Type: api.EventHello, Index: snap.Cursor, Snapshot: &snap, Time: time.Now()}); err != nil {
		logger.Debug("event stream write failed", zap.Error(err))
		return
	}
	logger.Debug("event stream opened")

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("event stream closed by client")
			return
		case <-q.overflow:
			logger.Warn("event stream too slow, closing", zap.Int("buffer", h.eventBuffer))
			_ = conn.Close(websocket.StatusPolicyViolation, "event buffer overflow")
			return
		case ev := <-q.events:
			if err := h.write(ctx, conn, ev); err != nil {
				logger.Debug("event stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if _, err := h.registry.Get(entry.ID); errors.Is(err, session.ErrSessionNotFound) {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				logger.Debug("event stream ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *SessionHandler) write(ctx context.Context, conn *websocket.Conn, ev api.SessionEvent) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

// eventQueue buffers events between controller callbacks and the stream
// writer. The first push that finds the buffer full closes overflow; later
// pushes are dropped.
type eventQueue struct {
	events   chan api.SessionEvent
	overflow chan struct{}

	mu         sync.Mutex
	overflowed bool
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{
		events:   make(chan api.SessionEvent, size),
		overflow: make(chan struct{}),
	}
}

func (q *eventQueue) push(ev api.SessionEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.overflowed {
		return
	}
	select {
	case q.events <- ev:
	default:
		q.overflowed = true
		close(q.overflow)
	}
}
