package heygen

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const eventWriteWait = 5 * time.Second

var errSocketClosed = errors.New("realtime socket closed")

// eventSocket is the vendor realtime channel. Reads happen on one goroutine so
// events reach handlers in arrival order.
type eventSocket struct {
	conn   *websocket.Conn
	logger zerolog.Logger
	emit   func(core.Event)
	lost   func()

	wmu    sync.Mutex
	once   sync.Once
	done   chan struct{}
	closed bool
}

// dialEvents connects the realtime socket. lost runs when the vendor side
// drops the socket, not when it is closed locally.
func dialEvents(ctx context.Context, d *websocket.Dialer, url string, emit func(core.Event), lost func(), logger zerolog.Logger) (*eventSocket, error) {
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	s := &eventSocket{
		conn:   conn,
		logger: logger,
		emit:   emit,
		lost:   lost,
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *eventSocket) readLoop() {
	defer s.close()
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn().Err(err).Msg("realtime read error")
				if s.lost != nil {
					s.lost()
				}
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ev core.Event
		if err := json.Unmarshal(data, &ev); err != nil || ev.Kind == "" {
			s.logger.Warn().Str("raw", string(data)).Msg("bad realtime event")
			continue
		}
		s.emit(ev)
	}
}

func (s *eventSocket) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(eventWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return s.write(websocket.TextMessage, data, deadline)
}

func (s *eventSocket) sendBinary(data []byte) error {
	return s.write(websocket.BinaryMessage, data, time.Now().Add(eventWriteWait))
}

func (s *eventSocket) write(mt int, data []byte, deadline time.Time) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed {
		return errSocketClosed
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(mt, data)
}

func (s *eventSocket) close() {
	s.once.Do(func() {
		close(s.done)
		s.wmu.Lock()
		s.closed = true
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.wmu.Unlock()
		_ = s.conn.Close()
	})
}
