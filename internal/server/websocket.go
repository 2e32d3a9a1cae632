package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/host"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// frameStream fans frame summaries out to websocket clients. A slow client
// loses frames instead of stalling the host.
type frameStream struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	buffer  int
	closed  bool
	done    chan struct{}
	logger  log.Log
}

func newFrameStream(buffer int, logger log.Log) *frameStream {
	return &frameStream{
		clients: make(map[chan []byte]struct{}),
		buffer:  buffer,
		done:    make(chan struct{}),
		logger:  logger,
	}
}

func (s *frameStream) broadcast(f host.Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("encode frame", log.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- b:
		default:
			s.logger.Debug("frame dropped for slow client", log.Int64("frame", int64(f.Number)))
		}
	}
}

func (s *frameStream) subscribe() (chan []byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	ch := make(chan []byte, s.buffer)
	s.clients[ch] = struct{}{}
	return ch, true
}

func (s *frameStream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *frameStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// handle subscribes before upgrading so no frame published after the
// handshake is missed.
func (s *frameStream) handle(w http.ResponseWriter, r *http.Request) {
	ch, ok := s.subscribe()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, ErrServerClosed)
		return
	}
	defer s.unsubscribe(ch)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", log.Error(err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case b := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.logger.Debug("websocket write failed", log.Error(err))
				return
			}
		case <-gone:
			return
		case <-s.done:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
			return
		}
	}
}
