// Package stream fans published satellite positions out to websocket
// clients.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/signalsfoundry/orbit-engine/internal/logging"
	"github.com/signalsfoundry/orbit-engine/model"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	maxInboundSize = 512
)

var errSubscriberClosed = errors.New("subscriber closed")

// Config controls per-client throttling.
type Config struct {
	// Rate is the maximum number of messages per second sent to one client.
	Rate float64
	// Burst is the client's token bucket size.
	Burst int
}

// ClientGauge tracks the number of connected clients.
type ClientGauge interface {
	SetStreamClients(n int)
}

// Message is the frame sent to clients.
type Message struct {
	Type       string             `json:"type"`
	Seq        uint64             `json:"seq"`
	SentAt     time.Time          `json:"sent_at"`
	Satellites *model.PositionMap `json:"satellites"`
}

// MessageTypePositions tags position snapshots.
const MessageTypePositions = "positions"

// Option customises Hub construction.
type Option func(*Hub)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithClientGauge reports client counts to g.
func WithClientGauge(g ClientGauge) Option {
	return func(h *Hub) {
		h.gauge = g
	}
}

// Hub keeps the set of connected clients and the latest snapshot, which new
// clients receive immediately on connect.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	seq    uint64
	last   []byte

	log   logging.Logger
	gauge ClientGauge
	now   func() time.Time
}

type subscriber struct {
	id      uint64
	conn    *websocket.Conn
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool

	// sendMu orders sends. pending holds the newest throttled message and
	// flush is the timer that delivers it once the limiter allows.
	sendMu  sync.Mutex
	pending []byte
	flush   *time.Timer
}

// offer sends data now if the rate budget allows, otherwise parks it as the
// pending message, replacing any older one. A parked message is always
// delivered eventually, so a client never stays on a stale snapshot.
func (s *subscriber) offer(data []byte, onFlush func(*subscriber)) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.flush != nil {
		s.pending = data
		return nil
	}
	if s.limiter.Allow() {
		return s.writeMessage(websocket.TextMessage, data)
	}
	r := s.limiter.Reserve()
	if !r.OK() {
		return nil
	}
	s.pending = data
	s.flush = time.AfterFunc(r.Delay(), func() { onFlush(s) })
	return nil
}

// takePending sends the parked message, if any.
func (s *subscriber) takePending() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	data := s.pending
	s.pending = nil
	s.flush = nil
	if data == nil {
		return nil
	}
	return s.writeMessage(websocket.TextMessage, data)
}

func (s *subscriber) stopFlush() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.flush != nil {
		s.flush.Stop()
		s.flush = nil
	}
	s.pending = nil
}

// writeMessage sends a websocket message guarded by the subscriber's mutex
// and write deadline.
func (s *subscriber) writeMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSubscriberClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close()
}

// NewHub constructs an empty hub.
func NewHub(cfg Config, opts ...Option) *Hub {
	h := &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[uint64]*subscriber),
		log:  logging.Noop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.log = h.log.With(logging.String("component", "stream"))
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and keeps the client registered until its
// connection closes. Inbound messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	sub, initial := h.register(conn)
	defer h.unregister(sub)

	h.log.Info(r.Context(), "stream client connected",
		logging.String("remote_addr", r.RemoteAddr),
		logging.Any("client_id", sub.id),
	)
	if initial != nil {
		if err := sub.writeMessage(websocket.TextMessage, initial); err != nil {
			return
		}
	}

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (h *Hub) register(conn *websocket.Conn) (*subscriber, []byte) {
	h.mu.Lock()
	h.nextID++
	sub := &subscriber{
		id:      h.nextID,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(h.cfg.Rate), h.cfg.Burst),
	}
	h.subs[sub.id] = sub
	n := len(h.subs)
	initial := h.last
	h.mu.Unlock()

	if h.gauge != nil {
		h.gauge.SetStreamClients(n)
	}
	return sub, initial
}

func (h *Hub) unregister(sub *subscriber) {
	sub.stopFlush()
	sub.close()

	h.mu.Lock()
	_, ok := h.subs[sub.id]
	delete(h.subs, sub.id)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	if h.gauge != nil {
		h.gauge.SetStreamClients(n)
	}
	h.log.Info(context.Background(), "stream client disconnected", logging.Any("client_id", sub.id))
}

// Broadcast sends positions to every client. A client over its rate budget
// gets the newest snapshot as soon as the budget allows; intermediate ones
// are skipped. Clients that fail to receive are disconnected. It is safe to
// use as a notifier callback.
func (h *Hub) Broadcast(positions *model.PositionMap) {
	h.mu.Lock()
	h.seq++
	msg := Message{
		Type:       MessageTypePositions,
		Seq:        h.seq,
		SentAt:     h.now().UTC(),
		Satellites: positions,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.mu.Unlock()
		h.log.Error(context.Background(), "encode position message", logging.Err(err))
		return
	}
	h.last = data
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.offer(data, h.flushPending); err != nil {
			h.dropClient(sub, err)
		}
	}
}

func (h *Hub) flushPending(sub *subscriber) {
	if err := sub.takePending(); err != nil && !errors.Is(err, errSubscriberClosed) {
		h.dropClient(sub, err)
	}
}

func (h *Hub) dropClient(sub *subscriber, err error) {
	h.log.Debug(context.Background(), "dropping stream client",
		logging.Any("client_id", sub.id),
		logging.Err(err),
	)
	h.unregister(sub)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.writeMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		h.unregister(sub)
	}
}
