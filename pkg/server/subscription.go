package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/getmockd/qiufen/pkg/schema"
)

// Subprotocols accepted on the GraphQL path.
const (
	ProtocolTransportWS = "graphql-transport-ws"
	ProtocolLegacyWS    = "graphql-ws"
)

// WebSocket message types of graphql-transport-ws and the legacy
// subscriptions-transport-ws (graphql-ws) protocol.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"

	msgPing      = "ping"
	msgPong      = "pong"
	msgSubscribe = "subscribe"
	msgNext      = "next"
	msgError     = "error"
	msgComplete  = "complete"

	msgKeepAlive           = "ka"
	msgStart               = "start"
	msgData                = "data"
	msgStop                = "stop"
	msgConnectionTerminate = "connection_terminate"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StreamConfig controls generated subscription streams.
type StreamConfig struct {
	// Events is the number of payloads sent before complete.
	Events int
	// Interval is the pause before each payload.
	Interval time.Duration
}

// SubscriptionHandler serves subscriptions over WebSocket. Every subscribe
// gets Events generated payloads, Interval apart, then complete.
type SubscriptionHandler struct {
	exec    *Executor
	stream  StreamConfig
	accept  websocket.AcceptOptions
	metrics *metrics
	log     *slog.Logger

	mu     sync.RWMutex
	conns  map[string]*subscriptionConn
	connID atomic.Uint64
}

type subscriptionConn struct {
	id       string
	conn     *websocket.Conn
	protocol string
	mu       sync.Mutex
	subs     map[string]context.CancelFunc
}

// NewSubscriptionHandler creates a subscription handler.
func NewSubscriptionHandler(exec *Executor, stream StreamConfig, m *metrics, log *slog.Logger) *SubscriptionHandler {
	if stream.Events <= 0 {
		stream.Events = 1
	}
	return &SubscriptionHandler{
		exec:   exec,
		stream: stream,
		accept: websocket.AcceptOptions{
			Subprotocols:       []string{ProtocolTransportWS, ProtocolLegacyWS},
			InsecureSkipVerify: true,
		},
		metrics: m,
		log:     log,
		conns:   make(map[string]*subscriptionConn),
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// ServeHTTP upgrades the connection and serves messages until the client
// goes away.
func (h *SubscriptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &h.accept)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	protocol := conn.Subprotocol()
	if protocol == "" {
		protocol = ProtocolTransportWS
	}
	sc := &subscriptionConn{
		id:       fmt.Sprintf("conn-%d", h.connID.Add(1)),
		conn:     conn,
		protocol: protocol,
		subs:     make(map[string]context.CancelFunc),
	}

	h.mu.Lock()
	h.conns[sc.id] = sc
	h.mu.Unlock()
	h.log.Debug("subscription connection opened", "conn", sc.id, "protocol", protocol)

	defer func() {
		sc.cancelAll()
		h.mu.Lock()
		delete(h.conns, sc.id)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
		h.log.Debug("subscription connection closed", "conn", sc.id)
	}()

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(sc, "", Error{Message: "invalid message format"})
			continue
		}
		if !h.handleMessage(ctx, sc, &msg) {
			return
		}
	}
}

// handleMessage reacts to one client message. It returns false when the
// connection should close.
func (h *SubscriptionHandler) handleMessage(ctx context.Context, sc *subscriptionConn, msg *wsMessage) bool {
	switch msg.Type {
	case msgConnectionInit:
		_ = h.send(sc, &wsMessage{Type: msgConnectionAck})
		if sc.protocol == ProtocolLegacyWS {
			_ = h.send(sc, &wsMessage{Type: msgKeepAlive})
		}
	case msgPing:
		_ = h.send(sc, &wsMessage{Type: msgPong, Payload: msg.Payload})
	case msgSubscribe, msgStart:
		h.subscribe(ctx, sc, msg.ID, msg.Payload)
	case msgComplete, msgStop:
		sc.cancel(msg.ID)
	case msgConnectionTerminate:
		return false
	}
	return true
}

func (h *SubscriptionHandler) subscribe(ctx context.Context, sc *subscriptionConn, id string, payload json.RawMessage) {
	if id == "" {
		h.sendError(sc, "", Error{Message: "subscription id is required"})
		return
	}
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(sc, id, Error{Message: "invalid subscription payload"})
		return
	}

	p, err := h.exec.prepare(&req)
	if err != nil {
		h.sendError(sc, id, toError(err))
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	sc.mu.Lock()
	if _, exists := sc.subs[id]; exists {
		sc.mu.Unlock()
		cancel()
		h.sendError(sc, id, Error{Message: fmt.Sprintf("subscriber for %s already exists", id)})
		return
	}
	sc.subs[id] = cancel
	sc.mu.Unlock()

	go h.emit(subCtx, sc, id, p)
}

// emit sends the generated payloads of one subscription. Queries and
// mutations sent over the socket get a single payload.
func (h *SubscriptionHandler) emit(ctx context.Context, sc *subscriptionConn, id string, p *prepared) {
	h.metrics.subscriptionStarted()
	defer func() {
		h.metrics.subscriptionEnded()
		if sc.remove(id) {
			_ = h.send(sc, &wsMessage{ID: id, Type: msgComplete})
		}
	}()

	events := h.stream.Events
	if p.kind != schema.Subscription {
		events = 1
	}
	for i := 0; i < events; i++ {
		if h.stream.Interval > 0 && p.kind == schema.Subscription {
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.stream.Interval):
			}
		}
		if ctx.Err() != nil {
			return
		}

		c := &collector{}
		data := h.exec.run(p, uint64(i), c)
		resp := c.response(data)

		msgType := msgNext
		if sc.protocol == ProtocolLegacyWS {
			msgType = msgData
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			h.log.Error("encode subscription payload", "error", err)
			return
		}
		if err := h.send(sc, &wsMessage{ID: id, Type: msgType, Payload: payload}); err != nil {
			return
		}
	}
}

func (h *SubscriptionHandler) sendError(sc *subscriptionConn, id string, e Error) {
	var payload []byte
	if sc.protocol == ProtocolLegacyWS {
		payload, _ = json.Marshal(e)
	} else {
		payload, _ = json.Marshal([]Error{e})
	}
	_ = h.send(sc, &wsMessage{ID: id, Type: msgError, Payload: payload})
}

func (h *SubscriptionHandler) send(sc *subscriptionConn, msg *wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sc.conn.Write(ctx, websocket.MessageText, data)
}

// ConnectionCount returns the number of open WebSocket connections.
func (h *SubscriptionHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every open connection.
func (h *SubscriptionHandler) CloseAll(reason string) {
	h.mu.RLock()
	conns := make([]*subscriptionConn, 0, len(h.conns))
	for _, sc := range h.conns {
		conns = append(conns, sc)
	}
	h.mu.RUnlock()

	for _, sc := range conns {
		sc.cancelAll()
		_ = sc.conn.Close(websocket.StatusGoingAway, reason)
	}
}

func (sc *subscriptionConn) cancel(id string) {
	sc.mu.Lock()
	cancel, ok := sc.subs[id]
	delete(sc.subs, id)
	sc.mu.Unlock()
	if ok {
		cancel()
	}
}

// remove forgets a finished subscription. It reports false when the client
// already stopped it.
func (sc *subscriptionConn) remove(id string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	cancel, ok := sc.subs[id]
	if ok {
		cancel()
		delete(sc.subs, id)
	}
	return ok
}

func (sc *subscriptionConn) cancelAll() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for id, cancel := range sc.subs {
		cancel()
		delete(sc.subs, id)
	}
}
