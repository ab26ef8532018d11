// Package transport implements the Transport & Channel Registry (C1):
// full-duplex WebSocket channels addressed by (channel, sessionId?), with
// best-effort broadcast fan-out (§4.1). A broadcast writes to its clients
// one after another, each write waiting up to DefaultWriteTimeout.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/mswim/pkg/models"
)

// Channel is one of the two addressable frame channels.
type Channel string

// Recognized channels.
const (
	ChannelWidget    Channel = "widget"
	ChannelDashboard Channel = "dashboard"
)

// DefaultWriteTimeout bounds how long a single client send may block.
const DefaultWriteTimeout = 5 * time.Second

// FrameHandler processes one validated inbound frame from a connection.
// The registry calls it on the connection's own read-loop goroutine.
type FrameHandler interface {
	HandleFrame(ctx context.Context, conn *Conn, frame json.RawMessage, frameType string) error
}

// Conn is a single registered client connection.
type Conn struct {
	ID        string
	Channel   Channel
	SessionID string // empty for connections not bound to a session

	ws  *websocket.Conn
	ctx context.Context
}

// Registry tracks live connections and routes outbound broadcasts (§4.1).
// Mirrors the teacher's ConnectionManager map+mutex shape, narrowed to two
// fixed channels instead of dynamic PG-LISTEN-backed ones.
type Registry struct {
	mu          sync.RWMutex
	byChannel   map[Channel]map[string]*Conn
	bySession   map[Channel]map[string]map[string]*Conn // channel -> sessionId -> connId -> conn

	writeTimeout time.Duration
	validator    *FrameValidator
	handler      FrameHandler
	log          *slog.Logger
}

// New builds a Registry. handler may be nil until wired by the caller (the
// transport package is constructed before the ingestor/intervention-outcome
// handlers it dispatches to, so callers typically set it via SetHandler).
func New(handler FrameHandler, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byChannel:    map[Channel]map[string]*Conn{ChannelWidget: {}, ChannelDashboard: {}},
		bySession:    map[Channel]map[string]map[string]*Conn{ChannelWidget: {}, ChannelDashboard: {}},
		writeTimeout: DefaultWriteTimeout,
		validator:    NewFrameValidator(),
		handler:      handler,
		log:          log,
	}
}

// SetHandler wires the frame handler after construction, for wiring cycles
// where the registry must exist before the handler that depends on it.
func (r *Registry) SetHandler(h FrameHandler) { r.handler = h }

// HandleConnection manages one client's lifecycle from accept to close.
// Blocks until the connection closes. Called by the HTTP upgrade handler.
func (r *Registry) HandleConnection(parentCtx context.Context, ws *websocket.Conn, channel Channel, sessionID string) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	c := &Conn{ID: uuid.New().String(), Channel: channel, SessionID: sessionID, ws: ws, ctx: ctx}

	r.register(c)
	defer r.unregister(c)

	r.sendJSON(c, map[string]interface{}{"type": "connected", "channel": string(channel), "sessionId": sessionID})

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			// Malformed JSON is silently dropped (§4.1).
			continue
		}

		if err := r.validator.Validate(channel, envelope.Type, data); err != nil {
			r.sendJSON(c, map[string]string{"type": "validation_error", "error": err.Error()})
			continue
		}

		if r.handler == nil {
			continue
		}
		if err := r.handler.HandleFrame(ctx, c, json.RawMessage(data), envelope.Type); err != nil {
			r.log.Warn("transport: frame handling failed", "connectionId", c.ID, "type", envelope.Type, "err", err)
		}
	}
}

// BroadcastToChannel sends message to every live client on channel (§4.1).
func (r *Registry) BroadcastToChannel(channel Channel, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		r.log.Warn("transport: broadcast marshal failed", "channel", channel, "err", err)
		return
	}

	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.byChannel[channel]))
	for _, c := range r.byChannel[channel] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		r.sendRaw(c, data)
	}
}

// BroadcastToSession sends message only to clients on (channel, sessionId) (§4.1).
func (r *Registry) BroadcastToSession(channel Channel, sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		r.log.Warn("transport: session broadcast marshal failed", "channel", channel, "sessionId", sessionID, "err", err)
		return
	}

	r.mu.RLock()
	var conns []*Conn
	if bucket, ok := r.bySession[channel][sessionID]; ok {
		conns = make([]*Conn, 0, len(bucket))
		for _, c := range bucket {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		r.sendRaw(c, data)
	}
}

// BroadcastEvaluation implements evaluation.Broadcaster (§4.6 step 6): push
// the completed Evaluation, reshaped, to the dashboard channel.
func (r *Registry) BroadcastEvaluation(eval models.Evaluation) {
	r.BroadcastToChannel(ChannelDashboard, map[string]interface{}{"type": "evaluation", "data": eval})
}

// BroadcastTrackEvent implements ingest.Broadcaster (§4.2 step 6): push the
// `track_event` notice to the dashboard channel.
func (r *Registry) BroadcastTrackEvent(event models.TrackEvent) {
	r.BroadcastToChannel(ChannelDashboard, map[string]interface{}{"type": "track_event", "data": event})
}

// BroadcastIntervention implements intervention.Broadcaster (§4.8 step 4):
// push the fired intervention to the widget (scoped to its session) and to
// the dashboard (unscoped, for observability).
func (r *Registry) BroadcastIntervention(iv models.Intervention) {
	payload := map[string]interface{}{
		"sessionId": iv.SessionID,
		"data": map[string]interface{}{
			"intervention_id": iv.ID,
			"session_id":      iv.SessionID,
			"type":            iv.Type,
			"action_code":     iv.ActionCode,
			"friction_id":     iv.FrictionID,
			"timestamp":       iv.Timestamp,
			"message":         iv.Payload["message"],
			"cta_label":       iv.Payload["cta_label"],
			"cta_action":      iv.Payload["cta_action"],
			"mswim_score":     iv.MSWIMScoreAtFire,
			"mswim_tier":      iv.TierAtFire,
			"status":          "sent",
		},
	}
	r.BroadcastToSession(ChannelWidget, iv.SessionID, mergeType("intervention", payload))
	r.BroadcastToChannel(ChannelDashboard, mergeType("intervention", payload))
}

// Reply sends message to the single connection that produced the inbound
// frame a FrameHandler is processing, e.g. a `track_ack` or `pong` reply
// (§4.2 "Return", §6.1 ping/pong).
func (r *Registry) Reply(c *Conn, message interface{}) {
	r.sendJSON(c, message)
}

func mergeType(t string, m map[string]interface{}) map[string]interface{} {
	m["type"] = t
	return m
}

// ClientCounts implements §4.1's getClientCounts(): {channel -> count}.
func (r *Registry) ClientCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.byChannel))
	for ch, conns := range r.byChannel {
		out[string(ch)] = len(conns)
	}
	return out
}

func (r *Registry) register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChannel[c.Channel][c.ID] = c
	if c.SessionID != "" {
		if r.bySession[c.Channel][c.SessionID] == nil {
			r.bySession[c.Channel][c.SessionID] = map[string]*Conn{}
		}
		r.bySession[c.Channel][c.SessionID][c.ID] = c
	}
}

func (r *Registry) unregister(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byChannel[c.Channel], c.ID)
	if c.SessionID != "" {
		if bucket, ok := r.bySession[c.Channel][c.SessionID]; ok {
			delete(bucket, c.ID)
			if len(bucket) == 0 {
				delete(r.bySession[c.Channel], c.SessionID)
			}
		}
	}
	if c.ws != nil {
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}
}

func (r *Registry) sendJSON(c *Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("transport: marshal failed", "connectionId", c.ID, "err", err)
		return
	}
	r.sendRaw(c, data)
}

// sendRaw is best-effort: a failed send is logged but the client stays
// registered until its transport reports close (§4.1). ws is nil only in
// tests exercising registry bookkeeping without a live connection.
func (r *Registry) sendRaw(c *Conn, data []byte) {
	if c.ws == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, r.writeTimeout)
	defer cancel()
	if err := c.ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		r.log.Warn("transport: send failed", "connectionId", c.ID, "err", err)
	}
}
