// Package batcher implements the Per-Session Event Batcher (C4): for each
// session, a buffer of event ids that flushes on size-or-time, handing the
// ordered slice to the evaluation coordinator. All buffer mutation and the
// flush itself run inside a pkg/concurrency.SessionLane keyed by sessionID,
// so Add/flush for one session are strictly serialized and a flush's
// synchronous call into the evaluation coordinator can never overlap a
// second flush for that same session (§5 "single-session serialization").
package batcher

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/mswim/pkg/clock"
	"github.com/codeready-toolchain/mswim/pkg/concurrency"
)

// DefaultIntervalMs is BatchIntervalMs's default (§4.4).
const DefaultIntervalMs = 5000

// DefaultMaxEvents is BatchMaxEvents's default (§4.4).
const DefaultMaxEvents = 10

// FlushFunc receives a session's ordered event-id batch. Invoked at most
// once per buffer (§4.4 contract i).
type FlushFunc func(sessionID string, eventIDs []string)

// Config holds the batcher's tunables (§6.4).
type Config struct {
	IntervalMs int
	MaxEvents  int
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{IntervalMs: DefaultIntervalMs, MaxEvents: DefaultMaxEvents}
}

// buffer is one session's pending event-id slice and its pending flush
// timer. It is only ever touched from inside a SessionLane.Run closure for
// the owning sessionID, so it needs no lock of its own.
type buffer struct {
	eventIDs []string
	timer    *time.Timer
}

// Batcher is the Per-Session Event Batcher capability.
type Batcher struct {
	cfg     Config
	clock   clock.Clock
	onFlush FlushFunc
	lane    *concurrency.SessionLane

	mu      sync.Mutex
	buffers map[string]*buffer
}

// New builds a Batcher. onFlush is called synchronously on the lane
// goroutine processing the triggering Add/timer/Flush call, so it must
// not itself re-enter this same lane for sessionID (e.g. by calling back
// into something that also serializes on this exact *SessionLane instance)
// or it will deadlock; calling into a collaborator with its own, separate
// lane (such as the evaluation coordinator) is fine. lane may be nil, in
// which case the Batcher creates a private one.
func New(cfg Config, clk clock.Clock, onFlush FlushFunc, lane *concurrency.SessionLane) *Batcher {
	if clk == nil {
		clk = clock.System{}
	}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = DefaultIntervalMs
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if lane == nil {
		lane = concurrency.New()
	}
	return &Batcher{
		cfg:     cfg,
		clock:   clk,
		onFlush: onFlush,
		lane:    lane,
		buffers: make(map[string]*buffer),
	}
}

func (b *Batcher) getOrCreateBuffer(sessionID string) *buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, ok := b.buffers[sessionID]
	if !ok {
		buf = &buffer{}
		b.buffers[sessionID] = buf
	}
	return buf
}

// Add appends an event id to the session's buffer, arming a flush timer on
// the buffer's first event. If the size threshold is reached the buffer is
// flushed synchronously before Add returns (§9 open question (a): the
// max-size check runs after append, in the same call). The whole operation
// runs inside the session's lane, so it cannot interleave with a timer
// flush or a manual Flush for the same session.
func (b *Batcher) Add(sessionID, eventID string) {
	b.lane.Run(sessionID, func() {
		buf := b.getOrCreateBuffer(sessionID)
		buf.eventIDs = append(buf.eventIDs, eventID)
		if buf.timer == nil {
			buf.timer = time.AfterFunc(time.Duration(b.cfg.IntervalMs)*time.Millisecond, func() {
				b.flushLocked(sessionID)
			})
		}
		if len(buf.eventIDs) >= b.cfg.MaxEvents {
			b.doFlush(sessionID, buf)
		}
	})
}

// flushLocked re-enters the session's lane to flush, used by the timer
// callback which fires on its own goroutine outside any lane run.
func (b *Batcher) flushLocked(sessionID string) {
	b.lane.Run(sessionID, func() {
		b.mu.Lock()
		buf, ok := b.buffers[sessionID]
		b.mu.Unlock()
		if !ok {
			return
		}
		b.doFlush(sessionID, buf)
	})
}

// doFlush performs the actual drain-and-callback. Callers MUST already be
// running inside b.lane for sessionID; it is never safe to call directly.
func (b *Batcher) doFlush(sessionID string, buf *buffer) {
	if len(buf.eventIDs) == 0 {
		return
	}
	if buf.timer != nil {
		buf.timer.Stop()
		buf.timer = nil
	}
	ids := buf.eventIDs
	buf.eventIDs = nil

	b.mu.Lock()
	delete(b.buffers, sessionID)
	b.mu.Unlock()

	b.onFlush(sessionID, ids)
}

// Flush forces an immediate flush of a session's buffer, if any, used by
// external triggers outside the normal size/timer path.
func (b *Batcher) Flush(sessionID string) {
	b.flushLocked(sessionID)
}

// FlushAll drains every outstanding buffer, used at graceful shutdown
// (§4.4 flushAll, §5 "drain batches").
func (b *Batcher) FlushAll() {
	b.mu.Lock()
	sessionIDs := make([]string, 0, len(b.buffers))
	for id := range b.buffers {
		sessionIDs = append(sessionIDs, id)
	}
	b.mu.Unlock()

	for _, id := range sessionIDs {
		b.Flush(id)
	}
}
