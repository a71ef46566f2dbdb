package orch

import (
	"context"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/rs/zerolog/log"
)

type visitorEntry struct {
	ctrl   *Controller
	signal core.SignalConnection
	cancel context.CancelFunc
}

// Registry tracks visitor controllers and their current signal connection.
type Registry struct {
	mu       sync.RWMutex
	visitors map[core.SessionID]*visitorEntry
}

func NewRegistry() *Registry {
	return &Registry{
		visitors: make(map[core.SessionID]*visitorEntry),
	}
}

// GetOrCreate returns the visitor's controller, building it with create on first use.
func (r *Registry) GetOrCreate(sid core.SessionID, create func() *Controller) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.visitors[sid]; ok {
		return e.ctrl, false
	}
	ctrl := create()
	r.visitors[sid] = &visitorEntry{ctrl: ctrl}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created visitor")
	return ctrl, true
}

func (r *Registry) Controller(sid core.SessionID) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.visitors[sid]; ok {
		return e.ctrl, true
	}
	return nil, false
}

// BindSignal attaches conn to an existing visitor and returns the replaced
// connection's cancel func, if any.
func (r *Registry) BindSignal(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.visitors[sid]
	if !ok {
		return nil
	}
	prev := e.cancel
	e.signal = conn
	e.cancel = cancel
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
	return prev
}

func (r *Registry) Signal(sid core.SessionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.visitors[sid]
	if !ok || e.signal == nil {
		return nil, false
	}
	return e.signal, true
}

// UnbindSignal detaches conn if it is still the visitor's current connection.
func (r *Registry) UnbindSignal(sid core.SessionID, conn core.SignalConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.visitors[sid]
	if !ok || e.signal != conn {
		return false
	}
	e.signal = nil
	e.cancel = nil
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind signal")
	return true
}

func (r *Registry) Remove(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.visitors, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed visitor")
}

// Cancel cancels the visitor's signal connection context.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.visitors[sid]
	var cancel context.CancelFunc
	if ok {
		cancel = e.cancel
	}
	r.mu.RUnlock()
	if cancel == nil {
		return false
	}
	cancel()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled signal")
	return true
}

type regSnap struct {
	SID  core.SessionID
	Ctrl *Controller
}

func (r *Registry) Snapshot() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.visitors))
	for sid, e := range r.visitors {
		out = append(out, regSnap{SID: sid, Ctrl: e.ctrl})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visitors)
}
