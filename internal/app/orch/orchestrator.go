// Package orch wires visitors to their avatar sessions: one Controller per
// visitor, the signal connection that carries its view, and the playback peer
// that carries the avatar media.
package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/app/sfu"
	"github.com/dkeye/AvatarCoach/internal/app/shell"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/rs/zerolog/log"
)

// PlaybackFactory builds the visitor-facing peer that plays the avatar back.
type PlaybackFactory func(sid core.SessionID) (core.MediaConnection, error)

type Orchestrator struct {
	Registry    *Registry
	Relays      *sfu.RelayManager
	Deps        Deps
	NewPlayback PlaybackFactory
	Policy      Policy

	mu       sync.Mutex
	playback map[core.SessionID]*playback
}

func New(deps Deps, relays *sfu.RelayManager, newPlayback PlaybackFactory) *Orchestrator {
	return &Orchestrator{
		Registry:    NewRegistry(),
		Relays:      relays,
		Deps:        deps,
		NewPlayback: newPlayback,
		Policy:      SimplePolicy{},
		playback:    make(map[core.SessionID]*playback),
	}
}

// Controller returns the visitor's controller, creating and wiring it on first use.
func (o *Orchestrator) Controller(sid core.SessionID) *Controller {
	ctrl, _ := o.Registry.GetOrCreate(sid, func() *Controller {
		ctrl := NewController(sid, o.Deps)
		ctrl.OnView(func(v shell.View) { o.Send(sid, "view", ViewMessage{Type: "view", View: v}) })
		ctrl.OnStream(func(stream core.MediaStream) { o.bindStream(sid, stream) })
		ctrl.Store.OnChange(func(p domain.Phase) {
			if p == domain.PhaseInactive {
				o.cleanupMedia(sid)
			}
		})
		return ctrl
	})
	return ctrl
}

// View renders the visitor's page without creating a controller for them.
func (o *Orchestrator) View(sid core.SessionID, lang string) shell.View {
	if ctrl, ok := o.Registry.Controller(sid); ok {
		return ctrl.View()
	}
	return shell.Render(o.Deps.Catalog, shell.State{
		Phase:    domain.PhaseInactive,
		Language: lang,
		Quality:  domain.QualityUnknown,
		Muted:    true,
	})
}

// Connect binds a visitor's signal connection. A previous connection of the
// same visitor is canceled and playback is renegotiated on the new one.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) *Controller {
	ctrl := o.Controller(sid)
	if prev := o.Registry.BindSignal(sid, conn, cancel); prev != nil {
		prev()
	}
	metrics.VisitorsConnected.Inc()

	o.Send(sid, "view", ViewMessage{Type: "view", View: ctrl.View()})
	o.resumeMedia(sid)
	return ctrl
}

// Disconnect tears the visitor's session down when conn was still current.
func (o *Orchestrator) Disconnect(ctx context.Context, sid core.SessionID, conn core.SignalConnection) {
	metrics.VisitorsConnected.Dec()
	if !o.Registry.UnbindSignal(sid, conn) {
		return
	}
	ctrl, ok := o.Registry.Controller(sid)
	if !ok {
		return
	}
	ctrl.Teardown(ctx)
	o.cleanupMedia(sid)
	o.Registry.Remove(sid)
}

// Shutdown tears down every visitor.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	for _, snap := range o.Registry.Snapshot() {
		snap.Ctrl.Teardown(ctx)
		o.cleanupMedia(snap.SID)
		o.Registry.Cancel(snap.SID)
	}
	log.Info().Str("module", "app.orch").Msg("all visitors torn down")
}

// Send pushes a JSON message to the visitor's signal connection, if any.
// A full buffer is resolved by the backpressure policy.
func (o *Orchestrator) Send(sid core.SessionID, kind string, v any) {
	conn, ok := o.Registry.Signal(sid)
	if !ok {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal signal message")
		return
	}
	err = conn.TrySend(data)
	if err == nil {
		return
	}
	logger := log.With().Str("module", "app.orch").Str("sid", string(sid)).Str("type", kind).Logger()
	if !errors.Is(err, core.ErrBackpressure) || o.Policy == nil {
		logger.Warn().Err(err).Msg("signal send dropped")
		return
	}
	switch o.Policy.OnBackpressure(kind) {
	case KickVisitor:
		logger.Warn().Msg("backpressure, disconnecting visitor")
		o.Registry.Cancel(sid)
	default:
		logger.Debug().Msg("backpressure, frame dropped")
	}
}
