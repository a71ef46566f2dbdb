package orch

import (
	"context"
	"errors"

	"github.com/dkeye/AvatarCoach/internal/app/sfu"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNoPlayback = errors.New("no playback connection")

// playback is the visitor-facing peer. Offers go out one at a time; a track
// added while an offer is outstanding triggers another round after the answer.
type playback struct {
	conn        core.MediaConnection
	negotiating bool
	pending     bool
}

func (o *Orchestrator) bindStream(sid core.SessionID, stream core.MediaStream) {
	stream.OnTrack(func(ctx context.Context, track *webrtc.TrackRemote) {
		o.OnAvatarTrack(ctx, sid, track)
	})
}

// OnAvatarTrack relays a new avatar track to the visitor's playback peer.
func (o *Orchestrator) OnAvatarTrack(ctx context.Context, sid core.SessionID, src sfu.Source) {
	if o.Relays == nil {
		return
	}
	relay := o.Relays.StartRelay(ctx, sid, src)
	if _, ok := o.Registry.Signal(sid); !ok {
		return
	}

	pb, err := o.ensurePlayback(sid)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("playback peer")
		return
	}
	if err := sfu.SubscribeRelay(relay, sid, pb.conn); err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("subscribe playback track")
		return
	}
	o.negotiate(sid, pb)
}

// resumeMedia rebuilds playback for a visitor that reconnected mid-session.
func (o *Orchestrator) resumeMedia(sid core.SessionID) {
	o.closePlayback(sid)
	if o.Relays == nil || !o.Relays.HasRelay(sid) {
		return
	}
	pb, err := o.ensurePlayback(sid)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("playback peer")
		return
	}
	n, err := o.Relays.Subscribe(sid, sid, pb.conn)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("resubscribe playback")
	}
	if n > 0 {
		o.negotiate(sid, pb)
	}
}

func (o *Orchestrator) ensurePlayback(sid core.SessionID) (*playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pb, ok := o.playback[sid]; ok {
		return pb, nil
	}
	if o.NewPlayback == nil {
		return nil, ErrNoPlayback
	}
	conn, err := o.NewPlayback(sid)
	if err != nil {
		return nil, err
	}
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		o.Send(sid, "candidate", candidateMessage(ci))
	})
	if err := conn.Start(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	conn.OnClosed(func() { o.dropPlayback(sid, conn) })
	pb := &playback{conn: conn}
	o.playback[sid] = pb
	return pb, nil
}

func (o *Orchestrator) negotiate(sid core.SessionID, pb *playback) {
	o.mu.Lock()
	if pb.negotiating {
		pb.pending = true
		o.mu.Unlock()
		return
	}
	pb.negotiating = true
	o.mu.Unlock()

	offer, err := pb.conn.Offer()
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("playback offer")
		o.mu.Lock()
		pb.negotiating = false
		o.mu.Unlock()
		return
	}
	o.Send(sid, "offer", SDPMessage{Type: "offer", SDP: offer.SDP})
}

// HandleAnswer applies the visitor's answer to the outstanding playback offer.
func (o *Orchestrator) HandleAnswer(sid core.SessionID, sdp string) error {
	o.mu.Lock()
	pb, ok := o.playback[sid]
	o.mu.Unlock()
	if !ok {
		return ErrNoPlayback
	}
	if err := pb.conn.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return err
	}

	o.mu.Lock()
	pb.negotiating = false
	again := pb.pending
	pb.pending = false
	o.mu.Unlock()
	if again {
		o.negotiate(sid, pb)
	}
	return nil
}

// HandleCandidate adds a remote candidate from the visitor.
func (o *Orchestrator) HandleCandidate(sid core.SessionID, ci webrtc.ICECandidateInit) error {
	o.mu.Lock()
	pb, ok := o.playback[sid]
	o.mu.Unlock()
	if !ok {
		return ErrNoPlayback
	}
	return pb.conn.AddICECandidate(ci)
}

func (o *Orchestrator) dropPlayback(sid core.SessionID, conn core.MediaConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if pb, ok := o.playback[sid]; ok && pb.conn == conn {
		delete(o.playback, sid)
	}
}

func (o *Orchestrator) closePlayback(sid core.SessionID) {
	o.mu.Lock()
	pb, ok := o.playback[sid]
	delete(o.playback, sid)
	o.mu.Unlock()
	if ok {
		if o.Relays != nil {
			o.Relays.MarkSubscriberDelete(sid, sid)
		}
		pb.conn.Close()
	}
}

// cleanupMedia stops the visitor's relays and closes the playback peer.
func (o *Orchestrator) cleanupMedia(sid core.SessionID) {
	o.closePlayback(sid)
	if o.Relays != nil {
		o.Relays.StopRelays(sid)
	}
}
