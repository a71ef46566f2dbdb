package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Source is the remote side of a relay; *webrtc.TrackRemote satisfies it.
type Source interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Relay copies packets from one avatar track to every subscribed playback track.
type Relay struct {
	Src Source

	mu        sync.RWMutex
	outTracks map[core.SessionID]*OutTrack

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(src Source, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:       src,
		outTracks: make(map[core.SessionID]*OutTrack),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Done is closed once the relay loop has exited.
func (r *Relay) Done() <-chan struct{} { return r.done }

func (r *Relay) loop(ctx context.Context, logger zerolog.Logger) {
	defer close(r.done)
	packets := metrics.RelayedPackets.WithLabelValues(r.Src.Kind().String())
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			r.markAllDelete()
			return
		}
		if n := r.forward(pkt, logger); n > 0 {
			packets.Add(float64(n))
		}
	}
}

// forward writes pkt to every live out-track and prunes the ones marked delete.
func (r *Relay) forward(pkt *rtp.Packet, logger zerolog.Logger) int {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	written := 0
	var dirty []core.SessionID
	for dst, ot := range snapshot {
		if ot.State() == TrackStateDelete {
			dirty = append(dirty, dst)
			continue
		}
		if err := ot.Track.WriteRTP(pkt); err != nil {
			logger.Warn().Err(err).Str("dst_sid", string(dst)).Msg("relay write RTP error, dropping out track")
			ot.MarkDelete()
			dirty = append(dirty, dst)
			continue
		}
		written++
	}
	if len(dirty) > 0 {
		r.prune(dirty)
	}
	return written
}

func (r *Relay) prune(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		if ot, ok := r.outTracks[sid]; ok && ot.State() == TrackStateDelete {
			delete(r.outTracks, sid)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

func (r *Relay) AddOutTrack(dst core.SessionID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.outTracks[dst]; ok {
		old.MarkDelete()
	}
	r.outTracks[dst] = ot
}

func (r *Relay) outTrack(dst core.SessionID) (*OutTrack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ot, ok := r.outTracks[dst]
	return ot, ok
}

// Subscribers reports the number of out-tracks not marked delete.
func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ot := range r.outTracks {
		if ot.State() != TrackStateDelete {
			n++
		}
	}
	return n
}
