package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RelayManager keeps the relays of each visitor's avatar stream.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[core.SessionID][]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[core.SessionID][]*Relay),
	}
}

// StartRelay starts relaying src, one of the avatar tracks owned by owner.
// A relay for the same track id replaces the previous one.
func (m *RelayManager) StartRelay(ctx context.Context, owner core.SessionID, src Source) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("sid", string(owner)).
		Str("track_id", src.ID()).
		Str("kind", src.Kind().String()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)

	m.mu.Lock()
	kept := m.relays[owner][:0]
	for _, old := range m.relays[owner] {
		if old.Src.ID() == src.ID() {
			logger.Info().Msg("replacing existing relay for track")
			old.markAllDelete()
			old.cancel()
			continue
		}
		kept = append(kept, old)
	}
	m.relays[owner] = append(kept, relay)
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, logger)
	return relay
}

func (m *RelayManager) Relays(owner core.SessionID) []*Relay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Relay(nil), m.relays[owner]...)
}

// Subscribe attaches dst's playback connection to every relay of owner it is
// not yet subscribed to and returns how many tracks were added.
func (m *RelayManager) Subscribe(owner, dst core.SessionID, mc core.MediaConnection) (int, error) {
	added := 0
	for _, r := range m.Relays(owner) {
		if ot, ok := r.outTrack(dst); ok && ot.State() == TrackStateOk {
			continue
		}
		if err := SubscribeRelay(r, dst, mc); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// SubscribeRelay creates a local track matching the relay source codec and
// attaches it to mc.
func SubscribeRelay(r *Relay, dst core.SessionID, mc core.MediaConnection) error {
	local, err := webrtc.NewTrackLocalStaticRTP(r.Src.Codec().RTPCodecCapability, r.Src.ID(), r.Src.StreamID())
	if err != nil {
		return err
	}
	if _, err := mc.AddLocalTrack(local); err != nil {
		return err
	}
	r.AddOutTrack(dst, NewOutTrack(local))
	return nil
}

// MarkSubscriberDelete detaches dst from every relay of owner.
func (m *RelayManager) MarkSubscriberDelete(owner, dst core.SessionID) {
	for _, r := range m.Relays(owner) {
		if ot, ok := r.outTrack(dst); ok {
			ot.MarkDelete()
		}
	}
}

// StopRelays stops and forgets every relay of owner.
func (m *RelayManager) StopRelays(owner core.SessionID) {
	m.mu.Lock()
	relays := m.relays[owner]
	delete(m.relays, owner)
	m.mu.Unlock()

	for _, r := range relays {
		r.markAllDelete()
		r.cancel()
	}
}

func (m *RelayManager) HasRelay(owner core.SessionID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relays[owner]) > 0
}
