package heygen

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Stream is the avatar media received over the vendor peer.
type Stream struct {
	id   string
	peer Peer

	mu      sync.Mutex
	ctx     context.Context
	tracks  []*webrtc.TrackRemote
	onTrack []func(ctx context.Context, t *webrtc.TrackRemote)
	closed  bool
}

func newStream(id string, peer Peer) *Stream {
	return &Stream{id: id, peer: peer, ctx: context.Background()}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []*webrtc.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*webrtc.TrackRemote(nil), s.tracks...)
}

// OnTrack registers fn and replays tracks already received.
func (s *Stream) OnTrack(fn func(ctx context.Context, t *webrtc.TrackRemote)) {
	s.mu.Lock()
	s.onTrack = append(s.onTrack, fn)
	known := append([]*webrtc.TrackRemote(nil), s.tracks...)
	ctx := s.ctx
	s.mu.Unlock()

	for _, t := range known {
		fn(ctx, t)
	}
}

func (s *Stream) addTrack(ctx context.Context, t *webrtc.TrackRemote) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.tracks = append(s.tracks, t)
	subs := append([]func(context.Context, *webrtc.TrackRemote){}, s.onTrack...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ctx, t)
	}
}

func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.tracks = nil
	s.mu.Unlock()
	if s.peer != nil {
		s.peer.Close()
	}
}
