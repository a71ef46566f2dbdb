package heygen

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestStream_FansOutAndReplaysTracks(t *testing.T) {
	peer := &fakePeer{}
	s := newStream("sess-1", peer)

	first := &webrtc.TrackRemote{}
	var early []*webrtc.TrackRemote
	s.OnTrack(func(_ context.Context, tr *webrtc.TrackRemote) { early = append(early, tr) })
	s.addTrack(context.Background(), first)

	second := &webrtc.TrackRemote{}
	s.addTrack(context.Background(), second)

	var late []*webrtc.TrackRemote
	s.OnTrack(func(_ context.Context, tr *webrtc.TrackRemote) { late = append(late, tr) })

	assert.Equal(t, []*webrtc.TrackRemote{first, second}, early)
	assert.Equal(t, []*webrtc.TrackRemote{first, second}, late, "late subscribers get known tracks")
	assert.Len(t, s.Tracks(), 2)

	s.Close()
	s.Close()
	s.addTrack(context.Background(), &webrtc.TrackRemote{})
	assert.Empty(t, s.Tracks())
	assert.Len(t, early, 2, "no delivery after close")
	assert.Equal(t, 1, peer.closedCount())
}
