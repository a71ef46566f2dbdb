package rtc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackAPI lets two in-process peers reach each other on hosts without
// a routable interface.
func loopbackAPI(t *testing.T) *webrtc.API {
	t.Helper()
	m := &webrtc.MediaEngine{}
	require.NoError(t, m.RegisterDefaultCodecs())
	ir := &interceptor.Registry{}
	require.NoError(t, webrtc.RegisterDefaultInterceptors(m, ir))

	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir), webrtc.WithSettingEngine(se))
}

func newPeer(t *testing.T, label string) *WebRTCConnection {
	t.Helper()
	c, err := newWebRTCConnection(loopbackAPI(t), webrtc.Configuration{}, label)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func TestDefaultWebRTCConfig(t *testing.T) {
	cfg := DefaultWebRTCConfig(nil)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)

	cfg = DefaultWebRTCConfig([]string{"stun:a", "turn:b"})
	assert.Equal(t, []string{"stun:a", "turn:b"}, cfg.ICEServers[0].URLs)
}

func TestWebRTCConnection_LoopbackRelaysTrack(t *testing.T) {
	playback := newPeer(t, "playback")
	browser := newPeer(t, "browser")

	var candidates atomic.Int32
	playback.OnICECandidate(func(webrtc.ICECandidateInit) { candidates.Add(1) })

	connected := make(chan struct{}, 1)
	browser.OnStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateConnected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})
	got := make(chan *webrtc.TrackRemote, 1)
	browser.OnTrack(func(_ context.Context, tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) { got <- tr })

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "avatar")
	require.NoError(t, err)
	_, err = playback.AddLocalTrack(track)
	require.NoError(t, err)

	gathered := webrtc.GatheringCompletePromise(playback.pc)
	_, err = playback.Offer()
	require.NoError(t, err)
	<-gathered
	offer := playback.pc.LocalDescription()
	require.NotNil(t, offer)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)

	require.NoError(t, browser.ApplyOffer(*offer))
	answer, err := browser.Answer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)
	require.NoError(t, playback.ApplyAnswer(*answer))

	select {
	case <-connected:
	case <-time.After(10 * time.Second):
		t.Fatal("peers did not connect")
	}

	var remote *webrtc.TrackRemote
	deadline := time.After(10 * time.Second)
	for seq := uint16(1); remote == nil; seq++ {
		require.NoError(t, track.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Version: 2, SequenceNumber: seq, Timestamp: uint32(seq) * 960},
			Payload: []byte{0xf8, 0xff, 0xfe},
		}))
		select {
		case remote = <-got:
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("track never arrived")
		}
	}

	assert.Equal(t, "audio", remote.ID())
	assert.Equal(t, "avatar", remote.StreamID())
	assert.Equal(t, webrtc.MimeTypeOpus, remote.Codec().MimeType)
	assert.Positive(t, candidates.Load(), "local candidates are reported")
}

func TestWebRTCConnection_CloseFiresOnce(t *testing.T) {
	c, err := NewWebRTCConnection(webrtc.Configuration{}, "solo")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	var closed atomic.Int32
	c.OnClosed(func() { closed.Add(1) })

	c.Close()
	c.Close()
	assert.Equal(t, int32(1), closed.Load())

	_, err = c.Offer()
	assert.Error(t, err, "a closed peer cannot negotiate")
}
