package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is a visitor-facing peer used to play the avatar stream back.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// Offer creates and sets a local offer covering every attached track.
	// Local candidates trickle through OnICECandidate.
	Offer() (*webrtc.SessionDescription, error)
	// ApplyAnswer sets the remote answer to the last offer.
	ApplyAnswer(webrtc.SessionDescription) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// AddLocalTrack attaches a local static RTP track to the underlying PeerConnection.
	AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error)
	// OnClosed sets a callback for cleanup of the playback session.
	OnClosed(func())
}

// MediaStream is the vendor-owned avatar stream. Holders keep a non-owning
// reference; only the vendor client closes it.
type MediaStream interface {
	ID() string
	// Tracks returns the remote tracks received so far.
	Tracks() []*webrtc.TrackRemote
	// OnTrack is invoked for every remote track, including ones already received.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote))
	Close()
}
