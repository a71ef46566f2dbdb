// Package sfu relays the avatar's remote tracks to visitor playback peers.
package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDelete
)

// Writer is the local side of a relayed track.
type Writer interface {
	WriteRTP(p *rtp.Packet) error
}

// OutTrack is one playback track fed by a relay.
type OutTrack struct {
	Track Writer
	state atomic.Int32
}

func NewOutTrack(w Writer) *OutTrack {
	return &OutTrack{Track: w}
}

func (ot *OutTrack) State() TrackState { return TrackState(ot.state.Load()) }

func (ot *OutTrack) MarkDelete() { ot.state.Store(int32(TrackStateDelete)) }
