package orch

import (
	"github.com/dkeye/AvatarCoach/internal/app/shell"
	"github.com/pion/webrtc/v4"
)

// Messages pushed to the visitor over the signal connection.

type ViewMessage struct {
	Type string     `json:"type"`
	View shell.View `json:"view"`
}

type SDPMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type CandidateMessage struct {
	Type          string  `json:"type"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func candidateMessage(ci webrtc.ICECandidateInit) CandidateMessage {
	return CandidateMessage{
		Type:          "candidate",
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	}
}
