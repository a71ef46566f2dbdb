package heygen

import (
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/pion/webrtc/v4"
)

type elevenLabsSettings struct {
	ModelID string `json:"model_id,omitempty"`
}

type voiceSettings struct {
	Rate       float64             `json:"rate,omitempty"`
	Emotion    string              `json:"emotion,omitempty"`
	ElevenLabs *elevenLabsSettings `json:"elevenlabs_settings,omitempty"`
}

type sttSettings struct {
	Provider string `json:"provider,omitempty"`
}

type newSessionRequest struct {
	Quality              string       `json:"quality"`
	AvatarName           string       `json:"avatar_name"`
	KnowledgeBaseID      string       `json:"knowledge_base_id,omitempty"`
	Voice                voiceSettings `json:"voice"`
	Language             string       `json:"language,omitempty"`
	VideoEncoding        string       `json:"video_encoding"`
	Version              string       `json:"version"`
	STTSettings          *sttSettings `json:"stt_settings,omitempty"`
	VoiceChatTransport   string       `json:"voice_chat_transport,omitempty"`
	NeedRemoveBackground bool         `json:"need_remove_background"`
}

func toNewSession(req domain.StartRequest) newSessionRequest {
	out := newSessionRequest{
		Quality:         string(req.Quality),
		AvatarName:      req.AvatarName,
		KnowledgeBaseID: req.KnowledgeID,
		Voice: voiceSettings{
			Rate:    req.Voice.Rate,
			Emotion: string(req.Voice.Emotion),
		},
		Language:             req.Language,
		VideoEncoding:        "H264",
		Version:              "v2",
		VoiceChatTransport:   string(req.Transport),
		NeedRemoveBackground: req.NeedRemoveBackground,
	}
	if req.Voice.Model != "" {
		out.Voice.ElevenLabs = &elevenLabsSettings{ModelID: req.Voice.Model}
	}
	if req.STTProvider != "" {
		out.STTSettings = &sttSettings{Provider: string(req.STTProvider)}
	}
	return out
}

type iceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type newSessionResponse struct {
	SessionID        string                     `json:"session_id"`
	SDP              *webrtc.SessionDescription `json:"sdp"`
	ICEServers       []iceServer                `json:"ice_servers2"`
	RealtimeEndpoint string                     `json:"realtime_endpoint"`
}

type startSessionRequest struct {
	SessionID string                    `json:"session_id"`
	SDP       webrtc.SessionDescription `json:"sdp"`
}

type taskRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	TaskType  string `json:"task_type,omitempty"`
	TaskMode  string `json:"task_mode,omitempty"`
}

type stopSessionRequest struct {
	SessionID string `json:"session_id"`
}

// controlMessage is a client-to-vendor message on the realtime socket.
type controlMessage struct {
	Type string `json:"type"`
}
