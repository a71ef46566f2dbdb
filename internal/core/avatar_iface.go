package core

import (
	"context"
	"encoding/json"

	"github.com/dkeye/AvatarCoach/internal/domain"
)

// EventKind names a vendor lifecycle or message event.
type EventKind string

const (
	EventAvatarStartTalking   EventKind = "avatar_start_talking"
	EventAvatarStopTalking    EventKind = "avatar_stop_talking"
	EventAvatarTalkingMessage EventKind = "avatar_talking_message"
	EventAvatarEndMessage     EventKind = "avatar_end_message"
	EventUserStart            EventKind = "user_start"
	EventUserStop             EventKind = "user_stop"
	EventUserTalkingMessage   EventKind = "user_talking_message"
	EventUserEndMessage       EventKind = "user_end_message"
	EventStreamReady          EventKind = "stream_ready"
	EventStreamDisconnected   EventKind = "stream_disconnected"
	EventQualityChanged       EventKind = "connection_quality_changed"
)

// TranscriptEvents is the fixed set the transcript adapter subscribes to.
var TranscriptEvents = []EventKind{
	EventAvatarStartTalking,
	EventAvatarStopTalking,
	EventStreamReady,
	EventStreamDisconnected,
	EventUserStart,
	EventUserStop,
	EventUserTalkingMessage,
	EventUserEndMessage,
	EventAvatarTalkingMessage,
	EventAvatarEndMessage,
}

// Event is a vendor event; Detail is the raw vendor payload.
type Event struct {
	Kind   EventKind       `json:"type"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

type EventHandler func(Event)

// AvatarClient is the vendor SDK boundary, consumed through its public contract.
type AvatarClient interface {
	On(kind EventKind, h EventHandler)
	StartAvatar(ctx context.Context, req domain.StartRequest) (MediaStream, error)
	StartVoiceChat(ctx context.Context) error
	UnmuteInputAudio(ctx context.Context) error
	MuteInputAudio(ctx context.Context) error
	Speak(ctx context.Context, req domain.SpeakRequest) error
	// SendAudio forwards a mic frame; dropped while muted or before voice chat.
	SendAudio(f Frame) error
	StopAvatar(ctx context.Context) error
}

// ClientFactory builds a vendor client bound to a credential.
type ClientFactory func(credential string) (AvatarClient, error)

// TokenSource yields a fresh vendor credential.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
