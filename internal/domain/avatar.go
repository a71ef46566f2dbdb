package domain

type AvatarQuality string

const (
	AvatarQualityLow    AvatarQuality = "low"
	AvatarQualityMedium AvatarQuality = "medium"
	AvatarQualityHigh   AvatarQuality = "high"
)

type VoiceEmotion string

const (
	EmotionExcited     VoiceEmotion = "excited"
	EmotionSerious     VoiceEmotion = "serious"
	EmotionFriendly    VoiceEmotion = "friendly"
	EmotionSoothing    VoiceEmotion = "soothing"
	EmotionBroadcaster VoiceEmotion = "broadcaster"
)

type VoiceChatTransport string

const (
	TransportWebSocket VoiceChatTransport = "websocket"
	TransportLiveKit   VoiceChatTransport = "livekit"
)

type STTProvider string

const (
	STTDeepgram STTProvider = "deepgram"
	STTGladia   STTProvider = "gladia"
)

// Voice holds the speech synthesis parameters for the avatar.
type Voice struct {
	Rate    float64      `json:"rate,omitempty"`
	Emotion VoiceEmotion `json:"emotion,omitempty"`
	Model   string       `json:"model,omitempty"`
}

// StartRequest is the configuration record handed to the vendor when opening a session.
type StartRequest struct {
	Quality              AvatarQuality      `json:"quality"`
	AvatarName           string             `json:"avatar_name"`
	KnowledgeID          string             `json:"knowledge_id,omitempty"`
	Voice                Voice              `json:"voice"`
	Language             string             `json:"language"`
	Transport            VoiceChatTransport `json:"voice_chat_transport"`
	STTProvider          STTProvider        `json:"stt_provider"`
	NeedRemoveBackground bool               `json:"need_remove_background"`
}

type TaskType string

const (
	TaskTalk   TaskType = "talk"
	TaskRepeat TaskType = "repeat"
)

type TaskMode string

const (
	TaskModeSync  TaskMode = "sync"
	TaskModeAsync TaskMode = "async"
)

// SpeakRequest asks the avatar to utter text.
type SpeakRequest struct {
	Text     string   `json:"text"`
	TaskType TaskType `json:"task_type"`
	TaskMode TaskMode `json:"task_mode"`
}
