package config

import "github.com/dkeye/AvatarCoach/internal/domain"

// StartRequest builds the vendor start record for lang.
func (a AvatarConfig) StartRequest(lang string) domain.StartRequest {
	return domain.StartRequest{
		Quality:     domain.AvatarQuality(a.Quality),
		AvatarName:  a.Name,
		KnowledgeID: a.KnowledgeID,
		Voice: domain.Voice{
			Rate:    a.VoiceRate,
			Emotion: domain.VoiceEmotion(a.VoiceEmotion),
			Model:   a.VoiceModel,
		},
		Language:             lang,
		Transport:            domain.VoiceChatTransport(a.Transport),
		STTProvider:          domain.STTProvider(a.STTProvider),
		NeedRemoveBackground: a.RemoveBackground,
	}
}
