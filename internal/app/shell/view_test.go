package shell

import (
	"testing"

	"github.com/dkeye/AvatarCoach/internal/app/transcript"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/locale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog(t *testing.T) *locale.Catalog {
	t.Helper()
	c, err := locale.Load()
	require.NoError(t, err)
	return c
}

func TestRender_Inactive(t *testing.T) {
	v := Render(catalog(t), State{
		Phase:    domain.PhaseInactive,
		Language: "nl",
		Quality:  domain.QualityGood,
		Messages: []domain.Message{{ID: "1", Sender: domain.SenderAvatar, Content: "old"}},
	})

	assert.True(t, v.ShowStart)
	assert.False(t, v.ShowVideo)
	assert.False(t, v.ShowTranscript)
	assert.False(t, v.ShowQuality)
	assert.False(t, v.LanguageLocked)
	assert.Empty(t, v.Transcript)
	assert.Equal(t, "Start chat", v.Copy.ChatNow)
}

func TestRender_Connecting(t *testing.T) {
	v := Render(catalog(t), State{Phase: domain.PhaseConnecting, Language: "en"})

	assert.False(t, v.ShowStart)
	assert.True(t, v.ShowVideo)
	assert.True(t, v.ShowLoading)
	assert.False(t, v.ShowClose)
	assert.False(t, v.ShowTranscript)
	assert.True(t, v.LanguageLocked)
	assert.Equal(t, domain.QualityUnknown, v.Quality)
}

func TestRender_Connected(t *testing.T) {
	v := Render(catalog(t), State{
		Phase:    domain.PhaseConnected,
		Language: "de",
		Quality:  domain.QualityBad,
		Messages: []domain.Message{
			{ID: "a", Sender: domain.SenderAvatar, Content: "Willkommen"},
			{ID: "b", Sender: domain.SenderClient, Content: "Hallo"},
		},
		Pending:       []transcript.Pending{{Sender: domain.SenderAvatar, Content: "Also"}},
		AvatarTalking: true,
	})

	assert.True(t, v.ShowVideo)
	assert.False(t, v.ShowLoading)
	assert.True(t, v.ShowClose)
	assert.True(t, v.ShowTranscript)
	assert.True(t, v.ShowQuality)
	assert.True(t, v.AvatarTalking)
	require.Len(t, v.Transcript, 3)
	assert.Equal(t, "left", v.Transcript[0].Align)
	assert.Equal(t, "right", v.Transcript[1].Align)
	assert.True(t, v.Transcript[2].Partial)
	assert.Equal(t, "Lerne Alex Carter kennen", v.Copy.Title)
}

func TestRender_UnknownQualityHidden(t *testing.T) {
	v := Render(catalog(t), State{Phase: domain.PhaseConnected, Quality: domain.QualityUnknown})
	assert.False(t, v.ShowQuality)
}

func TestRender_UnsupportedLanguage(t *testing.T) {
	v := Render(catalog(t), State{Phase: domain.PhaseInactive, Language: "es"})
	assert.Equal(t, "en", v.Language)
	assert.Equal(t, "Chat now", v.Copy.ChatNow)
}

func TestRender_Pure(t *testing.T) {
	c := catalog(t)
	st := State{
		Phase:    domain.PhaseConnected,
		Language: "fr",
		Messages: []domain.Message{{ID: "a", Sender: domain.SenderClient, Content: "Bonjour"}},
	}
	assert.Equal(t, Render(c, st), Render(c, st))
}
