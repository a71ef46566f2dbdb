// Package shell renders the visitor page state. Render is a pure function:
// the same State always produces the same View.
package shell

import (
	"github.com/dkeye/AvatarCoach/internal/app/transcript"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/locale"
)

// State is everything the page depends on.
type State struct {
	Phase         domain.Phase
	Messages      []domain.Message
	Pending       []transcript.Pending
	Quality       domain.Quality
	Language      string
	Muted         bool
	AvatarTalking bool
	UserTalking   bool
}

// Bubble is one rendered chat line. Client lines sit on the right.
type Bubble struct {
	ID      string        `json:"id,omitempty"`
	Sender  domain.Sender `json:"sender"`
	Content string        `json:"content"`
	Align   string        `json:"align"`
	Partial bool          `json:"partial,omitempty"`
}

type View struct {
	Phase    domain.Phase    `json:"phase"`
	Language string          `json:"language"`
	Options  []locale.Option `json:"options"`
	Page     locale.Page     `json:"page"`
	Copy     locale.Copy     `json:"copy"`

	ShowStart      bool `json:"show_start"`
	ShowVideo      bool `json:"show_video"`
	ShowLoading    bool `json:"show_loading"`
	ShowClose      bool `json:"show_close"`
	ShowTranscript bool `json:"show_transcript"`
	ShowQuality    bool `json:"show_quality"`
	LanguageLocked bool `json:"language_locked"`

	Quality       domain.Quality `json:"quality"`
	Muted         bool           `json:"muted"`
	AvatarTalking bool           `json:"avatar_talking"`
	UserTalking   bool           `json:"user_talking"`

	Transcript []Bubble `json:"transcript"`
}

func Render(cat *locale.Catalog, st State) View {
	lang := cat.Resolve(st.Language)
	connected := st.Phase == domain.PhaseConnected

	v := View{
		Phase:          st.Phase,
		Language:       lang,
		Options:        cat.Options,
		Page:           cat.Page,
		Copy:           cat.Lookup(lang),
		ShowStart:      st.Phase == domain.PhaseInactive,
		ShowVideo:      st.Phase.Active(),
		ShowLoading:    st.Phase == domain.PhaseConnecting,
		ShowClose:      connected,
		ShowTranscript: connected,
		ShowQuality:    st.Phase.Active() && st.Quality != domain.QualityUnknown && st.Quality != "",
		LanguageLocked: st.Phase.Active(),
		Quality:        st.Quality,
		Muted:          st.Muted,
		AvatarTalking:  connected && st.AvatarTalking,
		UserTalking:    connected && st.UserTalking,
		Transcript:     []Bubble{},
	}
	if v.Quality == "" {
		v.Quality = domain.QualityUnknown
	}
	if !connected {
		return v
	}

	for _, m := range st.Messages {
		v.Transcript = append(v.Transcript, Bubble{
			ID:      m.ID,
			Sender:  m.Sender,
			Content: m.Content,
			Align:   align(m.Sender),
		})
	}
	for _, p := range st.Pending {
		v.Transcript = append(v.Transcript, Bubble{
			Sender:  p.Sender,
			Content: p.Content,
			Align:   align(p.Sender),
			Partial: true,
		})
	}
	return v
}

func align(s domain.Sender) string {
	if s == domain.SenderClient {
		return "right"
	}
	return "left"
}
