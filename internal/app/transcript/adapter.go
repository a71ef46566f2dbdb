// Package transcript turns vendor talking events into an append-only chat transcript.
package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pending is an in-progress utterance that has not been flushed yet.
type Pending struct {
	Sender  domain.Sender `json:"sender"`
	Content string        `json:"content"`
}

// Adapter owns the transcript. One pending buffer per sender; a final event
// flushes it into exactly one Message.
type Adapter struct {
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	messages []domain.Message
	pending  map[domain.Sender]*strings.Builder
	speaking map[domain.Sender]bool
	seq      uint64
	onChange []func()
}

func NewAdapter(sid core.SessionID) *Adapter {
	return &Adapter{
		logger:   log.With().Str("module", "app.transcript").Str("sid", string(sid)).Logger(),
		now:      time.Now,
		pending:  make(map[domain.Sender]*strings.Builder),
		speaking: make(map[domain.Sender]bool),
	}
}

// Bind subscribes the adapter to the fixed transcript event set of client.
func (a *Adapter) Bind(client core.AvatarClient) {
	for _, kind := range core.TranscriptEvents {
		client.On(kind, a.Handle)
	}
}

func (a *Adapter) OnChange(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = append(a.onChange, fn)
}

// Handle applies one vendor event. Bad payloads are logged and dropped.
func (a *Adapter) Handle(ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Str("kind", string(ev.Kind)).Interface("panic", r).Msg("event handler recovered")
		}
	}()

	changed := false
	switch ev.Kind {
	case core.EventAvatarTalkingMessage:
		changed = a.fragment(domain.SenderAvatar, ev)
	case core.EventUserTalkingMessage:
		changed = a.fragment(domain.SenderClient, ev)
	case core.EventAvatarEndMessage:
		changed = a.flush(domain.SenderAvatar, ev)
	case core.EventUserEndMessage:
		changed = a.flush(domain.SenderClient, ev)
	case core.EventAvatarStartTalking:
		changed = a.setSpeaking(domain.SenderAvatar, true)
	case core.EventAvatarStopTalking:
		changed = a.setSpeaking(domain.SenderAvatar, false)
	case core.EventUserStart:
		changed = a.setSpeaking(domain.SenderClient, true)
	case core.EventUserStop:
		changed = a.setSpeaking(domain.SenderClient, false)
	case core.EventStreamReady:
		a.logger.Info().Msg("stream ready")
	case core.EventStreamDisconnected:
		a.logger.Info().Msg("stream disconnected")
		changed = a.clearSpeaking()
	default:
		a.logger.Warn().Str("kind", string(ev.Kind)).Msg("unexpected event ignored")
	}

	if changed {
		a.notify()
	}
}

func (a *Adapter) fragment(sender domain.Sender, ev core.Event) bool {
	text, err := decodeMessage(ev.Detail)
	if err != nil {
		a.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("bad fragment payload")
		return false
	}
	if text == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.pending[sender]
	if !ok {
		buf = &strings.Builder{}
		a.pending[sender] = buf
	}
	buf.WriteString(text)
	return true
}

func (a *Adapter) flush(sender domain.Sender, ev core.Event) bool {
	final, err := decodeMessage(ev.Detail)
	if err != nil {
		a.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("bad final payload, flushing buffer")
		final = ""
	}

	a.mu.Lock()
	content := final
	if buf, ok := a.pending[sender]; ok {
		if content == "" {
			content = buf.String()
		}
		delete(a.pending, sender)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		a.mu.Unlock()
		return false
	}
	a.seq++
	msg := domain.Message{
		ID:      uuid.NewString(),
		Seq:     a.seq,
		Sender:  sender,
		Content: content,
		At:      a.now(),
	}
	a.messages = append(a.messages, msg)
	a.mu.Unlock()

	metrics.TranscriptMessages.WithLabelValues(string(sender)).Inc()
	a.logger.Debug().Str("sender", string(sender)).Uint64("seq", msg.Seq).Msg("message appended")
	return true
}

func (a *Adapter) setSpeaking(sender domain.Sender, on bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.speaking[sender] == on {
		return false
	}
	a.speaking[sender] = on
	return true
}

func (a *Adapter) clearSpeaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	changed := false
	for s, on := range a.speaking {
		if on {
			a.speaking[s] = false
			changed = true
		}
	}
	return changed
}

func (a *Adapter) notify() {
	a.mu.RLock()
	subs := append([]func(){}, a.onChange...)
	a.mu.RUnlock()
	for _, fn := range subs {
		fn()
	}
}

// Messages returns a copy of the transcript in append order.
func (a *Adapter) Messages() []domain.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]domain.Message(nil), a.messages...)
}

// Pending returns the buffered text for sender, empty when nothing is buffered.
func (a *Adapter) Pending(sender domain.Sender) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if buf, ok := a.pending[sender]; ok {
		return buf.String()
	}
	return ""
}

// PendingAll lists non-empty buffers, client first.
func (a *Adapter) PendingAll() []Pending {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Pending, 0, 2)
	for _, s := range []domain.Sender{domain.SenderClient, domain.SenderAvatar} {
		if buf, ok := a.pending[s]; ok && buf.Len() > 0 {
			out = append(out, Pending{Sender: s, Content: buf.String()})
		}
	}
	return out
}

func (a *Adapter) Speaking(sender domain.Sender) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.speaking[sender]
}

// Reset drops transcript, buffers and flags for a fresh session.
func (a *Adapter) Reset() {
	a.mu.Lock()
	a.messages = nil
	a.pending = make(map[domain.Sender]*strings.Builder)
	a.speaking = make(map[domain.Sender]bool)
	a.mu.Unlock()
	a.notify()
}

type messageDetail struct {
	Message string `json:"message"`
}

// decodeMessage accepts {"message": "..."}, a bare JSON string, or nothing.
func decodeMessage(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var d messageDetail
	if err := json.Unmarshal(raw, &d); err == nil {
		return d.Message, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("undecodable detail %q", truncate(string(raw), 64))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
