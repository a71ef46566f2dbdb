// Package coretest provides in-memory doubles for the core ports.
package coretest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Stream is a MediaStream without tracks.
type Stream struct {
	StreamID string

	mu     sync.Mutex
	closed int
}

func (s *Stream) ID() string                                          { return s.StreamID }
func (s *Stream) Tracks() []*webrtc.TrackRemote                       { return nil }
func (s *Stream) OnTrack(func(ctx context.Context, t *webrtc.TrackRemote)) {}

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *Stream) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Client records every call made through the AvatarClient contract.
type Client struct {
	Credential string

	// Hooks let tests inject failures or block a step.
	StartErr      error
	StartHook     func(ctx context.Context) error
	VoiceChatErr  error
	UnmuteErr     error
	SpeakErr      error
	StopErr       error
	Stream        core.MediaStream

	mu       sync.Mutex
	handlers map[core.EventKind][]core.EventHandler
	calls    []string
	started  []domain.StartRequest
	spoken   []domain.SpeakRequest
	audio    []core.Frame
	muted    bool
}

func NewClient(credential string) *Client {
	return &Client{
		Credential: credential,
		handlers:   make(map[core.EventKind][]core.EventHandler),
		Stream:     &Stream{StreamID: "stream-" + credential},
		muted:      true,
	}
}

// Factory returns a ClientFactory that always yields c.
func Factory(c *Client) core.ClientFactory {
	return func(credential string) (core.AvatarClient, error) {
		c.mu.Lock()
		c.Credential = credential
		c.mu.Unlock()
		return c, nil
	}
}

func (c *Client) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *Client) On(kind core.EventKind, h core.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

func (c *Client) StartAvatar(ctx context.Context, req domain.StartRequest) (core.MediaStream, error) {
	c.record("StartAvatar")
	c.mu.Lock()
	c.started = append(c.started, req)
	hook := c.StartHook
	c.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if c.StartErr != nil {
		return nil, c.StartErr
	}
	return c.Stream, nil
}

func (c *Client) StartVoiceChat(context.Context) error {
	c.record("StartVoiceChat")
	return c.VoiceChatErr
}

func (c *Client) UnmuteInputAudio(context.Context) error {
	c.record("UnmuteInputAudio")
	if c.UnmuteErr != nil {
		return c.UnmuteErr
	}
	c.mu.Lock()
	c.muted = false
	c.mu.Unlock()
	return nil
}

func (c *Client) MuteInputAudio(context.Context) error {
	c.record("MuteInputAudio")
	c.mu.Lock()
	c.muted = true
	c.mu.Unlock()
	return nil
}

func (c *Client) Speak(_ context.Context, req domain.SpeakRequest) error {
	c.record("Speak")
	if c.SpeakErr != nil {
		return c.SpeakErr
	}
	c.mu.Lock()
	c.spoken = append(c.spoken, req)
	c.mu.Unlock()
	return nil
}

func (c *Client) SendAudio(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.muted {
		return nil
	}
	c.audio = append(c.audio, f)
	return nil
}

func (c *Client) StopAvatar(context.Context) error {
	c.record("StopAvatar")
	return c.StopErr
}

// Emit delivers an event to every handler registered for its kind.
func (c *Client) Emit(kind core.EventKind, detail any) {
	var raw json.RawMessage
	if detail != nil {
		b, _ := json.Marshal(detail)
		raw = b
	}
	c.mu.Lock()
	hs := append([]core.EventHandler(nil), c.handlers[kind]...)
	c.mu.Unlock()
	for _, h := range hs {
		h(core.Event{Kind: kind, Detail: raw})
	}
}

func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Count reports how often call was made.
func (c *Client) Count(call string) int {
	n := 0
	for _, got := range c.Calls() {
		if got == call {
			n++
		}
	}
	return n
}

func (c *Client) Started() []domain.StartRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.StartRequest(nil), c.started...)
}

func (c *Client) Spoken() []domain.SpeakRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.SpeakRequest(nil), c.spoken...)
}

func (c *Client) Audio() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.audio...)
}

func (c *Client) Handlers(kind core.EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers[kind])
}

// Tokens is a TokenSource returning a fixed token or error. When Gate is set,
// AccessToken blocks until Gate is closed or ctx is done.
type Tokens struct {
	Token string
	Err   error
	Gate  chan struct{}

	mu    sync.Mutex
	calls int
}

func (t *Tokens) AccessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	if t.Gate != nil {
		select {
		case <-t.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if t.Err != nil {
		return "", t.Err
	}
	return t.Token, nil
}

func (t *Tokens) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Media is a MediaConnection that records negotiation calls.
type Media struct {
	OfferErr error

	mu         sync.Mutex
	tracks     []*webrtc.TrackLocalStaticRTP
	offers     int
	answers    []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	onICE      func(webrtc.ICECandidateInit)
	onClosed   func()
	closed     int
}

func (m *Media) Start(context.Context) error { return nil }

func (m *Media) Close() {
	m.mu.Lock()
	m.closed++
	fn := m.onClosed
	first := m.closed == 1
	m.mu.Unlock()
	if first && fn != nil {
		fn()
	}
}

func (m *Media) AddICECandidate(c webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, c)
	return nil
}

func (m *Media) Offer() (*webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OfferErr != nil {
		return nil, m.OfferErr
	}
	m.offers++
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (m *Media) ApplyAnswer(a webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, a)
	return nil
}

func (m *Media) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onICE = fn
}

func (m *Media) AddLocalTrack(t *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = append(m.tracks, t)
	return nil, nil
}

func (m *Media) OnClosed(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClosed = fn
}

// EmitCandidate delivers a local candidate to the registered callback.
func (m *Media) EmitCandidate(c webrtc.ICECandidateInit) {
	m.mu.Lock()
	fn := m.onICE
	m.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (m *Media) Tracks() []*webrtc.TrackLocalStaticRTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*webrtc.TrackLocalStaticRTP(nil), m.tracks...)
}

func (m *Media) Offers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offers
}

func (m *Media) Answers() []webrtc.SessionDescription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), m.answers...)
}

func (m *Media) Candidates() []webrtc.ICECandidateInit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), m.candidates...)
}

func (m *Media) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
