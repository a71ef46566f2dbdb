package heygen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/adapters/rtc"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoCredential = errors.New("missing streaming credential")
	ErrSessionOpen  = errors.New("vendor session already open")
	ErrNoSession    = errors.New("no vendor session")
	ErrNoOffer      = errors.New("vendor session without sdp offer")
	ErrNoRealtime   = errors.New("vendor session without realtime endpoint")
	ErrNoVoiceChat  = errors.New("voice chat not started")
)

// Peer is the subset of a WebRTC connection the client drives.
type Peer interface {
	Start(ctx context.Context) error
	ApplyOffer(webrtc.SessionDescription) error
	Answer() (*webrtc.SessionDescription, error)
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	OnStateChange(func(webrtc.PeerConnectionState))
	Close()
}

type PeerFactory func(cfg webrtc.Configuration, label string) (Peer, error)

func DefaultPeerFactory(cfg webrtc.Configuration, label string) (Peer, error) {
	pc, err := rtc.NewWebRTCConnection(cfg, "vendor:"+label)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

type Options struct {
	ICEServers  []string
	PeerFactory PeerFactory
	Dialer      *websocket.Dialer
}

// Factory returns a ClientFactory bound to api and opts.
func Factory(api *API, opts Options) core.ClientFactory {
	return func(credential string) (core.AvatarClient, error) {
		if credential == "" {
			return nil, ErrNoCredential
		}
		return NewClient(api, credential, opts), nil
	}
}

// Client is one vendor SDK instance bound to a streaming credential.
type Client struct {
	api    *API
	token  string
	opts   Options
	logger zerolog.Logger

	mu           sync.RWMutex
	handlers     map[core.EventKind][]core.EventHandler
	sessionID    string
	stream       *Stream
	events       *eventSocket
	voiceChat    bool
	muted        bool
	disconnected bool
}

func NewClient(api *API, token string, opts Options) *Client {
	if opts.PeerFactory == nil {
		opts.PeerFactory = DefaultPeerFactory
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		api:      api,
		token:    token,
		opts:     opts,
		logger:   log.With().Str("module", "heygen").Logger(),
		handlers: make(map[core.EventKind][]core.EventHandler),
		muted:    true,
	}
}

func (c *Client) On(kind core.EventKind, h core.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

func (c *Client) emit(ev core.Event) {
	metrics.VendorEvents.WithLabelValues(string(ev.Kind)).Inc()
	c.mu.RLock()
	hs := append([]core.EventHandler(nil), c.handlers[ev.Kind]...)
	c.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

func (c *Client) emitKind(kind core.EventKind, detail string) {
	ev := core.Event{Kind: kind}
	if detail != "" {
		ev.Detail = []byte(fmt.Sprintf("%q", detail))
	}
	c.emit(ev)
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) StartAvatar(ctx context.Context, req domain.StartRequest) (core.MediaStream, error) {
	c.mu.RLock()
	open := c.sessionID != ""
	c.mu.RUnlock()
	if open {
		return nil, ErrSessionOpen
	}

	var sess newSessionResponse
	if err := c.api.call(ctx, pathNewSession, bearer(c.token), toNewSession(req), &sess); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	logger := c.logger.With().Str("vendor_session", sess.SessionID).Logger()
	if sess.SDP == nil {
		c.abandon(ctx, sess.SessionID)
		return nil, ErrNoOffer
	}

	peer, err := c.opts.PeerFactory(c.peerConfig(sess.ICEServers), sess.SessionID)
	if err != nil {
		c.abandon(ctx, sess.SessionID)
		return nil, fmt.Errorf("vendor peer: %w", err)
	}
	stream := newStream(sess.SessionID, peer)
	peer.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		stream.addTrack(trackCtx, track)
	})
	peer.OnStateChange(c.onPeerState)

	fail := func(err error) (core.MediaStream, error) {
		stream.Close()
		c.abandon(ctx, sess.SessionID)
		return nil, err
	}

	if err := peer.Start(context.Background()); err != nil {
		return fail(fmt.Errorf("vendor peer start: %w", err))
	}
	if err := peer.ApplyOffer(*sess.SDP); err != nil {
		return fail(fmt.Errorf("apply offer: %w", err))
	}
	answer, err := peer.Answer()
	if err != nil {
		return fail(fmt.Errorf("create answer: %w", err))
	}
	start := startSessionRequest{SessionID: sess.SessionID, SDP: *answer}
	if err := c.api.call(ctx, pathStart, bearer(c.token), start, nil); err != nil {
		return fail(fmt.Errorf("start session: %w", err))
	}

	c.mu.Lock()
	c.disconnected = false
	c.mu.Unlock()

	var events *eventSocket
	if sess.RealtimeEndpoint != "" {
		events, err = dialEvents(ctx, c.opts.Dialer, sess.RealtimeEndpoint, c.emit, c.streamLost, logger)
		if err != nil {
			return fail(fmt.Errorf("realtime endpoint: %w", err))
		}
	}

	c.mu.Lock()
	c.sessionID = sess.SessionID
	c.stream = stream
	c.events = events
	c.voiceChat = false
	c.muted = true
	c.mu.Unlock()

	logger.Info().Bool("realtime", events != nil).Msg("vendor session started")
	return stream, nil
}

// abandon tells the vendor to drop a half-opened session; errors are only logged.
func (c *Client) abandon(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := c.api.call(ctx, pathStop, bearer(c.token), stopSessionRequest{SessionID: sessionID}, nil); err != nil {
		c.logger.Warn().Err(err).Str("vendor_session", sessionID).Msg("abandon session")
	}
}

func (c *Client) peerConfig(servers []iceServer) webrtc.Configuration {
	cfg := rtc.DefaultWebRTCConfig(c.opts.ICEServers)
	for _, s := range servers {
		is := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			is.Credential = s.Credential
		}
		cfg.ICEServers = append(cfg.ICEServers, is)
	}
	return cfg
}

func (c *Client) onPeerState(s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		c.emitKind(core.EventQualityChanged, string(domain.QualityGood))
		c.emitKind(core.EventStreamReady, "")
	case webrtc.PeerConnectionStateDisconnected:
		c.emitKind(core.EventQualityChanged, string(domain.QualityBad))
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		if s == webrtc.PeerConnectionStateFailed {
			c.emitKind(core.EventQualityChanged, string(domain.QualityBad))
		}
		c.streamLost()
	}
}

// streamLost emits stream_disconnected once per session, whichever of the
// peer or the realtime socket goes first.
func (c *Client) streamLost() {
	c.mu.Lock()
	already := c.disconnected
	c.disconnected = true
	c.mu.Unlock()
	if !already {
		c.emitKind(core.EventStreamDisconnected, "")
	}
}

func (c *Client) StartVoiceChat(ctx context.Context) error {
	c.mu.RLock()
	events := c.events
	open := c.sessionID != ""
	c.mu.RUnlock()
	if !open {
		return ErrNoSession
	}
	if events == nil {
		return ErrNoRealtime
	}
	if err := events.send(ctx, controlMessage{Type: "voice_chat.start"}); err != nil {
		return fmt.Errorf("start voice chat: %w", err)
	}
	c.mu.Lock()
	c.voiceChat = true
	c.mu.Unlock()
	c.logger.Info().Msg("voice chat started")
	return nil
}

func (c *Client) UnmuteInputAudio(ctx context.Context) error {
	return c.setMuted(ctx, false)
}

func (c *Client) MuteInputAudio(ctx context.Context) error {
	return c.setMuted(ctx, true)
}

func (c *Client) setMuted(ctx context.Context, muted bool) error {
	c.mu.RLock()
	events := c.events
	voiceChat := c.voiceChat
	c.mu.RUnlock()
	if !voiceChat || events == nil {
		return ErrNoVoiceChat
	}
	msg := controlMessage{Type: "input_audio.unmute"}
	if muted {
		msg.Type = "input_audio.mute"
	}
	if err := events.send(ctx, msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	return nil
}

// SendAudio forwards a mic frame; frames are dropped while muted.
func (c *Client) SendAudio(f core.Frame) error {
	c.mu.RLock()
	events := c.events
	live := c.voiceChat && !c.muted
	c.mu.RUnlock()
	if !live || events == nil {
		return nil
	}
	return events.sendBinary(f)
}

func (c *Client) Speak(ctx context.Context, req domain.SpeakRequest) error {
	sessionID := c.SessionID()
	if sessionID == "" {
		return ErrNoSession
	}
	task := taskRequest{
		SessionID: sessionID,
		Text:      req.Text,
		TaskType:  string(req.TaskType),
		TaskMode:  string(req.TaskMode),
	}
	if err := c.api.call(ctx, pathTask, bearer(c.token), task, nil); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// StopAvatar closes the session locally and at the vendor. Safe to call twice.
func (c *Client) StopAvatar(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	stream := c.stream
	events := c.events
	c.sessionID = ""
	c.stream = nil
	c.events = nil
	c.voiceChat = false
	c.muted = true
	c.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	if events != nil {
		events.close()
	}
	if stream != nil {
		stream.Close()
	}
	if err := c.api.call(ctx, pathStop, bearer(c.token), stopSessionRequest{SessionID: sessionID}, nil); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	c.logger.Info().Str("vendor_session", sessionID).Msg("vendor session stopped")
	return nil
}
