package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/AvatarCoach/internal/app/quality"
	"github.com/dkeye/AvatarCoach/internal/app/session"
	"github.com/dkeye/AvatarCoach/internal/app/shell"
	"github.com/dkeye/AvatarCoach/internal/app/transcript"
	"github.com/dkeye/AvatarCoach/internal/config"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/locale"
	"github.com/dkeye/AvatarCoach/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrCredential          = errors.New("access token request failed")
	ErrRateLimited         = errors.New("too many start attempts")
	ErrStarting            = errors.New("session start already in progress")
	ErrLanguageLocked      = errors.New("language can only change while no session is active")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNotConnected        = errors.New("no connected session")
	ErrTornDown            = errors.New("visitor is gone")
)

// Deps are the collaborators shared by every visitor controller.
type Deps struct {
	Tokens  core.TokenSource
	Factory core.ClientFactory
	Catalog *locale.Catalog
	Avatar  config.AvatarConfig
	Limiter *RateLimiter
}

// Controller drives one visitor's avatar session: the start gesture flow,
// stop and teardown, language selection and the rendered view.
type Controller struct {
	sid    core.SessionID
	deps   Deps
	logger zerolog.Logger

	Store      *session.Store
	Transcript *transcript.Adapter
	Quality    *quality.Observer

	mu        sync.RWMutex
	lang      string
	muted     bool
	starting  bool
	connected bool
	closed    bool
	onView    []func(shell.View)
	onStream  []func(core.MediaStream)
}

func NewController(sid core.SessionID, deps Deps) *Controller {
	c := &Controller{
		sid:        sid,
		deps:       deps,
		logger:     log.With().Str("module", "app.orch").Str("sid", string(sid)).Logger(),
		Store:      session.NewStore(deps.Factory, sid),
		Transcript: transcript.NewAdapter(sid),
		Quality:    quality.NewObserver(sid),
		lang:       deps.Catalog.Default,
		muted:      true,
	}
	c.Store.OnChange(c.phaseChanged)
	c.Transcript.OnChange(c.publish)
	c.Quality.OnChange(func(domain.Quality) { c.publish() })
	return c
}

func (c *Controller) SID() core.SessionID { return c.sid }

// OnView registers a callback receiving every re-rendered view.
func (c *Controller) OnView(fn func(shell.View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onView = append(c.onView, fn)
}

// OnStream registers a callback receiving the media stream of each started session.
func (c *Controller) OnStream(fn func(core.MediaStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStream = append(c.onStream, fn)
}

func (c *Controller) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lang
}

func (c *Controller) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

// SetLanguage selects the copy and intro language; only while inactive.
func (c *Controller) SetLanguage(lang string) error {
	if !c.deps.Catalog.Supported(lang) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	c.mu.Lock()
	if c.starting || c.Store.Phase() != domain.PhaseInactive {
		c.mu.Unlock()
		return ErrLanguageLocked
	}
	changed := c.lang != lang
	c.lang = lang
	c.mu.Unlock()

	if changed {
		c.logger.Info().Str("language", lang).Msg("language selected")
		c.publish()
	}
	return nil
}

// StartSession runs the start gesture flow. Every step is awaited before the
// next; any failure aborts the rest and leaves the session inactive.
func (c *Controller) StartSession(ctx context.Context) (err error) {
	if !c.deps.Limiter.Allow(c.sid) {
		metrics.SessionStarts.WithLabelValues("rate_limited").Inc()
		return ErrRateLimited
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTornDown
	}
	if c.starting {
		c.mu.Unlock()
		return ErrStarting
	}
	if c.Store.Phase() != domain.PhaseInactive {
		c.mu.Unlock()
		return session.ErrAlreadyActive
	}
	c.starting = true
	lang := c.lang
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.SessionStarts.WithLabelValues(outcome).Inc()
	}()

	c.Transcript.Reset()
	c.Quality.Reset()

	var credential string
	if err := c.step("token", func() (err error) {
		credential, err = c.deps.Tokens.AccessToken(ctx)
		return err
	}); err != nil {
		return c.fail("token", fmt.Errorf("%w: %w", ErrCredential, err))
	}
	if c.tornDown() {
		return c.fail("token", ErrTornDown)
	}

	var client core.AvatarClient
	if err := c.step("initialize", func() (err error) {
		client, err = c.Store.Initialize(credential)
		return err
	}); err != nil {
		return c.fail("initialize", err)
	}
	if c.tornDown() {
		return c.fail("initialize", ErrTornDown)
	}
	c.subscribe(client)

	var stream core.MediaStream
	if err := c.step("start", func() (err error) {
		stream, err = c.Store.Start(ctx, c.deps.Avatar.StartRequest(lang))
		return err
	}); err != nil {
		return c.fail("start", err)
	}
	if c.tornDown() {
		return c.abort(ctx, "start", ErrTornDown)
	}
	c.attachStream(stream)

	if err := c.step("voice_chat", func() error { return client.StartVoiceChat(ctx) }); err != nil {
		return c.abort(ctx, "voice_chat", err)
	}
	if c.tornDown() {
		return c.abort(ctx, "voice_chat", ErrTornDown)
	}
	if err := c.step("unmute", func() error { return client.UnmuteInputAudio(ctx) }); err != nil {
		return c.abort(ctx, "unmute", err)
	}
	if c.tornDown() {
		return c.abort(ctx, "unmute", ErrTornDown)
	}
	c.setMuted(false)

	intro := domain.SpeakRequest{
		Text:     c.deps.Catalog.Intro(lang),
		TaskType: domain.TaskRepeat,
		TaskMode: domain.TaskModeSync,
	}
	if err := c.step("speak", func() error { return client.Speak(ctx, intro) }); err != nil {
		return c.abort(ctx, "speak", err)
	}
	if c.tornDown() {
		return c.abort(ctx, "speak", ErrTornDown)
	}

	c.logger.Info().Str("language", lang).Msg("session started")
	return nil
}

// tornDown reports whether Teardown ran; a start in flight must not outlive it.
func (c *Controller) tornDown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Controller) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StartStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

func (c *Controller) fail(stage string, err error) error {
	c.logger.Error().Err(err).Str("stage", stage).Msg("session start failed")
	metrics.Errors.WithLabelValues(stage, errorType(err)).Inc()
	return err
}

// abort handles a failure after the vendor session opened: the session is
// stopped so the visitor ends inactive.
func (c *Controller) abort(ctx context.Context, stage string, err error) error {
	err = c.fail(stage, err)
	if stopErr := c.StopSession(context.WithoutCancel(ctx)); stopErr != nil {
		c.logger.Warn().Err(stopErr).Msg("stop after failed start")
	}
	return err
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrCredential):
		return "credential"
	case errors.Is(err, session.ErrEmptyCredential), errors.Is(err, session.ErrInitialize):
		return "initialize"
	case errors.Is(err, session.ErrStopped):
		return "stopped"
	case errors.Is(err, ErrTornDown):
		return "teardown"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "vendor"
	}
}

// subscribe registers the adapter, the observer and log-only handlers on a
// freshly initialized client.
func (c *Controller) subscribe(client core.AvatarClient) {
	c.Transcript.Bind(client)
	c.Quality.Bind(client)
	client.On(core.EventStreamReady, func(ev core.Event) {
		c.logger.Info().Str("detail", string(ev.Detail)).Msg("stream ready")
	})
	client.On(core.EventStreamDisconnected, func(core.Event) {
		c.logger.Warn().Msg("stream disconnected")
	})
}

func (c *Controller) attachStream(stream core.MediaStream) {
	if stream == nil {
		return
	}
	c.mu.RLock()
	subs := append([]func(core.MediaStream){}, c.onStream...)
	c.mu.RUnlock()
	for _, fn := range subs {
		fn(stream)
	}
}

// StopSession ends the vendor session; a no-op while inactive.
func (c *Controller) StopSession(ctx context.Context) error {
	err := c.Store.Stop(ctx)
	c.setMuted(true)
	return err
}

// Teardown is called when the visitor goes away. The stop is unconditional;
// the vendor is only contacted when a session is active. A start still in
// flight stops itself at its next step.
func (c *Controller) Teardown(ctx context.Context) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	if err := c.StopSession(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("teardown stop failed")
	}
	c.deps.Limiter.Forget(c.sid)
}

// SetMuted toggles the visitor's microphone at the vendor.
func (c *Controller) SetMuted(ctx context.Context, muted bool) error {
	client := c.Store.Client()
	if client == nil || c.Store.Phase() != domain.PhaseConnected {
		return ErrNotConnected
	}
	var err error
	if muted {
		err = client.MuteInputAudio(ctx)
	} else {
		err = client.UnmuteInputAudio(ctx)
	}
	if err != nil {
		return err
	}
	c.setMuted(muted)
	return nil
}

func (c *Controller) setMuted(muted bool) {
	c.mu.Lock()
	changed := c.muted != muted
	c.muted = muted
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

// ForwardAudio hands a mic frame to the vendor; dropped unless connected and unmuted.
func (c *Controller) ForwardAudio(f core.Frame) error {
	if c.Muted() || c.Store.Phase() != domain.PhaseConnected {
		return nil
	}
	client := c.Store.Client()
	if client == nil {
		return nil
	}
	return client.SendAudio(f)
}

func (c *Controller) phaseChanged(p domain.Phase) {
	c.mu.Lock()
	was := c.connected
	c.connected = p == domain.PhaseConnected
	now := c.connected
	c.mu.Unlock()

	switch {
	case now && !was:
		metrics.SessionsActive.Inc()
	case was && !now:
		metrics.SessionsActive.Dec()
	}
	c.publish()
}

// View renders the current page state.
func (c *Controller) View() shell.View {
	c.mu.RLock()
	lang, muted := c.lang, c.muted
	c.mu.RUnlock()

	return shell.Render(c.deps.Catalog, shell.State{
		Phase:         c.Store.Phase(),
		Messages:      c.Transcript.Messages(),
		Pending:       c.Transcript.PendingAll(),
		Quality:       c.Quality.Current(),
		Language:      lang,
		Muted:         muted,
		AvatarTalking: c.Transcript.Speaking(domain.SenderAvatar),
		UserTalking:   c.Transcript.Speaking(domain.SenderClient),
	})
}

func (c *Controller) publish() {
	c.mu.RLock()
	subs := append([]func(shell.View){}, c.onView...)
	c.mu.RUnlock()
	if len(subs) == 0 {
		return
	}
	v := c.View()
	for _, fn := range subs {
		fn(v)
	}
}
