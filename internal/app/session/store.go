// Package session holds the per-visitor avatar session lifecycle.
//
// The Store is the single mutator of the vendor connection. It never holds its
// lock across a vendor call, so vendor callbacks may read it freely.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyCredential = errors.New("empty credential")
	ErrInitialize      = errors.New("avatar client initialization failed")
	ErrNotInitialized  = errors.New("avatar client not initialized")
	ErrAlreadyActive   = errors.New("session already active")
	ErrStopped         = errors.New("session stopped while starting")
)

type Store struct {
	factory core.ClientFactory
	logger  zerolog.Logger

	mu       sync.RWMutex
	client   core.AvatarClient
	phase    domain.Phase
	stream   core.MediaStream
	gen      uint64
	onChange []func(domain.Phase)
}

func NewStore(factory core.ClientFactory, sid core.SessionID) *Store {
	return &Store{
		factory: factory,
		phase:   domain.PhaseInactive,
		logger:  log.With().Str("module", "app.session").Str("sid", string(sid)).Logger(),
	}
}

// OnChange registers a callback fired after every phase transition.
func (s *Store) OnChange(fn func(domain.Phase)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Store) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Stream returns the vendor media stream; nil unless connected.
func (s *Store) Stream() core.MediaStream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream
}

func (s *Store) Client() core.AvatarClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Initialize constructs a vendor client bound to credential and keeps it for Start/Stop.
func (s *Store) Initialize(credential string) (core.AvatarClient, error) {
	if credential == "" {
		return nil, ErrEmptyCredential
	}
	client, err := s.factory(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialize, err)
	}
	if client == nil {
		return nil, ErrInitialize
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.logger.Info().Msg("avatar client initialized")
	return client, nil
}

// Start opens a vendor session. On failure the phase is back to inactive and no
// stream is held.
func (s *Store) Start(ctx context.Context, req domain.StartRequest) (core.MediaStream, error) {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if s.phase != domain.PhaseInactive {
		s.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	client := s.client
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.transition(domain.PhaseConnecting)
	s.logger.Info().Str("avatar", req.AvatarName).Str("language", req.Language).Msg("starting avatar session")

	stream, err := client.StartAvatar(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("start avatar failed")
		s.revert(gen)
		return nil, err
	}

	s.mu.Lock()
	if s.gen != gen || s.phase != domain.PhaseConnecting {
		s.mu.Unlock()
		s.logger.Warn().Msg("session stopped during start, closing stream")
		if stream != nil {
			stream.Close()
		}
		return nil, ErrStopped
	}
	s.stream = stream
	s.mu.Unlock()

	s.transition(domain.PhaseConnected)
	s.logger.Info().Msg("avatar session connected")
	return stream, nil
}

// Stop terminates the session. A no-op without vendor call when inactive.
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.phase == domain.PhaseInactive {
		s.mu.Unlock()
		return nil
	}
	client := s.client
	s.gen++
	s.stream = nil
	s.mu.Unlock()

	s.transition(domain.PhaseInactive)
	s.logger.Info().Msg("stopping avatar session")
	if client == nil {
		return nil
	}
	if err := client.StopAvatar(ctx); err != nil {
		s.logger.Error().Err(err).Msg("stop avatar failed")
		return err
	}
	return nil
}

func (s *Store) revert(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.phase == domain.PhaseInactive {
		s.mu.Unlock()
		return
	}
	s.stream = nil
	s.mu.Unlock()
	s.transition(domain.PhaseInactive)
}

func (s *Store) transition(p domain.Phase) {
	s.mu.Lock()
	if s.phase == p {
		s.mu.Unlock()
		return
	}
	s.phase = p
	subs := append([]func(domain.Phase){}, s.onChange...)
	s.mu.Unlock()

	s.logger.Debug().Str("phase", string(p)).Msg("phase changed")
	for _, fn := range subs {
		fn(p)
	}
}
