package session

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/core/coretest"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *coretest.Client) {
	t.Helper()
	client := coretest.NewClient("")
	return NewStore(coretest.Factory(client), "visitor-1"), client
}

func TestInitialize_EmptyCredential(t *testing.T) {
	s, client := newStore(t)

	_, err := s.Initialize("")
	assert.ErrorIs(t, err, ErrEmptyCredential)
	assert.Nil(t, s.Client())
	assert.Empty(t, client.Calls())
}

func TestInitialize_FactoryError(t *testing.T) {
	boom := errors.New("sdk exploded")
	s := NewStore(func(string) (core.AvatarClient, error) { return nil, boom }, "visitor-1")

	_, err := s.Initialize("token")
	assert.ErrorIs(t, err, ErrInitialize)
	assert.ErrorIs(t, err, boom)
}

func TestInitialize_BindsCredential(t *testing.T) {
	s, client := newStore(t)

	got, err := s.Initialize("token-123")
	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, "token-123", client.Credential)
}

func TestStart_RequiresClient(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Start(context.Background(), domain.StartRequest{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, domain.PhaseInactive, s.Phase())
}

func TestStart_Success(t *testing.T) {
	s, client := newStore(t)
	var phases []domain.Phase
	s.OnChange(func(p domain.Phase) { phases = append(phases, p) })

	_, err := s.Initialize("token")
	require.NoError(t, err)

	stream, err := s.Start(context.Background(), domain.StartRequest{AvatarName: "Pedro"})
	require.NoError(t, err)
	assert.Same(t, client.Stream, stream)
	assert.Same(t, client.Stream, s.Stream())
	assert.Equal(t, domain.PhaseConnected, s.Phase())
	assert.Equal(t, []domain.Phase{domain.PhaseConnecting, domain.PhaseConnected}, phases)
	require.Len(t, client.Started(), 1)
	assert.Equal(t, "Pedro", client.Started()[0].AvatarName)
}

func TestStart_FailureRevertsToInactive(t *testing.T) {
	s, client := newStore(t)
	client.StartErr = errors.New("quota exceeded")
	var phases []domain.Phase
	s.OnChange(func(p domain.Phase) { phases = append(phases, p) })

	_, err := s.Initialize("token")
	require.NoError(t, err)

	stream, err := s.Start(context.Background(), domain.StartRequest{})
	assert.EqualError(t, err, "quota exceeded")
	assert.Nil(t, stream)
	assert.Nil(t, s.Stream())
	assert.Equal(t, domain.PhaseInactive, s.Phase())
	assert.Equal(t, []domain.Phase{domain.PhaseConnecting, domain.PhaseInactive}, phases)
}

func TestStart_WhileActive(t *testing.T) {
	s, client := newStore(t)
	_, err := s.Initialize("token")
	require.NoError(t, err)
	_, err = s.Start(context.Background(), domain.StartRequest{})
	require.NoError(t, err)

	_, err = s.Start(context.Background(), domain.StartRequest{})
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Equal(t, 1, client.Count("StartAvatar"))
	assert.Equal(t, domain.PhaseConnected, s.Phase())
}

func TestStop_InactiveIsNoop(t *testing.T) {
	s, client := newStore(t)
	_, err := s.Initialize("token")
	require.NoError(t, err)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, client.Count("StopAvatar"))
	assert.Equal(t, domain.PhaseInactive, s.Phase())
}

func TestStop_Connected(t *testing.T) {
	s, client := newStore(t)
	_, err := s.Initialize("token")
	require.NoError(t, err)
	_, err = s.Start(context.Background(), domain.StartRequest{})
	require.NoError(t, err)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, client.Count("StopAvatar"))
	assert.Equal(t, domain.PhaseInactive, s.Phase())
	assert.Nil(t, s.Stream())
}

func TestStop_ErrorStillInactive(t *testing.T) {
	s, client := newStore(t)
	client.StopErr = errors.New("network down")
	_, err := s.Initialize("token")
	require.NoError(t, err)
	_, err = s.Start(context.Background(), domain.StartRequest{})
	require.NoError(t, err)

	assert.Error(t, s.Stop(context.Background()))
	assert.Equal(t, domain.PhaseInactive, s.Phase())
}

func TestStop_DuringStartClosesStream(t *testing.T) {
	s, client := newStore(t)
	_, err := s.Initialize("token")
	require.NoError(t, err)

	client.StartHook = func(ctx context.Context) error {
		// Teardown arrives while the vendor is still opening the session.
		return s.Stop(ctx)
	}

	stream, err := s.Start(context.Background(), domain.StartRequest{})
	assert.ErrorIs(t, err, ErrStopped)
	assert.Nil(t, stream)
	assert.Equal(t, domain.PhaseInactive, s.Phase())
	assert.Nil(t, s.Stream())
	assert.Equal(t, 1, client.Stream.(*coretest.Stream).Closed())
	assert.Equal(t, 1, client.Count("StopAvatar"))
}
