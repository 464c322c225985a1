package models

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

func TestManagerLoadsOnce(t *testing.T) {
	m := NewManager(zerolog.Nop())

	loads := 0
	m.Register(ports.CategoryChat, func(context.Context) error {
		loads++
		return nil
	})

	assert.False(t, m.IsReady(ports.CategoryChat))

	require.NoError(t, m.EnsureLoaded(context.Background(), ports.CategoryChat))
	require.NoError(t, m.EnsureLoaded(context.Background(), ports.CategoryChat))

	assert.Equal(t, 1, loads)
	assert.True(t, m.IsReady(ports.CategoryChat))
}

func TestManagerUnknownCategory(t *testing.T) {
	m := NewManager(zerolog.Nop())

	err := m.EnsureLoaded(context.Background(), ports.CategoryVision)
	assert.Error(t, err)
	assert.False(t, m.IsReady(ports.CategoryVision))
}

func TestManagerLoadFailureIsRetryable(t *testing.T) {
	m := NewManager(zerolog.Nop())

	boom := errors.New("file not found")
	fail := true
	m.Register(ports.CategoryTranscription, func(context.Context) error {
		if fail {
			return boom
		}
		return nil
	})

	err := m.EnsureLoaded(context.Background(), ports.CategoryTranscription)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, m.IsReady(ports.CategoryTranscription))
	assert.ErrorIs(t, m.LastError(ports.CategoryTranscription), boom)

	fail = false
	require.NoError(t, m.EnsureLoaded(context.Background(), ports.CategoryTranscription))
	assert.True(t, m.IsReady(ports.CategoryTranscription))
	assert.NoError(t, m.LastError(ports.CategoryTranscription))
}

func TestManagerReRegisterResetsReadiness(t *testing.T) {
	m := NewManager(zerolog.Nop())

	m.Register(ports.CategorySynthesis, func(context.Context) error { return nil })
	require.NoError(t, m.EnsureLoaded(context.Background(), ports.CategorySynthesis))
	require.True(t, m.IsReady(ports.CategorySynthesis))

	m.Register(ports.CategorySynthesis, func(context.Context) error { return nil })
	assert.False(t, m.IsReady(ports.CategorySynthesis))
}

func TestManagerReadySnapshot(t *testing.T) {
	m := NewManager(zerolog.Nop())

	m.Register(ports.CategoryChat, func(context.Context) error { return nil })
	m.Register(ports.CategoryVision, func(context.Context) error { return nil })
	require.NoError(t, m.EnsureLoaded(context.Background(), ports.CategoryChat))

	assert.ElementsMatch(t, []ports.Category{ports.CategoryChat}, m.Ready())
}
