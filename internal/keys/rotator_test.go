package keys

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRotator_RotatesOnTick(t *testing.T) {
	s, err := NewStore(Config{}, zap.NewNop())
	require.NoError(t, err)
	startKid := s.Active().ID

	r := NewRotator(zap.NewNop(), s, 10*time.Millisecond, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Active().ID != startKid
	}, 30*time.Second, 20*time.Millisecond, "scheduled rotation never happened")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestRotator_StopsOnCancel(t *testing.T) {
	s, err := NewStore(Config{}, zap.NewNop())
	require.NoError(t, err)

	r := NewRotator(zap.NewNop(), s, time.Hour, prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("rotator did not stop on cancel")
	}
}
