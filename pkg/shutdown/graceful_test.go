package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/logging"
)

type stopper struct {
	calls    int
	deadline bool
	err      error
}

func (s *stopper) Shutdown(ctx context.Context) error {
	s.calls++
	_, s.deadline = ctx.Deadline()
	return s.err
}

func TestWait_StopsAfterContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &stopper{}
	Wait(ctx, s, time.Second, logging.NewNop())

	require.Equal(t, 1, s.calls)
	assert.True(t, s.deadline)
}

func TestWait_ShutdownErrorIsLogged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &stopper{err: errors.New("listener busy")}
	Wait(ctx, s, time.Second, logging.NewNop())

	assert.Equal(t, 1, s.calls)
}
