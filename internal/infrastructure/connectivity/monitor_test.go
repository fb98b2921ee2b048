package connectivity

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"hotelsync/internal/utils/logger"
)

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

type recorder struct {
	mu     stdsync.Mutex
	states []bool
}

func (r *recorder) SetOnline(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, online)
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

func TestMonitor_Check(t *testing.T) {
	p := new(MockPinger)
	p.On("Ping").Return(nil).Once()
	p.On("Ping").Return(errors.New("connection refused")).Once()

	rec := &recorder{}
	m := New(p, rec, time.Second, logger.Discard())

	assert.True(t, m.Check(context.Background()))
	assert.False(t, m.Check(context.Background()))
	assert.Equal(t, []bool{true, false}, rec.snapshot())
	p.AssertExpectations(t)
}

func TestMonitor_Run(t *testing.T) {
	p := new(MockPinger)
	p.On("Ping").Return(nil)

	rec := &recorder{}
	m := New(p, rec, 10*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(rec.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
