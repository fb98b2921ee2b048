// Package connectivity watches whether the backend can be reached.
package connectivity

import (
	"context"
	"time"

	"golang.org/x/exp/slog"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Listener is told the result of every probe; it deduplicates transitions itself.
type Listener interface {
	SetOnline(online bool)
}

type Monitor struct {
	pinger   Pinger
	listener Listener
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func New(pinger Pinger, listener Listener, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := interval
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	return &Monitor{
		pinger:   pinger,
		listener: listener,
		interval: interval,
		timeout:  timeout,
		log:      log.With("component", "connectivity"),
	}
}

// Check probes the backend once and reports the result.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	online := err == nil
	if err != nil {
		m.log.Debug("backend probe failed", "error", err)
	}

	m.listener.SetOnline(online)
	return online
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
