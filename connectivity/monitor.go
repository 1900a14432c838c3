// Package connectivity tracks the online/offline state of the device
// and publishes transitions to whoever gates remote work on them.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProbeFunc reports whether the remote side is reachable right now.
type ProbeFunc func(ctx context.Context) error

// Monitor holds the boolean online state and a transition channel. The
// sync manager subscribes to Changes and drains on every offline→online
// edge; everything else just polls Online before touching the remote.
type Monitor struct {
	Probe    ProbeFunc
	Interval time.Duration
	Logger   *logrus.Logger

	mu      sync.Mutex
	online  bool
	started bool
	changes chan bool
}

func NewMonitor(probe ProbeFunc, interval time.Duration, logger *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		Probe:    probe,
		Interval: interval,
		Logger:   logger,
		changes:  make(chan bool, 8),
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Changes delivers the new state on every transition. Buffered; a slow
// consumer drops intermediate flaps, keeping only the latest edge.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// SetOnline forces the state, used by tests and by callers that learn
// about connectivity out of band (a request just failed with a network
// error, say).
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if !changed {
		return
	}
	if m.Logger != nil {
		m.Logger.WithField("online", online).Info("connectivity changed")
	}
	select {
	case m.changes <- online:
	default:
	}
}

// Run probes on a fixed interval until ctx is done. An immediate first
// probe sets the initial state before the first tick.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.probeOnce(ctx)
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx)
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context) {
	if m.Probe == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.Interval)
	defer cancel()
	m.SetOnline(m.Probe(probeCtx) == nil)
}
