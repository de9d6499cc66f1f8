// Package netmon tracks effective network connectivity. Platform-level
// events are accepted as hints but an active probe has the final word:
// captive portals and stale interface state can report "online" when the
// remote store is unreachable.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	defaultInterval     = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// Monitor owns both connectivity inputs (event reports and the periodic
// probe) and deduplicates state before publishing, so subscribers never see
// two inconsistent transitions from independent sources.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger

	mu      sync.Mutex
	online  bool
	started bool
	nextID  int
	subs    map[int]chan bool

	stop chan struct{}
	done chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the probe interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithProbeTimeout bounds each probe request so a hung probe cannot starve
// the periodic checker.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.client.Timeout = d }
}

// New creates a Monitor probing probeURL. It starts pessimistic (offline)
// until the first probe or report says otherwise.
func New(probeURL string, log *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		probeURL: probeURL,
		interval: defaultInterval,
		client:   &http.Client{Timeout: defaultProbeTimeout},
		log:      log,
		subs:     make(map[int]chan bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes immediately, then on every interval tick until Stop.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		m.probe()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.probe()
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
}

// Online reports the current effective state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report feeds a platform connectivity event into the monitor. The next
// probe will confirm or correct it.
func (m *Monitor) Report(online bool) {
	m.setState(online, "event")
}

// Subscribe registers for state transitions. The returned channel receives
// the new effective state on every change; the func unsubscribes. The
// channel is buffered and the monitor keeps only the latest unread state, so
// a slow subscriber never blocks publishing.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// WaitForOnline resolves true immediately if online, otherwise on the next
// online transition, or false when the timeout (or ctx) expires — whichever
// comes first. The subscription and timer are both torn down on return.
func (m *Monitor) WaitForOnline(ctx context.Context, timeout time.Duration) bool {
	if m.Online() {
		return true
	}
	ch, cancel := m.Subscribe()
	defer cancel()
	// Re-check after subscribing so a transition in the gap is not missed.
	if m.Online() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case online := <-ch:
			if online {
				return true
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (m *Monitor) probe() {
	req, err := http.NewRequest(http.MethodGet, m.probeURL, nil)
	if err != nil {
		m.setState(false, "probe")
		return
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		m.setState(false, "probe")
		return
	}
	resp.Body.Close()
	m.setState(resp.StatusCode < 500, "probe")
}

// setState publishes only when the effective state changes; repeated
// confirmations of the same state are suppressed.
func (m *Monitor) setState(online bool, source string) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]chan bool, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.log.Info("connectivity changed", "online", online, "source", source)
	for _, ch := range subs {
		select {
		case ch <- online:
		default:
			// Drop the stale unread state, keep the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- online:
			default:
			}
		}
	}
}
