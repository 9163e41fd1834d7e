// Package network tracks online/offline transitions
package network

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/damon-houk/fx-converter/internal/domain/entity"
	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/damon-houk/fx-converter/internal/infrastructure/metrics"
)

// Prober reports whether the network is currently reachable
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context) bool

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

// HTTPProber treats any HTTP response from URL as reachable
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber creates a prober with its own short timeout
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Probe issues a HEAD request to URL
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Monitor is the process-wide connectivity flag. Only the probe loop and
// Set change it; everything else reads it or subscribes to transitions.
// It never blocks or cancels other work.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   logger.Logger
	metrics  *metrics.ExchangeMetrics

	setMu       sync.Mutex
	mu          sync.RWMutex
	offline     bool
	sampled     bool
	subscribers map[int]chan entity.NetworkStatus
	nextID      int
}

// NewMonitor creates a monitor that samples prober every interval once started
func NewMonitor(prober Prober, interval time.Duration, log logger.Logger, m *metrics.ExchangeMetrics) *Monitor {
	return &Monitor{
		prober:      prober,
		interval:    interval,
		logger:      logger.OrDefault(log).WithField("component", "network_monitor"),
		metrics:     m,
		subscribers: make(map[int]chan entity.NetworkStatus),
	}
}

// Start samples connectivity once, synchronously, then keeps probing in
// the background until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.Set(!m.prober.Probe(ctx))

	if m.interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Set(!m.prober.Probe(ctx))
			}
		}
	}()
}

// Offline returns the latest known state
func (m *Monitor) Offline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.offline
}

// Set records a connectivity observation. Host integrations that receive
// OS-level notifications call it directly. Subscribers are notified only on change.
func (m *Monitor) Set(offline bool) {
	m.setMu.Lock()
	defer m.setMu.Unlock()

	m.mu.Lock()
	if m.sampled && m.offline == offline {
		m.mu.Unlock()
		return
	}
	first := !m.sampled
	m.sampled = true
	m.offline = offline

	status := entity.NetworkStatus{Offline: offline, At: time.Now()}
	subscribers := make([]chan entity.NetworkStatus, 0, len(m.subscribers))
	for _, ch := range m.subscribers {
		subscribers = append(subscribers, ch)
	}
	m.mu.Unlock()

	m.metrics.SetOffline(offline)
	m.logger.Info("Network status changed", map[string]interface{}{
		"status":  status.String(),
		"initial": first,
	})

	if first {
		return
	}
	for _, ch := range subscribers {
		publish(ch, status)
	}
}

// Subscribe returns a stream of transitions and a cancel function. Each
// stream holds only the latest undelivered transition, so a slow reader
// sees the current state rather than a backlog. A new subscription may be
// taken at any time.
func (m *Monitor) Subscribe() (<-chan entity.NetworkStatus, func()) {
	ch := make(chan entity.NetworkStatus, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
	return ch, cancel
}

// publish replaces any pending value with status
func publish(ch chan entity.NetworkStatus, status entity.NetworkStatus) {
	for {
		select {
		case ch <- status:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
