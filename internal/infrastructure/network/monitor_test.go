package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/fx-converter/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logger.Logger {
	return logger.NewJSONLogger(nil, logger.FatalLevel)
}

func TestMonitorInitialSample(t *testing.T) {
	m := NewMonitor(ProberFunc(func(ctx context.Context) bool { return false }), 0, quietLogger(), nil)
	updates, cancel := m.Subscribe()
	defer cancel()

	m.Start(context.Background())
	assert.True(t, m.Offline())

	// the initial sample is a snapshot, not a transition
	select {
	case s := <-updates:
		t.Fatalf("unexpected transition %v", s)
	default:
	}
}

func TestMonitorTransitions(t *testing.T) {
	m := NewMonitor(ProberFunc(func(ctx context.Context) bool { return true }), 0, quietLogger(), nil)
	m.Start(context.Background())
	assert.False(t, m.Offline())

	updates, cancel := m.Subscribe()
	defer cancel()

	m.Set(false) // unchanged
	m.Set(true)

	select {
	case s := <-updates:
		assert.True(t, s.Offline)
		assert.Equal(t, "offline", s.String())
	case <-time.After(time.Second):
		t.Fatal("expected offline transition")
	}

	m.Set(false)
	s := <-updates
	assert.False(t, s.Offline)

	t.Run("Slow reader sees latest state", func(t *testing.T) {
		m.Set(true)
		m.Set(false)
		m.Set(true)
		s := <-updates
		assert.True(t, s.Offline)
		select {
		case extra := <-updates:
			t.Fatalf("unexpected backlog %v", extra)
		default:
		}
	})

	t.Run("Cancelled subscription stops receiving", func(t *testing.T) {
		other, stop := m.Subscribe()
		stop()
		stop()
		m.Set(false)
		select {
		case s := <-other:
			t.Fatalf("unexpected delivery %v", s)
		default:
		}
	})
}

func TestMonitorProbeLoop(t *testing.T) {
	var online atomic.Bool
	online.Store(true)

	m := NewMonitor(ProberFunc(func(ctx context.Context) bool { return online.Load() }), 5*time.Millisecond, quietLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	online.Store(false)
	select {
	case s := <-updates:
		assert.True(t, s.Offline)
	case <-time.After(time.Second):
		t.Fatal("probe loop did not report offline")
	}
	assert.True(t, m.Offline())
}

func TestHTTPProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))

	prober := NewHTTPProber(server.URL, time.Second)
	require.True(t, prober.Probe(context.Background()))

	server.Close()
	assert.False(t, prober.Probe(context.Background()))
}
