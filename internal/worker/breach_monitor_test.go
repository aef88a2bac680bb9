package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/observability"
)

type scriptedMarker struct {
	mu      sync.Mutex
	results []int
	err     error
	calls   int
}

func (s *scriptedMarker) MarkBreachedTickets(_ context.Context, batch int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	n := s.results[0]
	s.results = s.results[1:]
	if n > batch {
		n = batch
	}
	return n, nil
}

func (s *scriptedMarker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestScanDrainsFullBatches(t *testing.T) {
	marker := &scriptedMarker{results: []int{defaultBreachBatch, defaultBreachBatch, 7}}
	metrics := observability.NewMetrics()
	m := NewBreachMonitor(marker, time.Minute, nil, metrics)

	assert.Equal(t, 2*defaultBreachBatch+7, m.Scan(context.Background()))
	assert.Equal(t, 3, marker.callCount())
	assert.Equal(t, int64(2*defaultBreachBatch+7), metrics.Snapshot().BreachesMarked)
}

func TestScanStopsOnError(t *testing.T) {
	marker := &scriptedMarker{err: errors.New("db down")}
	m := NewBreachMonitor(marker, time.Minute, nil, nil)

	assert.Zero(t, m.Scan(context.Background()))
	assert.Equal(t, 1, marker.callCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	marker := &scriptedMarker{}
	m := NewBreachMonitor(marker, 10*time.Millisecond, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return marker.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestStartWithoutMonitorClosesImmediately(t *testing.T) {
	done := Start(context.Background(), nil, nil)
	select {
	case <-done:
	default:
		t.Fatal("expected closed channel")
	}
}
