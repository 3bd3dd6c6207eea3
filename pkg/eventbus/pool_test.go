package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	p := NewPool(2, 1)
	defer p.Shutdown()

	var n int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			atomic.AddInt64(&n, 1)
		})
		require.NoError(t, err)
	}
	waitTimeout(t, &wg, 2*time.Second)
	assert.EqualValues(t, 50, atomic.LoadInt64(&n))
}

func TestPoolSubmitAfterShutdownFails(t *testing.T) {
	p := NewPool(1, 1)
	p.Shutdown()
	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestPoolStatsTrackCompletion(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Submit(context.Background(), func() { wg.Done() }))
	waitTimeout(t, &wg, time.Second)

	// give the worker goroutine a moment to record completion after wg.Done
	time.Sleep(20 * time.Millisecond)
	snap := p.Stats().Snapshot()
	assert.GreaterOrEqual(t, snap.Completed, int64(1))
}

func TestDeadlockDetectorRaisesTimeoutAlert(t *testing.T) {
	dd := NewDeadlockDetector(10*time.Millisecond, 5*time.Millisecond)
	defer dd.Shutdown()

	dd.RegisterTask("t1", "slow proof")
	select {
	case alert := <-dd.GetAlerts():
		assert.Equal(t, AlertTaskTimeout, alert.Type)
		assert.Equal(t, "t1", alert.TaskID)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected a timeout alert")
	}
}

func TestDeadlockDetectorUnregisterStopsAlerts(t *testing.T) {
	dd := NewDeadlockDetector(10*time.Millisecond, 5*time.Millisecond)
	defer dd.Shutdown()

	dd.RegisterTask("t1", "quick task")
	dd.UnregisterTask("t1")
	assert.Equal(t, 0, dd.ActiveTaskCount())
}
