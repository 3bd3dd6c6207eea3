package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Stats collects dispatch statistics for a Pool, mirroring the shape of
// metrics an operator would want from any work-stealing scheduler:
// throughput, failure counts, and queue/worker history.
type Stats struct {
	mu sync.RWMutex

	StartTime          time.Time
	EndTime            time.Time
	TotalExecutionTime time.Duration

	Submitted int64
	Completed int64
	Failed    int64
	Cancelled int64

	ScaleUpEvents   int64
	ScaleDownEvents int64

	LastError  error
	ErrorCount int64

	taskDurationHistory []time.Duration
}

// NewStats returns a Stats collector with its clock started.
func NewStats() *Stats {
	return &Stats{StartTime: time.Now(), taskDurationHistory: make([]time.Duration, 0, 1024)}
}

func (s *Stats) RecordSubmitted() { atomic.AddInt64(&s.Submitted, 1) }

func (s *Stats) RecordCompleted(d time.Duration) {
	atomic.AddInt64(&s.Completed, 1)
	s.mu.Lock()
	s.taskDurationHistory = append(s.taskDurationHistory, d)
	if len(s.taskDurationHistory) > 10000 {
		s.taskDurationHistory = s.taskDurationHistory[1:]
	}
	s.mu.Unlock()
}

func (s *Stats) RecordFailed(err error) {
	atomic.AddInt64(&s.Failed, 1)
	atomic.AddInt64(&s.ErrorCount, 1)
	s.mu.Lock()
	s.LastError = err
	s.mu.Unlock()
}

func (s *Stats) RecordCancelled()  { atomic.AddInt64(&s.Cancelled, 1) }
func (s *Stats) RecordScaleUp()    { atomic.AddInt64(&s.ScaleUpEvents, 1) }
func (s *Stats) RecordScaleDown()  { atomic.AddInt64(&s.ScaleDownEvents, 1) }

// Finalize stamps EndTime/TotalExecutionTime once dispatch stops.
func (s *Stats) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndTime = time.Now()
	s.TotalExecutionTime = s.EndTime.Sub(s.StartTime)
}

// Snapshot is a point-in-time, race-free copy of a Stats value.
type Snapshot struct {
	Submitted, Completed, Failed, Cancelled int64
	ScaleUpEvents, ScaleDownEvents          int64
	ErrorCount                              int64
	LastError                               error
	AverageTaskDuration                     time.Duration
	TasksPerSecond                          float64
	TotalExecutionTime                      time.Duration
}

// Snapshot returns a consistent copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var avg time.Duration
	if n := len(s.taskDurationHistory); n > 0 {
		var total time.Duration
		for _, d := range s.taskDurationHistory {
			total += d
		}
		avg = total / time.Duration(n)
	}
	elapsed := s.TotalExecutionTime
	if elapsed == 0 {
		elapsed = time.Since(s.StartTime)
	}
	var perSec float64
	if elapsed > 0 {
		perSec = float64(atomic.LoadInt64(&s.Completed)) / elapsed.Seconds()
	}

	return Snapshot{
		Submitted:           atomic.LoadInt64(&s.Submitted),
		Completed:           atomic.LoadInt64(&s.Completed),
		Failed:              atomic.LoadInt64(&s.Failed),
		Cancelled:           atomic.LoadInt64(&s.Cancelled),
		ScaleUpEvents:        atomic.LoadInt64(&s.ScaleUpEvents),
		ScaleDownEvents:      atomic.LoadInt64(&s.ScaleDownEvents),
		ErrorCount:          atomic.LoadInt64(&s.ErrorCount),
		LastError:           s.LastError,
		AverageTaskDuration: avg,
		TasksPerSecond:      perSec,
		TotalExecutionTime:  elapsed,
	}
}

func (s *Stats) String() string {
	snap := s.Snapshot()
	last := "none"
	if snap.LastError != nil {
		last = snap.LastError.Error()
	}
	return fmt.Sprintf("Stats{submitted=%d completed=%d failed=%d cancelled=%d avg=%v rate=%.1f/s last_error=%s}",
		snap.Submitted, snap.Completed, snap.Failed, snap.Cancelled, snap.AverageTaskDuration, snap.TasksPerSecond, last)
}
