package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DeadlockDetector watches the tasks registered with it and raises an
// alert if one runs past its timeout or the whole pool goes quiet while
// work is still registered. Pool creates one per pool but does not
// register its own dispatch tasks with it.
// This is the cooperative half of spec §5's "Cancellation is cooperative":
// nothing here force-kills a goroutine, it only surfaces the stall.
type DeadlockDetector struct {
	mu sync.RWMutex

	timeoutDuration time.Duration
	checkInterval   time.Duration

	activeTasks        map[string]*taskInfo
	lastActivity       time.Time
	potentialDeadlocks int64

	shutdownChan chan struct{}
	alertChan    chan DeadlockAlert
	once         sync.Once
}

type taskInfo struct {
	startTime   time.Time
	lastUpdate  time.Time
	description string
}

// DeadlockAlertType distinguishes why an alert was raised.
type DeadlockAlertType int

const (
	AlertTaskTimeout DeadlockAlertType = iota
	AlertSystemStall
)

// DeadlockAlert is pushed to GetAlerts() when a stall is detected.
type DeadlockAlert struct {
	Type        DeadlockAlertType
	TaskID      string
	Description string
	Timestamp   time.Time
}

// NewDeadlockDetector starts a detector polling every checkInterval for
// tasks that have gone silent longer than timeoutDuration.
func NewDeadlockDetector(timeoutDuration, checkInterval time.Duration) *DeadlockDetector {
	if timeoutDuration <= 0 {
		timeoutDuration = 30 * time.Second
	}
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	dd := &DeadlockDetector{
		timeoutDuration: timeoutDuration,
		checkInterval:   checkInterval,
		activeTasks:     make(map[string]*taskInfo),
		lastActivity:    time.Now(),
		shutdownChan:    make(chan struct{}),
		alertChan:       make(chan DeadlockAlert, 16),
	}
	go dd.monitor()
	return dd
}

// RegisterTask begins tracking taskID.
func (dd *DeadlockDetector) RegisterTask(taskID, description string) {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	dd.activeTasks[taskID] = &taskInfo{startTime: time.Now(), lastUpdate: time.Now(), description: description}
	dd.lastActivity = time.Now()
}

// UpdateTask refreshes taskID's last-activity timestamp.
func (dd *DeadlockDetector) UpdateTask(taskID string) {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	if t, ok := dd.activeTasks[taskID]; ok {
		t.lastUpdate = time.Now()
		dd.lastActivity = time.Now()
	}
}

// UnregisterTask stops tracking taskID.
func (dd *DeadlockDetector) UnregisterTask(taskID string) {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	delete(dd.activeTasks, taskID)
}

// GetAlerts returns the channel alerts are pushed to.
func (dd *DeadlockDetector) GetAlerts() <-chan DeadlockAlert { return dd.alertChan }

// ActiveTaskCount reports how many tasks are currently tracked.
func (dd *DeadlockDetector) ActiveTaskCount() int {
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	return len(dd.activeTasks)
}

// PotentialDeadlocks reports how many stalls have been flagged.
func (dd *DeadlockDetector) PotentialDeadlocks() int64 {
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	return dd.potentialDeadlocks
}

// Shutdown stops the monitor loop. Safe to call more than once.
func (dd *DeadlockDetector) Shutdown() {
	dd.once.Do(func() { close(dd.shutdownChan) })
}

func (dd *DeadlockDetector) monitor() {
	ticker := time.NewTicker(dd.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			dd.check()
		case <-dd.shutdownChan:
			return
		}
	}
}

func (dd *DeadlockDetector) check() {
	dd.mu.Lock()
	defer dd.mu.Unlock()
	now := time.Now()

	for taskID, task := range dd.activeTasks {
		if now.Sub(task.lastUpdate) > dd.timeoutDuration {
			dd.raise(DeadlockAlert{
				Type:        AlertTaskTimeout,
				TaskID:      taskID,
				Description: fmt.Sprintf("task %q timed out after %v", task.description, now.Sub(task.startTime)),
				Timestamp:   now,
			})
		}
	}

	if len(dd.activeTasks) > 0 && now.Sub(dd.lastActivity) > dd.timeoutDuration*2 {
		dd.raise(DeadlockAlert{
			Type:        AlertSystemStall,
			Description: fmt.Sprintf("no dispatch activity for %v with %d tasks still registered", now.Sub(dd.lastActivity), len(dd.activeTasks)),
			Timestamp:   now,
		})
	}
}

func (dd *DeadlockDetector) raise(alert DeadlockAlert) {
	select {
	case dd.alertChan <- alert:
	default:
	}
	dd.potentialDeadlocks++
}

// TimeoutContext derives a context bounded by the detector's timeout and
// registers taskID for the duration of its use; the returned cancel func
// also unregisters the task.
func (dd *DeadlockDetector) TimeoutContext(parent context.Context, taskID, description string) (context.Context, context.CancelFunc) {
	dd.RegisterTask(taskID, description)
	ctx, cancel := context.WithTimeout(parent, dd.timeoutDuration)
	return ctx, func() {
		dd.UnregisterTask(taskID)
		cancel()
	}
}
