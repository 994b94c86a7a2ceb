// internal/game/scheduler.go
package game

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// schedulerWorkers bounds how many scheduled callbacks run at once across all
// rooms. Callbacks that fire while the pool is saturated wait their turn.
const schedulerWorkers = 10

// Task is a cancelable handle for a scheduled callback. Cancel is safe to
// call at any time, including after the callback has started or finished.
type Task struct {
	timer     *time.Timer
	cancelled atomic.Bool
	done      atomic.Bool
}

// Cancel stops the task if it has not started running. It returns true when
// the callback is guaranteed not to run.
func (t *Task) Cancel() bool {
	t.cancelled.Store(true)
	if t.timer.Stop() {
		return true
	}
	// Timer already fired; the wrapper may still observe the cancel flag
	// before entering the callback.
	return !t.done.Load()
}

// Done reports whether the callback has started executing.
func (t *Task) Done() bool { return t.done.Load() }

// Scheduler runs delayed callbacks on a bounded worker pool. Rooms schedule
// their countdown ticks, timeouts and loading delays here and keep the
// returned handles so a resolved question can cancel everything pending.
type Scheduler struct {
	slots chan struct{}
}

// NewScheduler returns a scheduler with the default worker bound.
func NewScheduler() *Scheduler {
	return &Scheduler{slots: make(chan struct{}, schedulerWorkers)}
}

// After schedules fn to run once after d. The callback runs on the worker
// pool; panics are recovered and logged so one room cannot take down the
// scheduler.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		s.slots <- struct{}{}
		defer func() { <-s.slots }()
		if t.cancelled.Load() {
			return
		}
		t.done.Store(true)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("scheduled task panicked")
			}
		}()
		fn()
	})
	return t
}
