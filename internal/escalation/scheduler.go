package escalation

import "time"

// Scheduler schedules a single delayed task. The returned cancel func
// stops the task if it has not fired yet; the pipeline cancels every
// pending task on teardown so no stage advance fires after dismissal.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler is the production scheduler backed by time.AfterFunc.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
