// Package elapsed derives live duration displays from an anchor timestamp.
// The scan-wait view renders "mm:ss" on a one-second tick; the activation
// view renders "Xh Ym" on a one-minute tick.
package elapsed

import (
	"fmt"
	"sync"
	"time"
)

// Format selects how a presenter renders the elapsed duration.
type Format int

const (
	// FormatClock renders "mm:ss", e.g. "02:05".
	FormatClock Format = iota
	// FormatSpan renders "Xh Ym" once past an hour, "Xm" below it.
	FormatSpan
)

// Clock renders a duration as zero-padded "mm:ss".
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Span renders a duration as "Xh Ym", or "Xm" under an hour.
func Span(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	mins := int(d.Minutes())
	hours := mins / 60
	mins = mins % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// Presenter pushes a re-rendered elapsed display to a callback on a fixed
// tick. It must be stopped when the owning view goes away; Stop releases
// the ticker and guarantees no further callbacks.
type Presenter struct {
	format Format
	period time.Duration
	render func(string)
	now    func() time.Time

	mu   sync.Mutex
	stop chan struct{}
}

// New creates a presenter for the given format and tick period. render is
// invoked once immediately on Start and then once per tick.
func New(format Format, period time.Duration, render func(string)) *Presenter {
	return &Presenter{format: format, period: period, render: render, now: time.Now}
}

// Start begins ticking against the anchor. A running presenter is
// restarted against the new anchor.
func (p *Presenter) Start(anchor time.Time) {
	p.mu.Lock()
	p.stopLocked()
	stop := make(chan struct{})
	p.stop = stop
	out := p.display(anchor)
	p.mu.Unlock()

	p.render(out)

	go func() {
		ticker := time.NewTicker(p.period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.mu.Lock()
				// A Stop that raced the tick wins; the view is gone.
				if p.stop != stop {
					p.mu.Unlock()
					return
				}
				out := p.display(anchor)
				p.mu.Unlock()
				p.render(out)
			}
		}
	}()
}

// Stop halts ticking and releases the timer. Safe to call repeatedly.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Presenter) stopLocked() {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *Presenter) display(anchor time.Time) string {
	d := p.now().Sub(anchor)
	if p.format == FormatSpan {
		return Span(d)
	}
	return Clock(d)
}
