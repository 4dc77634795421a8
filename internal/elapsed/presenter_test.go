package elapsed

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00"},
		{"under a minute", 9 * time.Second, "00:09"},
		{"125 seconds", 125 * time.Second, "02:05"},
		{"exactly an hour", time.Hour, "60:00"},
		{"negative clamps", -3 * time.Second, "00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clock(tt.d); got != tt.want {
				t.Errorf("Clock(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestSpan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "0m"},
		{"45 minutes", 45 * time.Minute, "45m"},
		{"90 minutes", 90 * time.Minute, "1h 30m"},
		{"exactly two hours", 2 * time.Hour, "2h 0m"},
		{"sub-minute rounds down", 59 * time.Second, "0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Span(tt.d); got != tt.want {
				t.Errorf("Span(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestPresenterRendersImmediately(t *testing.T) {
	t.Parallel()

	out := make(chan string, 1)
	p := New(FormatClock, time.Hour, func(s string) { out <- s })
	p.now = func() time.Time { return time.Unix(125, 0) }

	p.Start(time.Unix(0, 0))
	defer p.Stop()

	select {
	case got := <-out:
		if got != "02:05" {
			t.Errorf("initial render = %q, want %q", got, "02:05")
		}
	case <-time.After(time.Second):
		t.Fatal("no render on Start")
	}
}

func TestPresenterTicks(t *testing.T) {
	t.Parallel()

	var renders atomic.Int32
	p := New(FormatClock, 5*time.Millisecond, func(string) { renders.Add(1) })

	p.Start(time.Now())
	time.Sleep(60 * time.Millisecond)
	p.Stop()

	if n := renders.Load(); n < 2 {
		t.Errorf("expected repeated renders, got %d", n)
	}
}

func TestPresenterStopReleasesTicker(t *testing.T) {
	t.Parallel()

	var renders atomic.Int32
	p := New(FormatSpan, 5*time.Millisecond, func(string) { renders.Add(1) })

	p.Start(time.Now())
	p.Stop()

	settled := renders.Load()
	time.Sleep(50 * time.Millisecond)
	if got := renders.Load(); got != settled {
		t.Errorf("presenter rendered %d times after Stop", got-settled)
	}

	// Stop is idempotent.
	p.Stop()
}

func TestPresenterRestart(t *testing.T) {
	t.Parallel()

	out := make(chan string, 4)
	p := New(FormatSpan, time.Hour, func(s string) { out <- s })
	p.now = func() time.Time { return time.Unix(90*60, 0) }

	p.Start(time.Unix(0, 0))
	if got := <-out; got != "1h 30m" {
		t.Fatalf("first anchor render = %q, want %q", got, "1h 30m")
	}

	p.Start(time.Unix(45*60, 0))
	defer p.Stop()
	if got := <-out; got != "45m" {
		t.Fatalf("second anchor render = %q, want %q", got, "45m")
	}
}
