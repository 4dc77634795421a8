package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/flow"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestIdentifyReadsPlate(t *testing.T) {
	t.Parallel()

	s := New(SimulatedReader{Plate: "abc1234", Latency: time.Millisecond}, testLogger())

	result, err := s.Identify(context.Background())
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if result.Plate != "ABC1234" {
		t.Errorf("plate = %q, want normalized %q", result.Plate, "ABC1234")
	}
	if result.CapturedAt.IsZero() {
		t.Error("capture timestamp not set")
	}
}

func TestIdentifyNoTag(t *testing.T) {
	t.Parallel()

	s := New(SimulatedReader{Latency: time.Millisecond}, testLogger())

	_, err := s.Identify(context.Background())
	if !errors.Is(err, flow.ErrNotFound) {
		t.Errorf("err = %v, want flow.ErrNotFound", err)
	}
}

func TestIdentifyContextCancel(t *testing.T) {
	t.Parallel()

	s := New(SimulatedReader{Plate: "ABC1234", Latency: time.Second}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := s.Identify(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Identify did not return promptly on cancel")
	}
}

func TestCancelAbortsInFlightScan(t *testing.T) {
	t.Parallel()

	s := New(SimulatedReader{Plate: "ABC1234", Latency: time.Second}, testLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.Identify(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Identify still running after Cancel")
	}
}

func TestSecondScanRefusedWhileInFlight(t *testing.T) {
	t.Parallel()

	s := New(SimulatedReader{Plate: "ABC1234", Latency: 200 * time.Millisecond}, testLogger())

	go func() {
		_, _ = s.Identify(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := s.Identify(context.Background())
	if !errors.Is(err, flow.ErrValidation) {
		t.Errorf("err = %v, want flow.ErrValidation for concurrent scan", err)
	}
}
