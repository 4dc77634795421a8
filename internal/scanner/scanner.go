// Package scanner wraps the proximity-tag read capability. A scan is an
// opaque asynchronous identify operation: it yields a plate after a
// bounded latency or fails when no tag is present. An abandoned scan must
// never surface a late result.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/flow"
	"github.com/parksyde/doublepark/internal/models"
)

// TagReader is the physical read capability. The production reader is
// supplied by the platform layer; SimulatedReader stands in elsewhere.
type TagReader interface {
	// Read blocks until a tag is read or ctx is done. An absent tag
	// returns flow.ErrNotFound.
	Read(ctx context.Context) (plate string, err error)
}

// SimulatedReader resolves a fixed plate after a fixed latency,
// mirroring the read timing of the real capability.
type SimulatedReader struct {
	Plate   string
	Latency time.Duration
}

// Read implements TagReader.
func (r SimulatedReader) Read(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(r.Latency):
	}
	if r.Plate == "" {
		return "", flow.ErrNotFound
	}
	return r.Plate, nil
}

// Result is one completed scan attempt: the plate read and when it was
// captured. It is consumed immediately by the requesting flow.
type Result struct {
	Plate      string
	CapturedAt time.Time
}

// Scanner runs one identify operation at a time.
type Scanner struct {
	reader TagReader
	logger *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a scanner over the given reader.
func New(reader TagReader, logger *zap.SugaredLogger) *Scanner {
	return &Scanner{reader: reader, logger: logger}
}

// Identify performs one proximity read. It returns flow.ErrNotFound when
// no tag is detected. Canceling ctx, or calling Cancel, aborts the
// attempt; a canceled attempt yields no result.
func (s *Scanner) Identify(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: scan already in progress", flow.ErrValidation)
	}
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	plate, err := s.reader.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned: discard whatever the reader produced.
			return nil, ctx.Err()
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &Result{Plate: models.NormalizePlate(plate), CapturedAt: time.Now()}
	s.logger.Infow("Tag identified", "plate", result.Plate)
	return result, nil
}

// Cancel aborts the in-flight identify attempt, if any.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
