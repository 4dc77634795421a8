package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/escalation"
	"github.com/parksyde/doublepark/internal/flow"
	"github.com/parksyde/doublepark/internal/models"
)

type fakeRegistry struct {
	mu         sync.Mutex
	dispatched []models.Alert
	notifyErr  error
}

func (f *fakeRegistry) Lookup(ctx context.Context, plate string) (*models.Vehicle, error) {
	return nil, nil
}

func (f *fakeRegistry) Create(ctx context.Context, plate string, owner models.Principal) (*models.Vehicle, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeRegistry) UpdateStatus(ctx context.Context, plate string, status bool) (*models.Vehicle, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeRegistry) ListByOwner(ctx context.Context, p models.Principal) ([]models.Vehicle, error) {
	return nil, nil
}

func (f *fakeRegistry) Notify(ctx context.Context, alert models.Alert) (*models.AlertAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return nil, f.notifyErr
	}
	f.dispatched = append(f.dispatched, alert)
	return &models.AlertAck{Plate: alert.Plate, Category: alert.Category, DeliveredAt: time.Now()}, nil
}

type immediateScheduler struct{}

func (immediateScheduler) After(d time.Duration, fn func()) func() {
	fn()
	return func() {}
}

type silentNotifier struct{}

func (silentNotifier) NotifyAuthority(ctx context.Context, a models.Authority, plate string) error {
	return nil
}

func newTestComposer(reg *fakeRegistry) *Composer {
	return NewComposer("abc1234", reg, immediateScheduler{}, escalation.FixedLocator{}, silentNotifier{},
		escalation.Config{}, zap.NewNop().Sugar())
}

func TestDispatchCategories(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category models.AlertCategory
		message  string
		wantErr  error
	}{
		{"lights left on", models.AlertLightsLeftOn, "", nil},
		{"exposed valuables", models.AlertExposedValuables, "", nil},
		{"security concern", models.AlertSecurityConcern, "", nil},
		{"custom with body", models.AlertCustom, "please move, delivery ramp", nil},
		{"custom without body", models.AlertCustom, "", flow.ErrValidation},
		{"custom whitespace body", models.AlertCustom, "   ", flow.ErrValidation},
		{"unknown category", models.AlertCategory("honking"), "", flow.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistry{}
			c := newTestComposer(reg)

			ack, err := c.Dispatch(context.Background(), tt.category, tt.message)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				if len(reg.dispatched) != 0 {
					t.Error("invalid alert must not reach the registry")
				}
				return
			}
			if err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if ack.Plate != "ABC1234" {
				t.Errorf("ack plate = %q, want normalized scan plate", ack.Plate)
			}
		})
	}
}

func TestDispatchStripsMessageForFixedCategories(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{}
	c := newTestComposer(reg)

	if _, err := c.Dispatch(context.Background(), models.AlertLightsLeftOn, "ignored"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := reg.dispatched[0].Message; got != "" {
		t.Errorf("message = %q, want empty for a fixed category", got)
	}
}

func TestDispatchFailureNotRetried(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{notifyErr: fmt.Errorf("%w: channel down", flow.ErrNotification)}
	c := newTestComposer(reg)

	_, err := c.Dispatch(context.Background(), models.AlertSecurityConcern, "")
	if !errors.Is(err, flow.ErrNotification) {
		t.Errorf("err = %v, want flow.ErrNotification", err)
	}
	if len(reg.dispatched) != 0 {
		t.Error("failed dispatch must not be recorded or retried")
	}
}

func TestEscalateRunsPipeline(t *testing.T) {
	t.Parallel()

	c := newTestComposer(&fakeRegistry{})

	p, err := c.Escalate()
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}
	defer p.Cancel()

	// The immediate scheduler drives every stage inside Start.
	snap := p.Snapshot()
	if snap.Stage != 4 {
		t.Fatalf("stage = %d, want 4", snap.Stage)
	}
	if len(snap.Authorities) != 3 {
		t.Errorf("authority count = %d, want 3", len(snap.Authorities))
	}
	if snap.Reference == "" {
		t.Error("terminal stage must assign a reference token")
	}
}
