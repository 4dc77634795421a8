// Package alerts composes owner notifications for a scanned plate and, on
// owner non-response, escalates to the authority pipeline.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/escalation"
	"github.com/parksyde/doublepark/internal/flow"
	"github.com/parksyde/doublepark/internal/models"
	"github.com/parksyde/doublepark/internal/registry"
)

// Composer builds and dispatches one alert at a time for the plate it was
// opened against.
type Composer struct {
	plate    string
	reg      registry.Registry
	sched    escalation.Scheduler
	locator  escalation.Locator
	notifier escalation.Notifier
	cfg      escalation.Config
	logger   *zap.SugaredLogger
}

// NewComposer creates a composer for a scanned plate.
func NewComposer(plate string, reg registry.Registry, sched escalation.Scheduler,
	locator escalation.Locator, notifier escalation.Notifier,
	cfg escalation.Config, logger *zap.SugaredLogger) *Composer {
	return &Composer{
		plate:    models.NormalizePlate(plate),
		reg:      reg,
		sched:    sched,
		locator:  locator,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Dispatch validates and sends one owner notification. A custom alert
// needs a non-empty body; the other categories carry their own meaning.
// Failed dispatches surface the error and are not retried.
func (c *Composer) Dispatch(ctx context.Context, category models.AlertCategory, message string) (*models.AlertAck, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown alert category %q", flow.ErrValidation, category)
	}
	message = strings.TrimSpace(message)
	if category == models.AlertCustom && message == "" {
		return nil, fmt.Errorf("%w: custom alert requires a message", flow.ErrValidation)
	}
	if category != models.AlertCustom {
		message = ""
	}

	ack, err := c.reg.Notify(ctx, models.Alert{
		Plate:    c.plate,
		Category: category,
		Message:  message,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Infow("Owner notified", "plate", c.plate, "category", category)
	return ack, nil
}

// Escalate starts the authority pipeline for the plate. The returned
// process is self-contained; the caller owns its Cancel.
func (c *Composer) Escalate() (*escalation.Pipeline, error) {
	p := escalation.New(c.plate, c.cfg, c.sched, c.locator, c.notifier, c.logger)
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}
