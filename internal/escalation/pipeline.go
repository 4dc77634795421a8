// Package escalation runs the staged third-party-authority notification
// pipeline: locate the requester, survey nearby authorities, notify the
// first-ranked one, and hand the user a reference token. Progression is
// strictly forward; a stage is never skipped and never revisited.
package escalation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/parksyde/doublepark/internal/models"
)

// Pipeline stages, in order. The ordinal of each is fixed: Snapshot.Stage
// reports 0 for pending through 4 for notified.
const (
	StagePending             = "pending"
	StageLocatingRequester   = "locating_requester"
	StageLocatingAuthorities = "locating_authorities"
	StageNotifying           = "notifying"
	StageNotified            = "notified"
)

const (
	eventLocate   = "locate"
	eventSurvey   = "survey"
	eventNotify   = "notify"
	eventComplete = "complete"
)

var stageOrdinals = map[string]int{
	StagePending:             0,
	StageLocatingRequester:   1,
	StageLocatingAuthorities: 2,
	StageNotifying:           3,
	StageNotified:            4,
}

// Location is the requester's position from the geolocation capability.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Locator is the external geolocation and nearest-authority capability.
type Locator interface {
	Locate(ctx context.Context) (Location, error)
	NearbyAuthorities(ctx context.Context, loc Location) ([]models.Authority, error)
}

// Notifier dispatches the escalation to one authority.
type Notifier interface {
	NotifyAuthority(ctx context.Context, authority models.Authority, plate string) error
}

// Config tunes the pipeline. The zero value gets defaults.
type Config struct {
	// StageDelay is the fixed delay before each automatic stage
	// advance. Defaults to 2 seconds, the reference cadence.
	StageDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.StageDelay <= 0 {
		c.StageDelay = 2 * time.Second
	}
	return c
}

// Snapshot is the read-only pipeline view for the presentation layer.
type Snapshot struct {
	Stage       int
	StageName   string
	Authorities []models.Authority
	Reference   string
	Arrival     string
	Err         error
}

// Pipeline is one escalation process. Independent processes evolve
// independently; each owns its timers and is torn down by Cancel.
type Pipeline struct {
	id       uuid.UUID
	plate    string
	cfg      Config
	sched    Scheduler
	locator  Locator
	notifier Notifier
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	fsm         *fsm.FSM
	pendingStop func()
	authorities []models.Authority
	location    Location
	reference   string
	arrival     string
	err         error
	started     bool
	canceled    bool
}

// New creates a pipeline for the scanned plate. Nothing runs until Start.
func New(plate string, cfg Config, sched Scheduler, locator Locator, notifier Notifier, logger *zap.SugaredLogger) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		id:       uuid.New(),
		plate:    models.NormalizePlate(plate),
		cfg:      cfg.withDefaults(),
		sched:    sched,
		locator:  locator,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	p.fsm = fsm.NewFSM(
		StagePending,
		fsm.Events{
			{Name: eventLocate, Src: []string{StagePending}, Dst: StageLocatingRequester},
			{Name: eventSurvey, Src: []string{StageLocatingRequester}, Dst: StageLocatingAuthorities},
			{Name: eventNotify, Src: []string{StageLocatingAuthorities}, Dst: StageNotifying},
			{Name: eventComplete, Src: []string{StageNotifying}, Dst: StageNotified},
		},
		fsm.Callbacks{},
	)
	return p
}

// ID identifies this escalation process.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// Start enters the first stage. Calling Start twice is an error.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.canceled {
		p.mu.Unlock()
		return context.Canceled
	}
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("escalation already started")
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Infow("Escalation started", "escalation_id", p.id, "plate", p.plate)
	p.advance(eventLocate)
	return nil
}

// Cancel tears the process down. Pending stage timers are invalidated and
// in-flight capability calls are canceled; no transition fires afterward.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	p.canceled = true
	if p.pendingStop != nil {
		p.pendingStop()
		p.pendingStop = nil
	}
	p.mu.Unlock()
	p.cancel()
}

// Snapshot returns the current stage, the discovered authorities in rank
// order, and the reference token once assigned.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Stage:     stageOrdinals[p.fsm.Current()],
		StageName: p.fsm.Current(),
		Reference: p.reference,
		Arrival:   p.arrival,
		Err:       p.err,
	}
	if p.authorities != nil {
		snap.Authorities = append([]models.Authority(nil), p.authorities...)
	}
	return snap
}

// advance fires one forward transition and runs the entered stage's entry
// action. On success the next advance is scheduled after the stage delay;
// on failure the pipeline halts in place with the error recorded.
func (p *Pipeline) advance(event string) {
	p.mu.Lock()
	if p.canceled {
		p.mu.Unlock()
		return
	}
	p.pendingStop = nil
	if err := p.fsm.Event(p.ctx, event); err != nil {
		p.err = fmt.Errorf("escalation transition: %w", err)
		p.mu.Unlock()
		return
	}
	stage := p.fsm.Current()
	p.mu.Unlock()

	if err := p.enter(stage); err != nil {
		p.mu.Lock()
		if !p.canceled {
			p.err = err
			p.logger.Errorw("Escalation stage failed",
				"escalation_id", p.id, "stage", stage, "error", err)
		}
		p.mu.Unlock()
		return
	}

	next, ok := nextEvent(stage)
	if !ok {
		return
	}

	p.mu.Lock()
	if p.canceled {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// Schedule outside the lock: a synchronous test scheduler may run the
	// advance inline.
	stop := p.sched.After(p.cfg.StageDelay, func() { p.advance(next) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.canceled {
		stop()
		return
	}
	p.pendingStop = stop
}

// enter runs the entry action for a stage. Results are applied only when
// the pipeline is still live.
func (p *Pipeline) enter(stage string) error {
	switch stage {
	case StageLocatingRequester:
		loc, err := p.locator.Locate(p.ctx)
		if err != nil {
			return fmt.Errorf("locate requester: %w", err)
		}
		p.mu.Lock()
		if !p.canceled {
			p.location = loc
		}
		p.mu.Unlock()
		return nil

	case StageLocatingAuthorities:
		p.mu.Lock()
		loc := p.location
		p.mu.Unlock()

		authorities, err := p.locator.NearbyAuthorities(p.ctx, loc)
		if err != nil {
			return fmt.Errorf("locate authorities: %w", err)
		}
		if len(authorities) == 0 {
			return fmt.Errorf("locate authorities: none nearby")
		}
		p.mu.Lock()
		// Populated once, immutable afterward.
		if !p.canceled && p.authorities == nil {
			p.authorities = authorities
		}
		p.mu.Unlock()
		return nil

	case StageNotifying:
		p.mu.Lock()
		first := p.authorities[0]
		p.mu.Unlock()

		if err := p.notifier.NotifyAuthority(p.ctx, first, p.plate); err != nil {
			return fmt.Errorf("notify %s: %w", first.Name, err)
		}
		return nil

	case StageNotified:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.canceled {
			return nil
		}
		if p.reference == "" {
			p.reference = newReference()
			p.arrival = "10-15 minutes"
		}
		p.logger.Infow("Authorities notified",
			"escalation_id", p.id,
			"plate", p.plate,
			"reference", p.reference,
		)
		return nil
	}
	return nil
}

func nextEvent(stage string) (string, bool) {
	switch stage {
	case StageLocatingRequester:
		return eventSurvey, true
	case StageLocatingAuthorities:
		return eventNotify, true
	case StageNotifying:
		return eventComplete, true
	}
	return "", false
}

// newReference generates the human-presentable token: "ESC-" plus six
// decimal digits.
func newReference() string {
	return fmt.Sprintf("ESC-%06d", 100000+rand.Intn(900000))
}
