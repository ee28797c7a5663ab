package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/aggregation"
	"github.com/smukkama/matricare/internal/models"
	"github.com/smukkama/matricare/internal/timer"
)

// Phase of the driver.
type Phase int32

const (
	Idle Phase = iota
	Fetching
)

const taskID = "poll"

var (
	// ErrNoData is recorded when a cycle produced the empty snapshot.
	ErrNoData = errors.New("vitals backend returned no data")

	ErrAlreadyStarted = errors.New("poller already started")
)

type VitalsSource interface {
	Fetch(ctx context.Context) ([]models.VitalsRow, error)
}

type PatientSource interface {
	GetAll(ctx context.Context) ([]models.Patient, error)
}

type AlertEvaluator interface {
	Evaluate(ctx context.Context, patients []models.PatientRecord) ([]models.Alert, error)
}

// State is what the dashboard renders. It is replaced as a whole; readers
// never see a snapshot paired with a history from another cycle.
type State struct {
	Snapshot  models.Snapshot
	History   models.History
	Connected bool
	LastError string
	UpdatedAt time.Time
}

// Stats counts driver activity.
type Stats struct {
	Cycles   uint64
	Failures uint64
	Skipped  uint64
}

// Driver runs the periodic fetch, merge and evaluate cycle.
type Driver struct {
	vitals   VitalsSource
	patients PatientSource
	alerts   AlertEvaluator
	interval time.Duration
	logger   *zap.Logger

	phase     atomic.Int32
	state     atomic.Pointer[State]
	cycles    atomic.Uint64
	failures  atomic.Uint64
	skipped   atomic.Uint64
	mu        sync.Mutex
	scheduler *timer.Scheduler
	now       func() time.Time
}

// New creates a driver. alerts may be nil, in which case no alerts are raised.
func New(vitals VitalsSource, patients PatientSource, alerts AlertEvaluator, interval time.Duration, logger *zap.Logger) *Driver {
	d := &Driver{
		vitals:   vitals,
		patients: patients,
		alerts:   alerts,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	d.state.Store(&State{
		Snapshot: aggregation.EmptySnapshot(),
		History:  models.History{},
	})
	return d
}

// State returns the last committed state.
func (d *Driver) State() *State {
	return d.state.Load()
}

func (d *Driver) Phase() Phase {
	return Phase(d.phase.Load())
}

func (d *Driver) Stats() Stats {
	return Stats{
		Cycles:   d.cycles.Load(),
		Failures: d.failures.Load(),
		Skipped:  d.skipped.Load(),
	}
}

// FetchData runs one cycle and returns the snapshot it produced, or the
// empty snapshot when the vitals backend is unreachable or has no rows.
func (d *Driver) FetchData(ctx context.Context) models.Snapshot {
	rows, err := d.vitals.Fetch(ctx)
	if err != nil {
		d.logger.Warn("vitals fetch failed", zap.Error(err))
		return aggregation.EmptySnapshot()
	}
	if len(rows) == 0 {
		d.logger.Warn("vitals backend returned no rows")
		return aggregation.EmptySnapshot()
	}

	docs, err := d.patients.GetAll(ctx)
	if err != nil {
		d.logger.Warn("patient directory unavailable, using fallback roster", zap.Error(err))
		docs = aggregation.FallbackRoster()
	}

	records := aggregation.Merge(rows, docs)

	var alerts []models.Alert
	if d.alerts != nil {
		alerts, err = d.alerts.Evaluate(ctx, records)
		if err != nil {
			d.logger.Error("alert evaluation incomplete",
				zap.Int("alerts_kept", len(alerts)),
				zap.Error(err))
		}
	}

	return aggregation.BuildSnapshot(records, alerts, d.now())
}

// Tick runs one cycle unless another is still in flight. It reports
// whether a cycle ran.
func (d *Driver) Tick(ctx context.Context) bool {
	if !d.phase.CompareAndSwap(int32(Idle), int32(Fetching)) {
		d.skipped.Add(1)
		d.logger.Debug("previous cycle still running, tick skipped")
		return false
	}
	defer d.phase.Store(int32(Idle))

	d.cycles.Add(1)
	snap := d.FetchData(ctx)
	prev := d.state.Load()
	now := d.now()

	if snap.IsEmpty() {
		d.failures.Add(1)
		next := *prev
		next.Connected = false
		next.LastError = ErrNoData.Error()
		d.state.Store(&next)
		return true
	}

	d.state.Store(&State{
		Snapshot:  snap,
		History:   aggregation.UpdateHistory(prev.History, snap.Patients, aggregation.TimestampLabel(now)),
		Connected: true,
		UpdatedAt: now,
	})
	return true
}

// Start begins polling on a fixed cadence. The first cycle runs immediately.
// A running driver returns ErrAlreadyStarted.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduler != nil {
		return ErrAlreadyStarted
	}

	d.scheduler = timer.NewScheduler(func(id string, recovered any) {
		d.logger.Error("poll cycle panicked", zap.String("task", id), zap.Any("panic", recovered))
	})
	d.scheduler.Start()

	return d.scheduler.Every(taskID, d.interval, func() {
		cctx, cancel := context.WithTimeout(ctx, d.interval*3)
		defer cancel()
		d.Tick(cctx)
	})
}

// Stop cancels polling. A cycle already running finishes on its own.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduler == nil {
		return
	}
	d.scheduler.Cancel(taskID)
	d.scheduler.Stop()
	d.scheduler = nil
}
