package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avative-pat/FiberMonitorMap/pkg/cache"
	"github.com/avative-pat/FiberMonitorMap/pkg/enrich"
	"github.com/avative-pat/FiberMonitorMap/pkg/models"
	"github.com/avative-pat/FiberMonitorMap/pkg/rules"
	"github.com/avative-pat/FiberMonitorMap/pkg/smx"
	"github.com/avative-pat/FiberMonitorMap/pkg/sonar"
)

// ErrPollInProgress is returned by RunPoll when a cycle is already
// running. Callers treat it as success: the running cycle satisfies the
// request.
var ErrPollInProgress = errors.New("poll already in progress")

// Poller owns the poll cycle: fetch active alarms, enrich them, apply
// the snapshot to the cache, evaluate the incident rules, and record the
// outcome in the poll status. Only one cycle runs at a time; overlapping
// triggers coalesce into the cycle already in flight.
type Poller struct {
	source   smx.AlarmSource
	enricher *enrich.Enricher
	cache    *cache.Cache
	engine   *rules.Engine
	interval time.Duration

	pollMu  sync.Mutex
	trigger chan struct{}

	statusMu sync.RWMutex
	status   models.PollStatus

	now func() time.Time
}

// New creates a poller over the given pipeline stages.
func New(source smx.AlarmSource, enricher *enrich.Enricher, c *cache.Cache, engine *rules.Engine, interval time.Duration) *Poller {
	return &Poller{
		source:   source,
		enricher: enricher,
		cache:    c,
		engine:   engine,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Start runs the poll loop until ctx is cancelled: one immediate cycle,
// then one per interval tick or manual trigger. An in-flight cycle
// finishes its apply before Start returns.
func (p *Poller) Start(ctx context.Context) {
	p.statusMu.Lock()
	p.status.IsPolling = true
	p.statusMu.Unlock()

	logrus.Infof("Starting poll loop with interval %s", p.interval)

	if err := p.RunPoll(ctx); err != nil && !errors.Is(err, ErrPollInProgress) {
		logrus.Errorf("Initial poll failed: %v", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.statusMu.Lock()
			p.status.IsPolling = false
			p.statusMu.Unlock()
			logrus.Info("Poll loop stopped")
			return
		case <-ticker.C:
		case <-p.trigger:
		}

		if err := p.RunPoll(ctx); err != nil && !errors.Is(err, ErrPollInProgress) {
			logrus.Errorf("Poll failed: %v", err)
		}
	}
}

// TriggerPoll requests an immediate cycle without blocking. When a
// trigger is already queued the request is dropped; the queued cycle
// will observe at least as fresh a state.
func (p *Poller) TriggerPoll() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// RunPoll executes one full cycle. A concurrent invocation returns
// ErrPollInProgress without waiting.
func (p *Poller) RunPoll(ctx context.Context) error {
	if !p.pollMu.TryLock() {
		return ErrPollInProgress
	}
	defer p.pollMu.Unlock()

	start := p.now().UTC()

	p.statusMu.Lock()
	p.status.LastPollStart = &start
	p.status.InProgress = true
	p.statusMu.Unlock()

	err := p.cycle(ctx)

	end := p.now().UTC()

	p.statusMu.Lock()
	p.status.LastPollEnd = &end
	p.status.InProgress = false
	p.status.PollCount++
	p.status.AlarmCount = p.cache.Count()
	if err != nil {
		p.status.LastError = err.Error()
		p.status.LastErrorKind = classifyError(err)
	} else {
		p.status.LastError = ""
		p.status.LastErrorKind = models.ErrorKindNone
	}
	p.statusMu.Unlock()

	return err
}

func (p *Poller) cycle(ctx context.Context) error {
	raw, err := p.source.FetchActiveAlarms(ctx)
	if err != nil {
		return err
	}

	logrus.Infof("Fetched %d active alarms", len(raw))

	enriched, enrichErr := p.enricher.EnrichAll(ctx, raw)

	diff, err := p.cache.Apply(ctx, enriched)
	if err != nil {
		return err
	}

	if len(diff.Created) > 0 || len(diff.Removed) > 0 {
		logrus.Debugf("Snapshot changed: created=%v removed=%v", diff.Created, diff.Removed)
	}

	p.engine.Evaluate(ctx, p.cache.GetAll(), p.now().UTC())

	// An enrichment auth failure does not block caching the degraded
	// snapshot, but it is still a cycle error for status purposes.
	return enrichErr
}

// Status returns a copy of the current poll status.
func (p *Poller) Status() models.PollStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	return p.status
}

// classifyError maps a cycle failure to an error kind. Apply only fails
// when the backing store rejects the snapshot; fetch errors split on the
// auth sentinel.
func classifyError(err error) models.ErrorKind {
	switch {
	case errors.Is(err, smx.ErrAuthFailed), errors.Is(err, sonar.ErrAuthFailed):
		return models.ErrorKindAuth
	case errors.Is(err, cache.ErrPersist):
		return models.ErrorKindStore
	default:
		return models.ErrorKindTransport
	}
}
