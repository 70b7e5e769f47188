package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinicsched/internal/config"
	"clinicsched/internal/gcal"
	"clinicsched/internal/ics"
	appLog "clinicsched/internal/log"
	"clinicsched/internal/model"
	"clinicsched/internal/timeparse"
)

// Snapshot is the outcome of one refresh: the seeds that were loaded and
// their expansion over the configured horizon.
type Snapshot struct {
	Appointments []model.Appointment
	Result       ics.ExpandResult
	RangeStart   time.Time
	RangeEnd     time.Time
	Location     *time.Location
	RefreshedAt  time.Time
	Push         *gcal.PushResult
}

// Pipeline gathers seed appointments (config plus ICS feeds), expands them
// and optionally pushes configured appointments to Google Calendar.
type Pipeline struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	syncer  *gcal.Syncer
	now     func() time.Time

	mu        sync.RWMutex
	last      *Snapshot
	listeners []func(*Snapshot)
}

// NewPipeline builds a pipeline. syncer may be nil to disable the push.
func NewPipeline(cfg *config.Config, fetcher *ics.Fetcher, syncer *gcal.Syncer) *Pipeline {
	if fetcher == nil {
		fetcher = ics.NewFetcher(cfg.CacheDir)
	}
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		syncer:  syncer,
		now:     time.Now,
	}
}

// OnRefresh registers fn to run after every successful refresh.
func (p *Pipeline) OnRefresh(fn func(*Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Location is the display timezone, falling back to time.Local.
func (p *Pipeline) Location() *time.Location {
	loc, err := p.cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", p.cfg.Timezone)
	}
	return loc
}

// Appointments loads configured appointments and every ICS feed. Feed
// failures are logged and skipped; an invalid configured appointment is an
// error.
func (p *Pipeline) Appointments(ctx context.Context) ([]model.Appointment, error) {
	appts, err := p.cfg.LocalAppointments(p.Location())
	if err != nil {
		return nil, err
	}

	sources := ics.SourcesFromConfig(p.cfg.ICS)
	if len(sources) == 0 {
		return appts, nil
	}

	results, errs := p.fetcher.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Error("one or more ICS fetches failed", errors.Join(errs...), "error_count", len(errs))
	}
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("parse failed for source", err, "id", res.Source.ID)
			continue
		}
		appts = append(appts, parsed...)
	}
	return appts, nil
}

// Expand loads every appointment and expands it over [start, end).
func (p *Pipeline) Expand(ctx context.Context, start, end time.Time) (ics.ExpandResult, error) {
	appts, err := p.Appointments(ctx)
	if err != nil {
		return ics.ExpandResult{}, err
	}
	return p.expand(appts, start, end)
}

func (p *Pipeline) expand(appts []model.Appointment, start, end time.Time) (ics.ExpandResult, error) {
	return ics.ExpandAppointments(appts, ics.ExpandConfig{
		DisplayLocation: p.Location(),
		RangeStart:      start,
		RangeEnd:        end,
		MaxIterations:   p.cfg.MaxIterations,
	})
}

// Horizon returns the default window: today's midnight plus HorizonDays.
func (p *Pipeline) Horizon() (time.Time, time.Time) {
	start := timeparse.StartOfDay(p.now().In(p.Location()))
	return start, start.AddDate(0, 0, p.cfg.HorizonDays)
}

// Refresh runs one full cycle and publishes the snapshot.
func (p *Pipeline) Refresh(ctx context.Context) (*Snapshot, error) {
	started := p.now()

	appts, err := p.Appointments(ctx)
	if err != nil {
		return nil, err
	}

	start, end := p.Horizon()
	res, err := p.expand(appts, start, end)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Appointments: appts,
		Result:       res,
		RangeStart:   start,
		RangeEnd:     end,
		Location:     p.Location(),
		RefreshedAt:  p.now(),
	}

	if p.syncer != nil {
		local := make([]model.Appointment, 0, len(appts))
		for _, a := range appts {
			if a.SourceID == config.LocalSourceID {
				local = append(local, a)
			}
		}
		push, perr := p.syncer.Push(ctx, local)
		if perr != nil {
			appLog.Error("google push had failures", perr, "failed", push.Failed)
		}
		snap.Push = &push
	}

	p.mu.Lock()
	p.last = snap
	listeners := append([]func(*Snapshot){}, p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}

	appLog.Info("refresh completed",
		"appointments", len(appts),
		"occurrences", len(res.Occurrences),
		"truncated", len(res.TruncatedEvents),
		"fallback", len(res.FallbackEvents),
		"elapsed", p.now().Sub(started).String(),
	)
	return snap, nil
}

// Latest returns the most recent snapshot, or nil before the first refresh.
func (p *Pipeline) Latest() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}
