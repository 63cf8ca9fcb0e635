package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sublet-scraper/models"
	"sublet-scraper/notify"
	"sublet-scraper/scraper"
	"sublet-scraper/storage"
	"sublet-scraper/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Collector produces every listing of one source.
type Collector interface {
	Collect(ctx context.Context, src scraper.Source) (models.SourceResult, error)
}

// SeenStore is the part of storage.Store a run needs.
type SeenStore interface {
	EnsureSchema(ctx context.Context) error
	Exists(ctx context.Context, url string) (bool, error)
	Record(ctx context.Context, url string, firstSeen time.Time) error
	All(ctx context.Context) ([]models.SeenEntry, error)
}

// Exporter receives the whole seen set after a run.
type Exporter interface {
	Write(entries []models.SeenEntry) error
}

type DiscoveryConfig struct {
	NotifyDelay  time.Duration
	NotifyJitter time.Duration
	// Exporter is optional.
	Exporter Exporter
}

// Candidate is one listing URL in merged run order.
type Candidate struct {
	Source string
	URL    string
}

// Discovery runs the whole pipeline: collect every source, then notify about
// and record each URL the store has not seen yet.
type Discovery struct {
	sources   []scraper.Source
	collector Collector
	store     SeenStore
	notifier  notify.Notifier
	delayer   *utils.Delayer
	cfg       DiscoveryConfig
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.Mutex
	last *RunStatus
}

func NewDiscovery(
	sources []scraper.Source,
	collector Collector,
	store SeenStore,
	notifier notify.Notifier,
	delayer *utils.Delayer,
	cfg DiscoveryConfig,
	logger *zap.Logger,
) *Discovery {
	if delayer == nil {
		delayer = utils.NewDelayer(nil)
	}
	return &Discovery{
		sources:   sources,
		collector: collector,
		store:     store,
		notifier:  notifier,
		delayer:   delayer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Merge flattens per-source results into one list, keeping source order and
// page order. Repeated URLs are kept; the store filters them.
func Merge(results []models.SourceResult) []Candidate {
	var n int
	for _, r := range results {
		n += len(r.Listings)
	}

	candidates := make([]Candidate, 0, n)
	for _, r := range results {
		for _, l := range r.Listings {
			candidates = append(candidates, Candidate{Source: r.Source, URL: l.URL})
		}
	}
	return candidates
}

// Run performs one discovery pass. The returned Report is filled as far as
// the run got, also when an error is returned.
func (d *Discovery) Run(ctx context.Context) (report Report, err error) {
	report = Report{RunID: uuid.NewString(), StartedAt: d.now()}
	logger := d.logger.With(zap.String("run_id", report.RunID))

	defer func() {
		report.FinishedAt = d.now()
		d.setLast(report, err)
	}()

	logger.Info("Run started", zap.Int("sources", len(d.sources)))

	if err := d.store.EnsureSchema(ctx); err != nil {
		return report, err
	}

	results := make([]models.SourceResult, 0, len(d.sources))
	index := make(map[string]int, len(d.sources))
	for _, src := range d.sources {
		res, err := d.collector.Collect(ctx, src)
		index[src.Name()] = len(report.Sources)
		report.Sources = append(report.Sources, SourceReport{Source: src.Name(), Pages: res.Pages})
		if err != nil {
			return report, fmt.Errorf("collect %s: %w", src.Name(), err)
		}
		results = append(results, res)
	}

	for _, c := range Merge(results) {
		sr := &report.Sources[index[c.Source]]
		sr.Candidates++

		fresh, err := d.process(ctx, c, logger)
		if fresh {
			sr.New++
		} else if err == nil {
			sr.Seen++
		}
		if err != nil {
			return report, err
		}
	}

	d.export(ctx, logger)

	logger.Info("Run finished",
		zap.Int("candidates", report.TotalCandidates()),
		zap.Int("new", report.TotalNew()))
	return report, nil
}

// process handles one candidate and reports whether it was new.
func (d *Discovery) process(ctx context.Context, c Candidate, logger *zap.Logger) (bool, error) {
	seen, err := d.store.Exists(ctx, c.URL)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}

	// record only after a successful notification
	if err := d.notifier.Notify(ctx, c.URL); err != nil {
		return false, err
	}
	logger.Info("New listing", zap.String("source", c.Source), zap.String("url", c.URL))

	if err := d.store.Record(ctx, c.URL, d.now()); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return false, err
		}
		logger.Debug("Listing recorded concurrently", zap.String("url", c.URL))
	}

	if err := d.delayer.Wait(ctx, d.cfg.NotifyDelay, d.cfg.NotifyDelay+d.cfg.NotifyJitter); err != nil {
		return true, err
	}
	return true, nil
}

func (d *Discovery) export(ctx context.Context, logger *zap.Logger) {
	if d.cfg.Exporter == nil {
		return
	}
	entries, err := d.store.All(ctx)
	if err == nil {
		err = d.cfg.Exporter.Write(entries)
	}
	if err != nil {
		logger.Warn("Export of seen listings failed", zap.Error(err))
		return
	}
	logger.Debug("Seen listings exported", zap.Int("entries", len(entries)))
}

// RunStatus is the outcome of the most recent run.
type RunStatus struct {
	Report Report
	Error  string
}

func (s RunStatus) OK() bool { return s.Error == "" }

func (d *Discovery) setLast(report Report, err error) {
	status := RunStatus{Report: report}
	if err != nil {
		status.Error = err.Error()
	}
	d.mu.Lock()
	d.last = &status
	d.mu.Unlock()
}

// LastRun returns the status of the latest finished run, if any.
func (d *Discovery) LastRun() (RunStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return RunStatus{}, false
	}
	return *d.last, true
}
