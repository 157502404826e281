// Package service orchestrates the launch pipeline: cache-first reads,
// paginated fetches, queue-bounded enrichment, persistence, and milestone
// re-checks.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/launchfeed/launchfeed/internal/cache"
	"github.com/launchfeed/launchfeed/internal/enrichment"
	"github.com/launchfeed/launchfeed/internal/launchapi"
	"github.com/launchfeed/launchfeed/internal/metrics"
	"github.com/launchfeed/launchfeed/internal/models"
	"github.com/launchfeed/launchfeed/internal/taskqueue"
)

// Fetcher is the slice of the launch API client the orchestrator consumes.
type Fetcher interface {
	FetchFirstPage(ctx context.Context) ([]models.Launch, error)
	FetchNextPage(ctx context.Context) ([]models.Launch, error)
	HasNextPage() bool
	FetchLaunch(ctx context.Context, id string) (models.Launch, error)
}

// Repository is the durable sink for merged launch records.
type Repository interface {
	Put(ctx context.Context, launch models.Launch) error
	PutAll(ctx context.Context, launches []models.Launch) error
	List(ctx context.Context) ([]models.Launch, error)
}

// Service composes fetcher, enricher, cache and repository into the two
// consumer operations.
type Service struct {
	fetcher    Fetcher
	enricher   enrichment.Enricher
	store      cache.Store
	repo       Repository // may be nil
	queue      *taskqueue.Queue
	milestones *MilestoneRegistry
	bus        *UpdateBus
	metrics    *metrics.Pipeline // may be nil
	logger     *slog.Logger

	lastGood *lastGoodList
}

// Options configures optional service collaborators.
type Options struct {
	Repository       Repository
	Metrics          *metrics.Pipeline
	MilestoneOffsets []time.Duration // nil uses T-1week, T-1day, T
}

// New creates the orchestrator.
func New(fetcher Fetcher, enricher enrichment.Enricher, store cache.Store, queue *taskqueue.Queue, logger *slog.Logger, opts Options) *Service {
	s := &Service{
		fetcher:  fetcher,
		enricher: enricher,
		store:    store,
		repo:     opts.Repository,
		queue:    queue,
		bus:      NewUpdateBus(),
		metrics:  opts.Metrics,
		logger:   logger,
		lastGood: &lastGoodList{},
	}
	s.milestones = NewMilestoneRegistry(opts.MilestoneOffsets, s.recheckLaunch, logger)
	return s
}

// Updates exposes the launch-updated event bus.
func (s *Service) Updates() *UpdateBus {
	return s.bus
}

// Stop cancels all pending milestone timers.
func (s *Service) Stop() {
	s.milestones.Stop()
}

// GetLaunches returns the first page of launches: the cached list when fresh,
// otherwise a fetched, enriched and persisted page. On a fetch error the last
// known-good list is preferred over an empty result.
func (s *Service) GetLaunches(ctx context.Context) ([]models.Launch, error) {
	if launches, ok := s.store.GetLaunches(ctx); ok {
		s.countCacheLookup("launches", true)
		s.lastGood.set(launches)
		return launches, nil
	}
	s.countCacheLookup("launches", false)

	cycle := uuid.NewString()[:8]
	s.logger.Info("fetching launch page", "cycle", cycle, "page", "first")

	page, err := s.fetcher.FetchFirstPage(ctx)
	if err != nil {
		return s.handleFetchError(ctx, cycle, err)
	}

	merged := s.enrichAll(ctx, cycle, page)
	s.persist(ctx, merged, merged)
	s.milestones.ScheduleAll(merged)
	s.lastGood.set(merged)

	s.logger.Info("fetch cycle complete", "cycle", cycle, "launches", len(merged))
	return merged, nil
}

// GetMoreLaunches fetches and returns the next page only. Without a held
// pagination cursor it returns an empty list and performs no network call.
func (s *Service) GetMoreLaunches(ctx context.Context) ([]models.Launch, error) {
	if !s.fetcher.HasNextPage() {
		return []models.Launch{}, nil
	}

	cycle := uuid.NewString()[:8]
	s.logger.Info("fetching launch page", "cycle", cycle, "page", "next")

	page, err := s.fetcher.FetchNextPage(ctx)
	if err != nil {
		if errors.Is(err, launchapi.ErrCancelled) {
			s.logger.Debug("next page fetch cancelled", "cycle", cycle)
			return nil, err
		}
		s.countFetchFailure()
		s.logger.Error("next page fetch failed", "cycle", cycle, "error", err)
		return nil, err
	}
	if len(page) == 0 {
		return []models.Launch{}, nil
	}

	newLaunches := s.enrichAll(ctx, cycle, page)

	existing, ok := s.store.GetLaunches(ctx)
	if !ok {
		existing = s.lastGood.get()
	}
	combined := mergeByID(existing, newLaunches)

	s.persist(ctx, combined, newLaunches)
	s.milestones.ScheduleAll(newLaunches)
	s.lastGood.set(combined)

	s.logger.Info("fetch cycle complete", "cycle", cycle, "launches", len(newLaunches))
	return newLaunches, nil
}

// GetLaunch returns a single launch by id, preferring the assembled list and
// falling back to a direct provider fetch merged with any cached enrichment.
func (s *Service) GetLaunch(ctx context.Context, id string) (models.Launch, error) {
	if launch, ok := s.cachedByID(ctx, id); ok {
		return launch, nil
	}

	launch, err := s.fetcher.FetchLaunch(ctx, id)
	if err != nil {
		return models.Launch{}, err
	}
	if e, ok := s.store.GetEnrichment(ctx, id); ok {
		launch = models.Merge(launch, e)
	}
	return launch, nil
}

func (s *Service) handleFetchError(ctx context.Context, cycle string, err error) ([]models.Launch, error) {
	if errors.Is(err, launchapi.ErrCancelled) {
		s.logger.Debug("fetch cancelled", "cycle", cycle)
		return nil, err
	}
	s.countFetchFailure()

	if fallback := s.lastGoodOrStored(ctx); len(fallback) > 0 {
		s.logger.Warn("fetch failed, serving last known-good list",
			"cycle", cycle,
			"launches", len(fallback),
			"error", err)
		return fallback, nil
	}

	s.logger.Error("fetch failed with no fallback available", "cycle", cycle, "error", err)
	return nil, err
}

// lastGoodOrStored prefers the in-process last known-good list and falls back
// to the durable repository, which survives restarts.
func (s *Service) lastGoodOrStored(ctx context.Context) []models.Launch {
	if launches := s.lastGood.get(); len(launches) > 0 {
		return launches
	}
	if s.repo == nil {
		return nil
	}
	launches, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn("repository fallback read failed", "error", err)
		return nil
	}
	return launches
}

// enrichAll resolves enrichment for every launch concurrently through the
// task queue. Completion order is unconstrained but the returned slice
// preserves the page order of the input; any per-launch failure degrades that
// single record to its un-enriched form.
func (s *Service) enrichAll(ctx context.Context, cycle string, launches []models.Launch) []models.Launch {
	results := make([]models.Launch, len(launches))

	g, gctx := errgroup.WithContext(ctx)
	for i, launch := range launches {
		i, launch := i, launch
		g.Go(func() error {
			results[i] = s.resolveEnrichment(gctx, cycle, launch)
			return nil
		})
	}
	g.Wait()

	if s.metrics != nil {
		stats := s.queue.Stats()
		s.metrics.SetQueueDepth(stats.Running, stats.Waiting)
	}
	return results
}

func (s *Service) resolveEnrichment(ctx context.Context, cycle string, launch models.Launch) models.Launch {
	if e, ok := s.store.GetEnrichment(ctx, launch.ID); ok {
		s.countCacheLookup("enrichment", true)
		s.countEnrichment(metrics.EnrichmentCached)
		return models.Merge(launch, e)
	}
	s.countCacheLookup("enrichment", false)

	var enriched models.Enrichment
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		e, err := s.enricher.Enrich(ctx, launch)
		if err != nil {
			return err
		}
		enriched = e
		return nil
	})
	if err != nil {
		if errors.Is(err, taskqueue.ErrQueueFull) && s.metrics != nil {
			s.metrics.QueueRejected()
		}
		s.countEnrichment(metrics.EnrichmentDegraded)
		if ctx.Err() != nil {
			s.logger.Debug("enrichment skipped", "cycle", cycle, "launch_id", launch.ID)
		} else {
			s.logger.Warn("enrichment failed, keeping provider description",
				"cycle", cycle,
				"launch_id", launch.ID,
				"error", err)
		}
		return launch
	}

	s.store.PutEnrichment(ctx, launch.ID, enriched)
	s.countEnrichment(metrics.EnrichmentFresh)
	return models.Merge(launch, enriched)
}

// persist writes the full set to the cache and the changed records to the
// durable repository. Both are best-effort: a storage failure never fails the
// fetch cycle.
func (s *Service) persist(ctx context.Context, fullSet, changed []models.Launch) {
	s.store.PutLaunches(ctx, fullSet)
	if s.repo == nil {
		return
	}
	if err := s.repo.PutAll(ctx, changed); err != nil {
		s.logger.Warn("repository write failed", "error", err)
	}
}

// recheckLaunch is the milestone wake-up: re-fetch one launch and, when its
// status, time or location moved, replace the cached record and emit an
// update event.
func (s *Service) recheckLaunch(ctx context.Context, id string) {
	if s.metrics != nil {
		s.metrics.MilestoneFired()
	}

	updated, err := s.fetcher.FetchLaunch(ctx, id)
	if err != nil {
		if errors.Is(err, launchapi.ErrCancelled) || ctx.Err() != nil {
			return
		}
		s.logger.Warn("milestone re-check fetch failed", "launch_id", id, "error", err)
		return
	}

	current, found := s.cachedByID(ctx, id)
	if found && !current.Differs(updated) {
		return
	}

	// Keep enrichment text across the replacement.
	if e, ok := s.store.GetEnrichment(ctx, id); ok {
		updated = models.Merge(updated, e)
	}

	list := s.lastGoodOrStored(ctx)
	replaced := false
	for i := range list {
		if list[i].ID == id {
			list[i] = updated
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, updated)
	}

	s.persist(ctx, list, []models.Launch{updated})
	s.lastGood.set(list)
	s.milestones.Schedule(updated)

	if s.metrics != nil {
		s.metrics.LaunchUpdated()
	}
	s.bus.Publish(id)
	s.logger.Info("launch updated by milestone re-check",
		"launch_id", id,
		"status", updated.Status)
}

func (s *Service) cachedByID(ctx context.Context, id string) (models.Launch, bool) {
	launches, ok := s.store.GetLaunches(ctx)
	if !ok {
		launches = s.lastGood.get()
	}
	for _, launch := range launches {
		if launch.ID == id {
			return launch, true
		}
	}
	return models.Launch{}, false
}

func (s *Service) countCacheLookup(kind string, hit bool) {
	if s.metrics != nil {
		s.metrics.CacheLookup(kind, hit)
	}
}

func (s *Service) countEnrichment(outcome string) {
	if s.metrics != nil {
		s.metrics.EnrichmentResult(outcome)
	}
}

func (s *Service) countFetchFailure() {
	if s.metrics != nil {
		s.metrics.FetchFailure()
	}
}

// lastGoodList holds the most recent successfully assembled list so the
// orchestrator can prefer stale data over an empty result when a fetch fails.
type lastGoodList struct {
	mu       sync.Mutex
	launches []models.Launch
}

func (l *lastGoodList) set(launches []models.Launch) {
	l.mu.Lock()
	l.launches = append([]models.Launch(nil), launches...)
	l.mu.Unlock()
}

func (l *lastGoodList) get() []models.Launch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Launch(nil), l.launches...)
}

// mergeByID merges a new page into the existing set. Existing order is kept,
// id collisions are replaced by the new entry, and novel entries append in
// page order.
func mergeByID(existing, incoming []models.Launch) []models.Launch {
	merged := append([]models.Launch(nil), existing...)
	index := make(map[string]int, len(merged))
	for i, launch := range merged {
		index[launch.ID] = i
	}
	for _, launch := range incoming {
		if i, ok := index[launch.ID]; ok {
			merged[i] = launch
			continue
		}
		index[launch.ID] = len(merged)
		merged = append(merged, launch)
	}
	return merged
}
