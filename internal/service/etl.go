// Package service runs the ETL: records are resolved strictly one at a time
// in input order, results are persisted per record, and cache and progress
// are committed at bounded intervals so an interrupted run loses at most one
// commit window of work.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledax/geoetl/internal/geocache"
	"github.com/ledax/geoetl/internal/intervention"
	"github.com/ledax/geoetl/internal/metrics"
	"github.com/ledax/geoetl/internal/models"
	"github.com/ledax/geoetl/internal/repository"
	"github.com/ledax/geoetl/internal/resolver"
)

// transientBackoff is how long the loop pauses after a remote source failed
// transiently, to avoid hammering a failing service.
const transientBackoff = 2 * time.Second

// RecordResolver resolves one record. Satisfied by resolver.Resolver;
// narrowed to an interface so tests can script outcomes.
type RecordResolver interface {
	Resolve(ctx context.Context, record models.AddressRecord) resolver.Outcome
}

// ETLService drives record resolution, operator fallback, persistence and
// periodic commits.
type ETLService struct {
	log        *slog.Logger         // Logger for logging service activities
	repo       repository.Interface // Interface for data repository access
	resolver   RecordResolver       // Resolution engine
	operator   intervention.Handler // Operator fallback, consulted on low confidence
	cache      *geocache.Cache      // Persistent geocache, flushed at commit boundaries
	metrics    *metrics.Metrics     // Metrics for tracking service performance
	flushEvery int                  // Records between commits
	sleep      func(time.Duration)  // Injectable pause, for tests
}

// NewETLService creates a new instance of ETLService.
func NewETLService(
	log *slog.Logger,
	repo repository.Interface,
	recordResolver RecordResolver,
	operator intervention.Handler,
	cache *geocache.Cache,
	appMetrics *metrics.Metrics,
	flushEvery int,
) *ETLService {
	return &ETLService{
		log:        log,
		repo:       repo,
		resolver:   recordResolver,
		operator:   operator,
		cache:      cache,
		metrics:    appMetrics,
		flushEvery: flushEvery,
		sleep:      time.Sleep,
	}
}

// Run processes the records sequentially. A single record's failure never
// aborts the run; cancellation is honored between records only, keeping
// already-committed partial results.
func (es *ETLService) Run(ctx context.Context, records []models.AddressRecord) error {
	if err := es.repo.EnsureSchema(ctx); err != nil {
		return err
	}

	es.log.InfoContext(ctx, "ETL started", "records", len(records), "flush_every", es.flushEvery)

	var resolved, unresolved, interventions int

	for idx, record := range records {
		if ctx.Err() != nil {
			es.log.WarnContext(ctx, "Run interrupted, partial results are committed",
				"processed", idx, "total", len(records))
			break
		}

		result, intervened := es.processRecord(ctx, record)
		if intervened {
			interventions++
		}
		if result.Resolved {
			resolved++
		} else {
			unresolved++
		}

		es.persist(ctx, record, result)

		if (idx+1)%es.flushEvery == 0 {
			es.commit(ctx)
		}
	}

	es.commit(ctx)

	total, err := es.repo.CountLocations(ctx)
	if err != nil {
		es.log.WarnContext(ctx, "Failed to count persisted locations", "error", err)
	}

	es.log.InfoContext(ctx, "ETL finished",
		"resolved", resolved,
		"unresolved", unresolved,
		"interventions", interventions,
		"persisted_total", total,
	)

	return nil
}

// processRecord runs the automatic stages and, when they give up, the
// operator fallback. intervened reports whether the operator was consulted.
func (es *ETLService) processRecord(
	ctx context.Context,
	record models.AddressRecord,
) (models.ResolutionResult, bool) {
	startTime := time.Now()
	outcome := es.resolver.Resolve(ctx, record)
	es.metrics.RequestSeconds.WithLabelValues(outcomeLabel(outcome)).Observe(time.Since(startTime).Seconds())

	if outcome.TransientFailure {
		es.metrics.APIErrors.Inc()
		es.log.WarnContext(ctx, "Transient source failure, backing off", "label", record.Label)
		es.sleep(transientBackoff)
	}

	if !outcome.NeedsIntervention {
		es.metrics.RecordsProcessed.WithLabelValues("resolved").Inc()
		return outcome.Result, false
	}

	if es.operator == nil {
		es.metrics.RecordsProcessed.WithLabelValues(string(outcome.Reason)).Inc()
		return outcome.Result, false
	}

	result, err := es.operator.Resolve(ctx, intervention.Request{
		Record:         record,
		Best:           outcome.Best,
		BestDistanceKm: outcome.BestDistanceKm,
		Reason:         outcome.Reason,
	})
	if err != nil {
		es.log.ErrorContext(ctx, "Operator input failed, recording record as skipped",
			"label", record.Label, "error", err)
		result = models.UnresolvedResult(models.ReasonSkippedByOperator)
	}

	if result.Resolved {
		es.metrics.Interventions.WithLabelValues("resolved").Inc()
		es.metrics.RecordsProcessed.WithLabelValues("resolved").Inc()
	} else {
		es.metrics.Interventions.WithLabelValues("skipped").Inc()
		es.metrics.RecordsProcessed.WithLabelValues(string(result.Reason)).Inc()
	}

	return result, true
}

// persist writes one record's outcome. Persistence failures are logged and
// swallowed; the next record must still be processed.
func (es *ETLService) persist(ctx context.Context, record models.AddressRecord, result models.ResolutionResult) {
	location := models.Location{
		Name:            record.Label,
		Network:         record.Network,
		OriginalAddress: record.Address,
		PostalCode:      record.PostalCode,
		City:            record.City,
		State:           record.State,
	}

	if result.Resolved {
		lat, lon := result.Coordinate.Latitude, result.Coordinate.Longitude
		location.Provenance = result.Provenance
		location.Latitude = &lat
		location.Longitude = &lon
	} else {
		location.Provenance = string(result.Reason)
	}

	if err := es.repo.InsertLocation(ctx, location); err != nil {
		es.log.ErrorContext(ctx, "Failed to persist location", "label", record.Label, "error", err)
	}
}

// commit flushes the cache to disk and updates the cache gauge.
func (es *ETLService) commit(ctx context.Context) {
	if err := es.cache.Flush(); err != nil {
		es.log.ErrorContext(ctx, "Failed to flush geocache", "error", err)
	}
	es.metrics.CacheEntries.Set(float64(es.cache.Len()))
}

func outcomeLabel(outcome resolver.Outcome) string {
	if outcome.Result.Resolved {
		return "resolved"
	}
	if outcome.NeedsIntervention {
		return "needs_intervention"
	}
	return string(outcome.Result.Reason)
}
