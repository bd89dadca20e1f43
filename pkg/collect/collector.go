// Package collect orchestrates a full activity collection run: it
// fans requests out across the three rate-limited pools, feeds every
// adapter's records through the aggregator, and seals the merged
// result. A run degrades rather than aborts: a failed source becomes a
// warning, and only a run where every attempted source failed is
// reported as an error.
package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/codetrail/ghactivity/pkg/activity"
	"github.com/codetrail/ghactivity/pkg/backoff"
	"github.com/codetrail/ghactivity/pkg/ghapi"
	"github.com/codetrail/ghactivity/pkg/logging"
	"github.com/codetrail/ghactivity/pkg/ratelimit"
)

// FeedRetention is how far back the Events API reaches.
const FeedRetention = 90 * 24 * time.Hour

// Config assembles a Collector.
type Config struct {
	// Client is required.
	Client *ghapi.Client

	// Tracker is optional. When nil each run gets a fresh tracker;
	// pass a shared one to gate concurrent runs against the same
	// quota.
	Tracker *ratelimit.Tracker

	// Policy defaults to backoff.DefaultPolicy().
	Policy backoff.Policy

	// Logger is optional; nil gets the package default.
	Logger *zerolog.Logger
}

// Collector runs collections. Safe for concurrent use.
type Collector struct {
	client  *ghapi.Client
	tracker *ratelimit.Tracker
	policy  backoff.Policy
	logger  zerolog.Logger
}

// New validates cfg and returns a Collector.
func New(cfg Config) (*Collector, error) {
	if cfg.Client == nil {
		return nil, errors.New("collect: client is required")
	}
	if cfg.Policy == (backoff.Policy{}) {
		cfg.Policy = backoff.DefaultPolicy()
	}
	logger := logging.NewLogger("collect")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Collector{
		client:  cfg.Client,
		tracker: cfg.Tracker,
		policy:  cfg.Policy,
		logger:  logger,
	}, nil
}

// run carries the mutable state of one collection.
type run struct {
	id      string
	subject string
	opts    Options
	logger  zerolog.Logger

	d   *dispatcher
	agg *aggregator

	// mu guards result.Warnings, result.Complete and the failure
	// counters, which adapter goroutines touch concurrently.
	mu     sync.Mutex
	result *activity.CollectionResult

	attempted int
	failed    int
}

// Collect gathers the subject's activity within opts' window.
//
// The returned result is non-nil whenever any source produced data,
// even alongside a non-nil error: a canceled context or an all-sources
// failure still yields whatever was aggregated first.
func (c *Collector) Collect(ctx context.Context, subject string, opts Options) (*activity.CollectionResult, error) {
	opts = opts.normalized(time.Now())

	r := &run{
		id:      uuid.NewString(),
		subject: subject,
		opts:    opts,
		agg:     &aggregator{},
	}
	r.logger = c.logger.With().
		Str("run_id", r.id).
		Str("subject", subject).
		Logger()

	tracker := c.tracker
	if tracker == nil {
		tracker = ratelimit.NewTracker(c.client.Authenticated(), r.logger)
	}
	r.d = &dispatcher{
		client:  c.client,
		tracker: tracker,
		policy:  c.policy,
		logger:  r.logger,
	}

	r.result = &activity.CollectionResult{
		RunID:    r.id,
		Subject:  subject,
		Timeline: make(map[activity.Category][]activity.Record),
		Complete: make(map[activity.Category]bool),
	}

	r.transition(StateIdle, StateDispatching)
	r.dispatch(ctx)

	r.transition(StateDispatching, StateAggregating)
	r.agg.seal()
	r.result.Timeline = r.agg.merge()
	r.result.Summary = activity.BuildSummary(subject, r.result.Timeline, opts.Since, opts.Until)
	r.result.Partial = len(r.result.Warnings) > 0

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.result.Partial = true
		r.transition(StateAggregating, StateFailed)
		return r.result, ctxErr
	}
	if r.attempted > 0 && r.failed == r.attempted {
		r.transition(StateAggregating, StateFailed)
		return r.result, fmt.Errorf("collect %s: all %d sources failed", subject, r.attempted)
	}

	r.transition(StateAggregating, StateDone)
	return r.result, nil
}

// dispatch runs the adapters concurrently and drains their records
// into the aggregator. Adapter failures are recorded, never returned:
// one broken source must not cancel its siblings.
func (r *run) dispatch(ctx context.Context) {
	records := make(chan activity.Record, 256)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for rec := range records {
			r.agg.append(rec)
		}
	}()
	emit := func(rec activity.Record) {
		select {
		case records <- rec:
		case <-ctx.Done():
		}
	}

	// Profile and repos ride the feed pool up front; a missing subject
	// degrades to an empty result with a warning like any other source
	// failure.
	profile, err := r.d.fetchProfile(ctx, r.subject)
	if err != nil {
		r.warn(activity.SourceFeed, err)
	} else {
		r.result.Profile = profile
	}
	if r.opts.Mode == ModeDeep {
		repos, err := r.d.fetchRepos(ctx, r.subject)
		if err != nil {
			r.warn(activity.SourceFeed, err)
		} else {
			r.result.Repos = repos
		}
	}

	feedWithinRetention := !r.opts.Since.Before(time.Now().Add(-FeedRetention))

	g, gctx := errgroup.WithContext(ctx)

	r.attempted++
	g.Go(func() error {
		adapter := &feedAdapter{d: r.d, logger: r.logger.With().Str("source", "feed").Logger()}
		maxPages := FeedMaxPages
		if r.opts.Mode == ModeQuick {
			maxPages = QuickFeedPages
		}
		exhausted, err := adapter.fetch(gctx, r.subject, r.opts.Since, r.opts.Until, maxPages, emit)
		if err != nil {
			r.fail(activity.SourceFeed, err)
			return nil
		}
		// Comments and uncategorized events come from the feed alone,
		// so their completeness is the feed's.
		feedComplete := exhausted && feedWithinRetention && r.opts.Mode != ModeQuick
		r.setComplete(activity.CategoryComments, feedComplete)
		r.setComplete(activity.CategoryOther, feedComplete)

		if r.opts.Mode == ModeDeep {
			for i, repo := range r.result.Repos {
				if i >= r.opts.MaxRepos {
					break
				}
				if err := adapter.listRepoCommits(gctx, r.subject, repo.FullName, r.opts.Since, r.opts.Until, emit); err != nil {
					r.warn(activity.SourceFeed, err)
					break
				}
			}
		}
		return nil
	})

	if r.opts.Mode != ModeQuick {
		r.attempted++
		g.Go(func() error {
			adapter := &searchAdapter{d: r.d, logger: r.logger.With().Str("source", "search").Logger()}
			complete, err := adapter.fetch(gctx, r.subject, r.opts.Since, r.opts.Until, emit)
			for cat, full := range complete {
				r.setComplete(cat, full)
			}
			if err != nil {
				r.fail(activity.SourceSearch, err)
			}
			return nil
		})

		r.attempted++
		g.Go(func() error {
			adapter := &graphAdapter{d: r.d, logger: r.logger.With().Str("source", "graph").Logger()}
			stats, err := adapter.fetch(gctx, r.subject, r.opts.Since, r.opts.Until)
			if err != nil {
				r.fail(activity.SourceGraph, err)
				return nil
			}
			r.result.Contributions = stats
			return nil
		})
	}

	_ = g.Wait()
	close(records)
	<-drained
}

// warn records a degradation without counting the source as failed.
func (r *run) warn(source activity.Source, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Warnings = append(r.result.Warnings, activity.Warning{
		Source:  source,
		Code:    string(ghapi.ClassOf(err)),
		Message: err.Error(),
	})
	r.logger.Warn().
		Str("source", string(source)).
		Str("code", string(ghapi.ClassOf(err))).
		Err(err).
		Msg("source degraded")
}

// fail records an adapter-wide failure.
func (r *run) fail(source activity.Source, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
	sourceFailuresTotal.WithLabelValues(string(source)).Inc()
	r.warn(source, err)
}

// setComplete ANDs a completeness verdict into the category flag.
func (r *run) setComplete(cat activity.Category, full bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.result.Complete[cat]; ok {
		r.result.Complete[cat] = prev && full
	} else {
		r.result.Complete[cat] = full
	}
}

func (r *run) transition(from, to RunState) {
	r.logger.Debug().
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("run state transition")
	if to == StateDone || to == StateFailed {
		runsTotal.WithLabelValues(string(to)).Inc()
	}
}
