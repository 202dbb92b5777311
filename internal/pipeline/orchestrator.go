package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/ppiankov/casecrawl/internal/auth"
	"github.com/ppiankov/casecrawl/internal/checkpoint"
	"github.com/ppiankov/casecrawl/internal/extract"
	"github.com/ppiankov/casecrawl/internal/listing"
	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
	"github.com/ppiankov/casecrawl/internal/util"
	"github.com/ppiankov/casecrawl/internal/worker"
)

// RunState is the position of a run
type RunState string

const (
	RunInit           RunState = "INIT"
	RunAuthenticating RunState = "AUTHENTICATING"
	RunListing        RunState = "LISTING"
	RunProcessing     RunState = "PROCESSING"
	RunDone           RunState = "DONE"
	RunAborted        RunState = "ABORTED"
	RunInterrupted    RunState = "INTERRUPTED"
)

// ItemState is the position of one item in processing
type ItemState string

const (
	ItemPending    ItemState = "PENDING"
	ItemFetching   ItemState = "FETCHING"
	ItemExtracting ItemState = "EXTRACTING"
	ItemPersisting ItemState = "PERSISTING"
	ItemCommitted  ItemState = "COMMITTED"
	ItemFailed     ItemState = "FAILED"
)

const defaultItemDelay = 2 * time.Second

// Authenticator logs the session in
type Authenticator interface {
	Login(ctx context.Context, username, password string, solver auth.Solver) error
}

// Sink persists one extracted record
type Sink interface {
	Write(record *model.DetailRecord, occurrence int) (string, error)
}

// ItemsWriter is implemented by sinks that keep a snapshot of the enumerated items
type ItemsWriter interface {
	WriteItems(items []model.ListItem) (string, error)
}

// Config holds the run parameters that are not components
type Config struct {
	Portal    string
	Username  string
	Password  string
	Solver    auth.Solver
	ItemDelay time.Duration // zero means the default pause; negative disables it
	OnlyIDs   []string      // restricts the run to these identifiers when set
}

// Orchestrator drives one run: login, enumeration, then every pending item in order.
// Item failures are recorded and never stop the run; login and enumeration failures do.
type Orchestrator struct {
	session   *session.Session
	auth      Authenticator
	lister    listing.Lister
	extractor *extract.Extractor
	sink      Sink
	store     checkpoint.Store
	robots    *util.RobotsChecker
	cfg       Config

	state RunState
	pause func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an orchestrator. A nil store processes every item and remembers nothing.
func New(s *session.Session, a Authenticator, l listing.Lister, e *extract.Extractor, sink Sink, store checkpoint.Store, cfg Config) *Orchestrator {
	if store == nil {
		store = checkpoint.NopStore{}
	}
	switch {
	case cfg.ItemDelay == 0:
		cfg.ItemDelay = defaultItemDelay
	case cfg.ItemDelay < 0:
		cfg.ItemDelay = 0
	}

	return &Orchestrator{
		session:   s,
		auth:      a,
		lister:    l,
		extractor: e,
		sink:      sink,
		store:     store,
		cfg:       cfg,
		state:     RunInit,
		pause:     worker.Pause,
		now:       time.Now,
	}
}

// WithRobots makes the run honor robots.txt allow rules and crawl delays
func (o *Orchestrator) WithRobots(r *util.RobotsChecker) *Orchestrator {
	o.robots = r
	return o
}

// State returns the run state
func (o *Orchestrator) State() RunState {
	return o.state
}

// Run executes the run. The summary is returned even when the run stops early.
func (o *Orchestrator) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		Portal:    o.cfg.Portal,
		StartedAt: o.now(),
		Failed:    []string{},
		Failures:  []model.Failure{},
	}
	finish := func(state RunState) {
		o.state = state
		summary.FinishedAt = o.now()
	}

	log.Info().Str("run", summary.RunID).Str("portal", o.cfg.Portal).Msg("run started")

	if err := o.store.Load(); err != nil {
		finish(RunAborted)
		return summary, fmt.Errorf("load checkpoint: %w", err)
	}

	if o.auth != nil {
		o.state = RunAuthenticating
		if err := o.auth.Login(ctx, o.cfg.Username, o.cfg.Password, o.cfg.Solver); err != nil {
			finish(RunAborted)
			return summary, fmt.Errorf("authenticate: %w", err)
		}
	}

	o.state = RunListing
	items, err := listing.Enumerate(ctx, o.lister)
	if err != nil {
		if ctx.Err() != nil {
			summary.Interrupted = true
			finish(RunInterrupted)
			return summary, fmt.Errorf("enumerate: %w", ctx.Err())
		}
		finish(RunAborted)
		return summary, fmt.Errorf("enumerate: %w", err)
	}

	items = filterIDs(items, o.cfg.OnlyIDs)
	if w, ok := o.sink.(ItemsWriter); ok {
		if path, err := w.WriteItems(items); err != nil {
			log.Warn().Err(err).Msg("item snapshot not written")
		} else {
			log.Debug().Str("path", path).Int("items", len(items)).Msg("item snapshot written")
		}
	}

	pending := WorkSet(items, o.store)
	isPending := make(map[int]bool, len(pending))
	for _, i := range pending {
		isPending[i] = true
	}

	summary.Total = len(items)
	summary.Skipped = len(items) - len(pending)
	log.Info().Int("items", len(items)).Int("pending", len(pending)).Int("completed", summary.Skipped).Msg("work set computed")

	o.state = RunProcessing
	done := 0
	for i, item := range items {
		if !isPending[i] {
			summary.Statuses = append(summary.Statuses, model.ItemStatus{ID: item.ID, Success: true, Skipped: true})
			continue
		}
		done++

		id := item.ID
		if !item.Actionable() {
			id = fmt.Sprintf("item_%d", i+1)
		}
		log.Info().Msgf("[%d/%d] processing %s", done, len(pending), id)

		state, delay, err := o.processItem(ctx, item)
		if err != nil && ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		if err != nil {
			log.Warn().Str("id", id).Str("state", string(state)).Err(err).Msg("item failed")
			summary.Failed = append(summary.Failed, id)
			summary.Failures = append(summary.Failures, model.Failure{ID: id, Reason: err.Error()})
			summary.Statuses = append(summary.Statuses, model.ItemStatus{ID: id, Success: false})
		} else {
			log.Info().Str("id", id).Msg("item committed")
			summary.Succeeded++
			summary.Statuses = append(summary.Statuses, model.ItemStatus{ID: id, Success: true})
		}

		if err := o.pause(ctx, delay); err != nil {
			summary.Interrupted = true
			break
		}
	}

	if summary.Interrupted {
		finish(RunInterrupted)
		log.Warn().Int("succeeded", summary.Succeeded).Msg("run interrupted")
		return summary, fmt.Errorf("run interrupted: %w", ctx.Err())
	}

	finish(RunDone)
	log.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.FailedCount()).
		Int("skipped", summary.Skipped).
		Msg("run finished")
	return summary, nil
}

// processItem moves one item from PENDING to COMMITTED or FAILED.
// It returns the state reached, the delay to wait before the next item and the failure.
func (o *Orchestrator) processItem(ctx context.Context, item model.ListItem) (ItemState, time.Duration, error) {
	delay := o.cfg.ItemDelay

	if !item.Actionable() {
		return ItemFailed, delay, errors.New("missing identifier")
	}
	if len(item.DetailURLs) == 0 {
		return ItemFailed, delay, errors.New("no detail url")
	}
	detailURL := item.DetailURLs[0]

	if o.robots != nil {
		allowed, crawlDelay, err := o.robots.CanFetch(ctx, detailURL)
		if err == nil && !allowed {
			return ItemFailed, delay, errors.New("detail page disallowed by robots.txt")
		}
		if crawlDelay > delay {
			delay = crawlDelay
		}
	}

	resp, err := o.session.Fetch(ctx, session.Request{URL: detailURL, Cacheable: true})
	if err != nil {
		return ItemFetching, delay, fmt.Errorf("fetch detail: %w", err)
	}

	// Only a committed item may leave its document in the cache
	committed := false
	defer func() {
		if !committed {
			o.session.Evict(detailURL)
		}
	}()

	sections, err := o.extractor.ExtractHTML(resp.Text())
	if err != nil {
		return ItemExtracting, delay, err
	}

	record := &model.DetailRecord{
		ID:        item.ID,
		URL:       detailURL,
		Sections:  sections,
		BasicInfo: item.Fields,
		FetchedAt: o.now().UTC(),
	}

	dir, err := o.sink.Write(record, item.Occurrence)
	if err != nil {
		return ItemPersisting, delay, fmt.Errorf("persist: %w", err)
	}

	if err := o.store.Commit(item.ID); err != nil {
		return ItemPersisting, delay, fmt.Errorf("checkpoint: %w", err)
	}

	committed = true
	log.Debug().Str("id", item.ID).Str("dir", dir).Int("sections", len(sections)).Int("tables", sections.TableCount()).Msg("record saved")
	return ItemCommitted, delay, nil
}

// WorkSet returns the indexes of items that still need processing: every item
// whose identifier the store has not completed. Items without an identifier stay
// in the set so their failure is reported.
func WorkSet(items []model.ListItem, store checkpoint.Store) []int {
	var pending []int
	for i, item := range items {
		if item.Actionable() && store.Completed(item.ID) {
			continue
		}
		pending = append(pending, i)
	}
	return pending
}

func filterIDs(items []model.ListItem, only []string) []model.ListItem {
	if len(only) == 0 {
		return items
	}
	keep := make(map[string]bool, len(only))
	for _, id := range only {
		keep[id] = true
	}

	var out []model.ListItem
	for _, item := range items {
		if keep[item.ID] {
			out = append(out, item)
		}
	}
	return out
}
