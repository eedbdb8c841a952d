// Package batch drives table review across many (law, version) work
// items with bounded concurrency, durable progress, and partial-failure
// isolation.
//
// Concurrency model: a fixed-size worker pool processes items; within one
// item the extract→review→save sequence is strictly sequential. The
// progress checkpoint is the only shared mutable resource and is owned by
// a single coordinator goroutine; correction files are serialized per key
// inside the store, and no item is ever dispatched twice in one run.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/idgen"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

// Options configures a Processor.
type Options struct {
	// Workers is the worker pool size. Default: 4.
	Workers int
	// ProgressPath is where the batch checkpoint lives.
	ProgressPath string
	// Scope labels the work item selection; a checkpoint only resumes a
	// batch with the same scope.
	Scope string
	// Resume continues from an existing checkpoint, skipping items already
	// completed. When false a fresh checkpoint overwrites any prior one.
	Resume bool
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// NewID generates batch ids.
	NewID idgen.Generator
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = idgen.Prefixed("batch_", idgen.Default)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Processor runs review batches over a store, a stream source, and a
// reviewer port.
type Processor struct {
	store *corrstore.Store
	src   Source
	port  reviewer.Port
	opts  Options
}

// New creates a Processor.
func New(store *corrstore.Store, src Source, port reviewer.Port, opts Options) *Processor {
	opts.defaults()
	return &Processor{store: store, src: src, port: port, opts: opts}
}

type itemEvent struct {
	id      string
	started bool
	err     error
}

// Run processes the given work items and returns the final progress.
// Per-item failures are recorded, never propagated; the batch completes
// when every pending item has been attempted. Cancelling ctx stops
// dispatching and drains in-flight items, leaving a resumable checkpoint.
func (p *Processor) Run(ctx context.Context, items []corrstore.Key) (*Progress, error) {
	log := p.opts.Logger

	prog, err := p.openProgress(len(items))
	if err != nil {
		return nil, err
	}

	var pending []corrstore.Key
	for _, k := range items {
		if prog.Completed(k.String()) {
			continue
		}
		pending = append(pending, k)
	}
	log.Info("batch started",
		"batch_id", prog.BatchID,
		"scope", prog.Scope,
		"total", prog.TotalItems,
		"pending", len(pending),
		"workers", p.opts.Workers,
	)
	if err := prog.save(p.opts.ProgressPath, p.opts.Now()); err != nil {
		return nil, err
	}

	events := make(chan itemEvent)
	coordDone := make(chan struct{})
	go func() {
		defer close(coordDone)
		for ev := range events {
			if ev.started {
				prog.CurrentItem = ev.id
				continue
			}
			if ev.err != nil {
				prog.recordFailure(ev.id, ev.err.Error())
				log.Warn("batch item failed", "item", ev.id, "error", ev.err)
			} else {
				prog.recordSuccess(ev.id)
				log.Info("batch item completed", "item", ev.id)
			}
			if err := prog.save(p.opts.ProgressPath, p.opts.Now()); err != nil {
				log.Error("progress checkpoint failed", "error", err)
			}
		}
	}()

	sem := make(chan struct{}, p.opts.Workers)
	var wg sync.WaitGroup
dispatch:
	for _, k := range pending {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			log.Info("batch cancelled, draining in-flight items")
			break dispatch
		}
		wg.Add(1)
		go func(k corrstore.Key) {
			defer wg.Done()
			defer func() { <-sem }()
			events <- itemEvent{id: k.String(), started: true}
			events <- itemEvent{id: k.String(), err: p.processItem(ctx, k)}
		}(k)
	}
	wg.Wait()
	close(events)
	<-coordDone

	prog.CurrentItem = ""
	if ctx.Err() == nil {
		prog.Status = ProgressCompleted
	}
	if err := prog.save(p.opts.ProgressPath, p.opts.Now()); err != nil {
		return prog, err
	}
	log.Info("batch finished",
		"batch_id", prog.BatchID,
		"completed", len(prog.CompletedItemIDs),
		"failed", len(prog.FailedItemIDs),
		"status", prog.Status,
	)
	return prog, nil
}

func (p *Processor) openProgress(total int) (*Progress, error) {
	if p.opts.Resume {
		prev, err := LoadProgress(p.opts.ProgressPath)
		if err != nil {
			return nil, err
		}
		if prev != nil && prev.Scope == p.opts.Scope {
			prev.TotalItems = total
			prev.Status = ProgressRunning
			return prev, nil
		}
	}
	return newProgress(p.opts.NewID(), p.opts.Scope, total, p.opts.Now()), nil
}

// processItem runs the sequential extract→review→save cycle for one key.
func (p *Processor) processItem(ctx context.Context, k corrstore.Key) error {
	elems, err := p.src.Stream(k)
	if err != nil {
		return fmt.Errorf("load stream: %w", err)
	}
	drafts, err := tableextract.Tables(elems)
	if err != nil {
		return err
	}
	f, err := p.store.CreateOrMerge(k, drafts)
	if err != nil {
		return err
	}

	changed := false
	for _, h := range f.Hashes() {
		rec := f.Tables[h]
		if rec.Status != correction.StatusUndefined {
			continue
		}
		dec, err := p.port.Resolve(ctx, reviewer.Table{
			LawID:        k.LawID,
			Version:      k.Version,
			Hash:         h,
			Cells:        rec.OriginalStructure,
			Pages:        rec.Pages[k.Version],
			MergeTargets: mergeTargets(f, h),
		})
		if err != nil {
			return fmt.Errorf("resolve %s: %w", h, err)
		}
		if dec.Status == correction.StatusUndefined {
			continue // reviewer skipped this table
		}
		rec.Status = dec.Status
		rec.CorrectedStructure = dec.CorrectedStructure
		rec.MergedInto = dec.MergedInto
		rec.Reason = dec.Reason
		rec.HasHeader = dec.HasHeader
		changed = true
	}
	if !changed {
		return nil
	}
	return p.store.Save(k, f)
}

// mergeTargets lists the hashes a record may legally merge into: every
// other non-merged record in the same file.
func mergeTargets(f *correction.File, self string) []string {
	var targets []string
	for _, h := range f.Hashes() {
		if h == self {
			continue
		}
		if f.Tables[h].Status == correction.StatusMerged {
			continue
		}
		targets = append(targets, h)
	}
	return targets
}
