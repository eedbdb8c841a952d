// Package review is the top-level facade over the table correction
// lifecycle: it wires the element source, the correction store, the batch
// processor, the reporting index, and the reviewer ports behind one
// configured engine.
package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quadratecode/zhlaw-sub000/applier"
	"github.com/quadratecode/zhlaw-sub000/batch"
	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/element"
	"github.com/quadratecode/zhlaw-sub000/report"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

// Engine bundles the configured review components.
type Engine struct {
	cfg    *Config
	log    *slog.Logger
	store  *corrstore.Store
	source *FileSource
	report *report.Store
	db     *sql.DB
}

// NewEngine validates cfg, opens the reporting index, and wires the
// correction store and element source.
func NewEngine(cfg *Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("review: config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	rs, db, err := report.Open(cfg.ReportDB)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		log:    log,
		store:  corrstore.New(cfg.CorrectionsDir, corrstore.Options{Reviewer: cfg.Reviewer, Logger: log}),
		source: NewFileSource(cfg.ElementsDir),
		report: rs,
		db:     db,
	}, nil
}

// Close releases the reporting database.
func (e *Engine) Close() error { return e.db.Close() }

// Store exposes the correction store, for callers that need direct access.
func (e *Engine) Store() *corrstore.Store { return e.store }

// ExtractResult reports one extraction pass.
type ExtractResult struct {
	Processed int `json:"processed"`
	Tables    int `json:"tables"`
	// Failed maps "law/version" to the failure reason. Failures isolate:
	// one broken stream never blocks the siblings.
	Failed map[string]string `json:"failed,omitempty"`
}

// Extract runs extraction without review: every selected element stream
// is folded into its correction file, leaving review decisions untouched.
func (e *Engine) Extract(ctx context.Context, f batch.Filter) (*ExtractResult, error) {
	keys, err := batch.Enumerate(e.source, f)
	if err != nil {
		return nil, err
	}
	res := &ExtractResult{Failed: make(map[string]string)}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := e.extractOne(k)
		if err != nil {
			res.Failed[k.String()] = err.Error()
			e.log.Warn("extraction failed", "key", k.String(), "error", err)
			e.report.LogEvent(ctx, report.Event{
				Type: "extract", LawID: k.LawID, Version: k.Version,
				Details: jsonDetails(map[string]any{"error": err.Error()}),
			})
			continue
		}
		res.Processed++
		res.Tables += n
		e.report.LogEvent(ctx, report.Event{
			Type: "extract", LawID: k.LawID, Version: k.Version, Success: true,
			Details: jsonDetails(map[string]any{"tables": n}),
		})
	}
	if err := e.report.Sync(ctx, e.store); err != nil {
		e.log.Warn("reporting sync failed after extract", "error", err)
	}
	return res, nil
}

func (e *Engine) extractOne(k corrstore.Key) (int, error) {
	elems, err := e.source.Stream(k)
	if err != nil {
		return 0, err
	}
	drafts, err := tableextract.Tables(elems)
	if err != nil {
		return 0, err
	}
	f, err := e.store.CreateOrMerge(k, drafts)
	if err != nil {
		return 0, err
	}
	return len(f.Tables), nil
}

// Review runs a review batch over the selected streams using the given
// reviewer port. Resume continues a prior checkpoint with the same scope.
func (e *Engine) Review(ctx context.Context, f batch.Filter, port reviewer.Port, resume bool) (*batch.Progress, error) {
	keys, err := batch.Enumerate(e.source, f)
	if err != nil {
		return nil, err
	}
	proc := batch.New(e.store, e.source, port, batch.Options{
		Workers:      e.cfg.Workers,
		ProgressPath: e.cfg.ProgressPath,
		Scope:        scopeString(f),
		Resume:       resume,
		Logger:       e.log,
	})
	prog, err := proc.Run(ctx, keys)
	if prog != nil {
		e.report.LogEvent(ctx, report.Event{
			Type: "batch_review", Success: err == nil && len(prog.FailedItemIDs) == 0,
			Details: jsonDetails(map[string]any{
				"batch_id":  prog.BatchID,
				"completed": len(prog.CompletedItemIDs),
				"failed":    len(prog.FailedItemIDs),
				"status":    prog.Status,
			}),
		})
	}
	if serr := e.report.Sync(ctx, e.store); serr != nil {
		e.log.Warn("reporting sync failed after batch", "error", serr)
	}
	return prog, err
}

// Reset returns every record of a key to undefined, keeping hashes and
// original structures.
func (e *Engine) Reset(ctx context.Context, k corrstore.Key) error {
	err := e.store.Reset(k)
	e.report.LogEvent(ctx, report.Event{
		Type: "reset", LawID: k.LawID, Version: k.Version, Success: err == nil,
	})
	if err != nil {
		return err
	}
	if serr := e.report.Sync(ctx, e.store); serr != nil {
		e.log.Warn("reporting sync failed after reset", "error", serr)
	}
	return nil
}

// ResetLaw resets every stored version of one law. Returns the number of
// files reset.
func (e *Engine) ResetLaw(ctx context.Context, lawID string) (int, error) {
	n, err := e.store.ResetLaw(lawID)
	e.report.LogEvent(ctx, report.Event{
		Type: "reset", LawID: lawID, Success: err == nil,
		Details: jsonDetails(map[string]any{"scope": "law", "files": n}),
	})
	if err != nil {
		return n, err
	}
	if serr := e.report.Sync(ctx, e.store); serr != nil {
		e.log.Warn("reporting sync failed after reset", "error", serr)
	}
	return n, nil
}

// ResetAll resets every correction file in the store.
func (e *Engine) ResetAll(ctx context.Context) (int, error) {
	n, err := e.store.ResetAll()
	e.report.LogEvent(ctx, report.Event{
		Type: "reset", Success: err == nil,
		Details: jsonDetails(map[string]any{"scope": "all", "files": n}),
	})
	if err != nil {
		return n, err
	}
	if serr := e.report.Sync(ctx, e.store); serr != nil {
		e.log.Warn("reporting sync failed after reset", "error", serr)
	}
	return n, nil
}

// Regenerate discards a correction file and rebuilds it from the current
// element stream. Destructive: prior decisions are gone.
func (e *Engine) Regenerate(ctx context.Context, k corrstore.Key) error {
	elems, err := e.source.Stream(k)
	if err != nil {
		return err
	}
	drafts, err := tableextract.Tables(elems)
	if err != nil {
		return err
	}
	_, err = e.store.Regenerate(k, drafts)
	e.report.LogEvent(ctx, report.Event{
		Type: "regenerate", LawID: k.LawID, Version: k.Version, Success: err == nil,
	})
	if err != nil {
		return err
	}
	if serr := e.report.Sync(ctx, e.store); serr != nil {
		e.log.Warn("reporting sync failed after regenerate", "error", serr)
	}
	return nil
}

// Unmerge reverts a merged record to undefined for re-review.
func (e *Engine) Unmerge(ctx context.Context, k corrstore.Key, hash string) error {
	f, err := e.store.Load(k)
	if err != nil {
		return err
	}
	if err := correction.Unmerge(f, hash); err != nil {
		return err
	}
	err = e.store.Save(k, f)
	e.report.LogEvent(ctx, report.Event{
		Type: "unmerge", LawID: k.LawID, Version: k.Version, Success: err == nil,
		Details: jsonDetails(map[string]any{"hash": hash}),
	})
	return err
}

// Status refreshes the reporting index and returns the aggregate summary.
func (e *Engine) Status(ctx context.Context) (*report.Summary, error) {
	if err := e.report.Sync(ctx, e.store); err != nil {
		return nil, err
	}
	return e.report.Summary(ctx)
}

// Files refreshes the index and lists per-file summaries, optionally
// restricted to one law.
func (e *Engine) Files(ctx context.Context, lawID string) ([]report.FileSummary, error) {
	if err := e.report.Sync(ctx, e.store); err != nil {
		return nil, err
	}
	return e.report.Files(ctx, lawID)
}

// Apply rewrites an element stream with the stored corrections for a key.
// Fail-open: a missing or corrupt correction file leaves the stream
// untouched rather than blocking the render.
func (e *Engine) Apply(k corrstore.Key, elems []element.Element) ([]element.Element, applier.AppliedInfo) {
	f, err := e.store.Load(k)
	if errors.Is(err, corrstore.ErrNotFound) {
		return elems, applier.AppliedInfo{}
	}
	if err != nil {
		e.log.Warn("corrections unavailable, rendering uncorrected", "key", k.String(), "error", err)
		return elems, applier.AppliedInfo{}
	}
	return applier.Apply(elems, f)
}

// scopeString labels a filter for checkpoint matching.
func scopeString(f batch.Filter) string {
	switch {
	case f.LawID != "" && f.Version != "":
		return "law:" + f.LawID + ":" + f.Version
	case f.LawID != "":
		return "law:" + f.LawID
	case f.LatestOnly:
		return "latest"
	default:
		return "all"
	}
}

func jsonDetails(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
