// Package webui is the interactive reviewer bridge for the local web
// editor. A batch worker calling Resolve parks its draft here and blocks;
// the editor UI polls for pending drafts, renders them, and posts the
// decision back, which releases the worker.
//
// The bridge holds no review logic of its own: whatever comes back is
// validated by the store on save, so a bad editor payload fails the save,
// not the bridge.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/idgen"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
)

// Options configures the bridge.
type Options struct {
	// Logger overrides the default slog logger.
	Logger *slog.Logger
	// NewID generates review session ids.
	NewID idgen.Generator
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.NewID == nil {
		o.NewID = idgen.Prefixed("rev_", idgen.Default)
	}
}

// Bridge implements reviewer.Port over a local HTTP surface.
type Bridge struct {
	opts Options

	mu      sync.Mutex
	pending map[string]*pendingReview
	order   []string
}

type pendingReview struct {
	ID    string         `json:"id"`
	Table reviewer.Table `json:"table"`

	done chan reviewer.Decision
}

// New creates a Bridge. Mount Routes on the editor's local server.
func New(opts Options) *Bridge {
	opts.defaults()
	return &Bridge{opts: opts, pending: make(map[string]*pendingReview)}
}

// Resolve implements reviewer.Port: it registers the draft and blocks
// until the editor posts a decision or ctx is cancelled.
func (b *Bridge) Resolve(ctx context.Context, t reviewer.Table) (reviewer.Decision, error) {
	p := &pendingReview{
		ID:    b.opts.NewID(),
		Table: t,
		done:  make(chan reviewer.Decision, 1),
	}
	b.mu.Lock()
	b.pending[p.ID] = p
	b.order = append(b.order, p.ID)
	b.mu.Unlock()
	defer b.remove(p.ID)

	b.opts.Logger.Info("draft awaiting web review",
		"review_id", p.ID, "law", t.LawID, "version", t.Version, "hash", t.Hash)

	select {
	case d := <-p.done:
		return d, nil
	case <-ctx.Done():
		return reviewer.Decision{}, fmt.Errorf("%w: %v", reviewer.ErrSession, ctx.Err())
	}
}

func (b *Bridge) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Routes returns the HTTP surface of the bridge.
func (b *Bridge) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/review", b.handleList)
	r.Get("/review/next", b.handleNext)
	r.Get("/review/{id}", b.handleGet)
	r.Post("/review/{id}", b.handleDecide)
	return r
}

func (b *Bridge) handleList(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	ids := append([]string(nil), b.order...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"pending": ids})
}

func (b *Bridge) handleNext(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	var next *pendingReview
	if len(b.order) > 0 {
		next = b.pending[b.order[0]]
	}
	b.mu.Unlock()
	if next == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (b *Bridge) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	p := b.pending[id]
	b.mu.Unlock()
	if p == nil {
		http.Error(w, "no such pending review", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type decisionPayload struct {
	Status             correction.Status `json:"status"`
	CorrectedStructure [][]string        `json:"corrected_structure,omitempty"`
	MergedInto         string            `json:"merged_into,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	HasHeader          bool              `json:"has_header,omitempty"`
}

func (b *Bridge) handleDecide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload decisionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid decision payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !payload.Status.Valid() {
		http.Error(w, fmt.Sprintf("unknown status %q", payload.Status), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	p := b.pending[id]
	if p != nil {
		delete(b.pending, id) // single delivery; the worker drops the order entry
	}
	b.mu.Unlock()
	if p == nil {
		http.Error(w, "no such pending review", http.StatusNotFound)
		return
	}

	p.done <- reviewer.Decision{
		Status:             payload.Status,
		CorrectedStructure: payload.CorrectedStructure,
		MergedInto:         payload.MergedInto,
		Reason:             payload.Reason,
		HasHeader:          payload.HasHeader,
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("webui response write failed", "error", err)
	}
}
