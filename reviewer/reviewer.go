// Package reviewer defines the capability interface through which a
// review decision is obtained for a draft table.
//
// The batch engine and the correction store depend only on the Port
// interface; whether decisions come from a human or a deterministic
// stand-in is a batch-construction-time choice.
package reviewer

import (
	"context"
	"errors"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

// ErrSession is returned when an interactive session cannot be
// established or breaks down (e.g. the UI bridge fails to start). The
// batch records the item as failed; the manual fallback is reviewing the
// correction file directly and re-running with resume.
var ErrSession = errors.New("reviewer: interactive session failed")

// Table is the draft surfaced for review: one undefined record with the
// context a reviewer needs.
type Table struct {
	LawID   string
	Version string
	Hash    string
	Cells   [][]string
	Pages   []int

	// MergeTargets lists the other non-merged hashes in the same file,
	// the only legal values for a merge decision.
	MergeTargets []string
}

// Decision is the outcome of reviewing one draft table. A Status of
// undefined means "skip": the record is left untouched for a later pass.
type Decision struct {
	Status             correction.Status
	CorrectedStructure [][]string
	MergedInto         string
	Reason             string

	// HasHeader marks the table's first row as a header row, a judgement
	// only the reviewer can make.
	HasHeader bool
}

// Port resolves a decision for a draft table. Interactive implementations
// block until the human decides; ctx cancellation aborts the wait.
type Port interface {
	Resolve(ctx context.Context, t Table) (Decision, error)
}

// Simulated is the headless reviewer used for automation and tests. It
// deterministically confirms any table with at least one non-empty cell
// and rejects wholly empty ones.
type Simulated struct{}

// Resolve implements Port.
func (Simulated) Resolve(_ context.Context, t Table) (Decision, error) {
	if tableextract.Empty(t.Cells) {
		return Decision{Status: correction.StatusRejected, Reason: "table has no content"}, nil
	}
	return Decision{Status: correction.StatusConfirmed}, nil
}
