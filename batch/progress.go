package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/quadratecode/zhlaw-sub000/pathguard"
)

// Progress states.
const (
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
)

// Progress is the durable checkpoint of one batch run. It is owned by a
// single coordinator; workers report results to it and never write it
// directly.
type Progress struct {
	BatchID          string            `json:"batch_id"`
	Scope            string            `json:"scope"`
	TotalItems       int               `json:"total_items"`
	CompletedItemIDs []string          `json:"completed_item_ids"`
	FailedItemIDs    map[string]string `json:"failed_item_ids"`
	CurrentItem      string            `json:"current_item,omitempty"`
	StartTime        string            `json:"start_time"`
	LastUpdate       string            `json:"last_update"`
	Status           string            `json:"status"`
}

func newProgress(batchID, scope string, total int, now time.Time) *Progress {
	ts := now.UTC().Format(time.RFC3339)
	return &Progress{
		BatchID:          batchID,
		Scope:            scope,
		TotalItems:       total,
		CompletedItemIDs: []string{},
		FailedItemIDs:    map[string]string{},
		StartTime:        ts,
		LastUpdate:       ts,
		Status:           ProgressRunning,
	}
}

// Completed reports whether the item already finished successfully.
func (p *Progress) Completed(id string) bool {
	for _, c := range p.CompletedItemIDs {
		if c == id {
			return true
		}
	}
	return false
}

// recordSuccess moves an item into the completed set, keeping the
// completed and failed sets disjoint.
func (p *Progress) recordSuccess(id string) {
	delete(p.FailedItemIDs, id)
	if !p.Completed(id) {
		p.CompletedItemIDs = append(p.CompletedItemIDs, id)
		sort.Strings(p.CompletedItemIDs)
	}
}

// recordFailure moves an item into the failed set with its reason.
func (p *Progress) recordFailure(id, reason string) {
	for i, c := range p.CompletedItemIDs {
		if c == id {
			p.CompletedItemIDs = append(p.CompletedItemIDs[:i], p.CompletedItemIDs[i+1:]...)
			break
		}
	}
	p.FailedItemIDs[id] = reason
}

// save persists the progress checkpoint atomically.
func (p *Progress) save(path string, now time.Time) error {
	p.LastUpdate = now.UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: marshal progress: %w", err)
	}
	data = append(data, '\n')
	if err := pathguard.WriteAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("batch: persist progress: %w", err)
	}
	return nil
}

// LoadProgress reads a progress checkpoint from path. Returns nil without
// error when no checkpoint exists.
func LoadProgress(path string) (*Progress, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("batch: read progress: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("batch: parse progress: %w", err)
	}
	if p.FailedItemIDs == nil {
		p.FailedItemIDs = map[string]string{}
	}
	return &p, nil
}
