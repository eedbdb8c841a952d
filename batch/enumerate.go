package batch

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/element"
)

// Source provides the per-version element streams a batch works on and
// enumerates which (law, version) inputs exist.
type Source interface {
	List() ([]corrstore.Key, error)
	Stream(k corrstore.Key) ([]element.Element, error)
}

// Filter selects the work item set for a batch.
type Filter struct {
	// LawID restricts the batch to one law. Empty means every law.
	LawID string
	// Version restricts to one version and requires LawID.
	Version string
	// LatestOnly keeps only the highest version of each selected law.
	LatestOnly bool
}

// Enumerate builds the ordered work item set from a source and a filter.
func Enumerate(src Source, f Filter) ([]corrstore.Key, error) {
	if f.Version != "" && f.LawID == "" {
		return nil, fmt.Errorf("batch: version filter requires a law id")
	}

	all, err := src.List()
	if err != nil {
		return nil, fmt.Errorf("batch: enumerate: %w", err)
	}

	var keys []corrstore.Key
	for _, k := range all {
		if f.LawID != "" && k.LawID != f.LawID {
			continue
		}
		if f.Version != "" && k.Version != f.Version {
			continue
		}
		keys = append(keys, k)
	}

	if f.LatestOnly {
		latest := make(map[string]string)
		for _, k := range keys {
			if cur, ok := latest[k.LawID]; !ok || versionLess(cur, k.Version) {
				latest[k.LawID] = k.Version
			}
		}
		filtered := keys[:0]
		for _, k := range keys {
			if latest[k.LawID] == k.Version {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].LawID != keys[j].LawID {
			return keys[i].LawID < keys[j].LawID
		}
		return versionLess(keys[i].Version, keys[j].Version)
	})
	return keys, nil
}

// versionLess orders nachtragsnummern numerically where possible, falling
// back to lexical order for non-numeric version labels.
func versionLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
