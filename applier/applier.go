// Package applier rewrites a version's element stream according to the
// stored review dispositions. It is the render-time consumer of
// correction files and is strictly fail-open: missing or incomplete
// correction data never fails a render, it just passes elements through.
package applier

import (
	"sort"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/element"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

// AppliedInfo summarizes what a rewrite did, for render logs.
type AppliedInfo struct {
	Confirmed int // passed through as confirmed
	Edited    int // corrected structures substituted
	Rejected  int // flattened to paragraphs
	Merged    int // removed from the stream
	Undefined int // unreviewed, passed through
	Unknown   int // no record for the recomputed hash, passed through

	// StreamMalformed is set when the stream could not be grouped at all;
	// the input is returned unchanged.
	StreamMalformed bool
}

// Apply rewrites elems according to the dispositions in f. A nil file
// passes everything through unchanged.
func Apply(elems []element.Element, f *correction.File) ([]element.Element, AppliedInfo) {
	var info AppliedInfo
	if f == nil {
		return elems, info
	}

	drafts, err := tableextract.Tables(elems)
	if err != nil {
		info.StreamMalformed = true
		return elems, info
	}
	byGroup := make(map[string]tableextract.Draft, len(drafts))
	for _, d := range drafts {
		byGroup[d.TableID] = d
	}

	out := make([]element.Element, 0, len(elems))
	seen := make(map[string]bool)
	for i, e := range elems {
		if !e.IsTableCell() {
			out = append(out, e)
			continue
		}
		if seen[e.TableID] {
			continue // the whole group was handled at its first element
		}
		seen[e.TableID] = true

		group := collectGroup(elems[i:], e.TableID)
		draft := byGroup[e.TableID]
		rec, ok := f.Tables[draft.Hash]
		if !ok {
			info.Unknown++
			out = append(out, group...)
			continue
		}

		switch rec.Status {
		case correction.StatusConfirmed:
			info.Confirmed++
			out = append(out, group...)
		case correction.StatusUndefined:
			info.Undefined++
			out = append(out, group...)
		case correction.StatusEdited:
			info.Edited++
			out = append(out, substitute(group, rec.CorrectedStructure)...)
		case correction.StatusRejected:
			info.Rejected++
			out = append(out, flatten(group)...)
		case correction.StatusMerged:
			// Content was folded into the merge target during review;
			// nothing remains to render here.
			info.Merged++
		default:
			out = append(out, group...)
		}
	}
	return out, info
}

// collectGroup gathers the cell elements of one table group from the
// remainder of the stream, in stream order.
func collectGroup(rest []element.Element, tableID string) []element.Element {
	var group []element.Element
	for _, e := range rest {
		if e.IsTableCell() && e.TableID == tableID {
			group = append(group, e)
		}
	}
	return group
}

// substitute writes corrected cell values into the existing table frame.
// Split cells (several stream elements at one (row, col)) collapse into
// the first element, since extraction joined their text into the single
// corrected value. When the corrected matrix has a different shape, the
// frame is rebuilt from the corrected structure instead, keeping the
// group's identity and page attribution.
func substitute(group []element.Element, corrected [][]string) []element.Element {
	if sameShape(group, corrected) {
		filled := make(map[[2]int]bool, len(group))
		out := make([]element.Element, 0, len(group))
		for _, e := range group {
			rc := [2]int{e.Row, e.Col}
			if filled[rc] {
				continue
			}
			filled[rc] = true
			e.Text = corrected[e.Row][e.Col]
			out = append(out, e)
		}
		return out
	}

	page := group[0].Page
	tableID := group[0].TableID
	var out []element.Element
	for r, row := range corrected {
		for c, text := range row {
			out = append(out, element.Element{
				Type: element.TypeTableCell, TableID: tableID,
				Row: r, Col: c, Text: text, Page: page,
			})
		}
	}
	return out
}

// sameShape reports whether the group's distinct (row, col) positions map
// exactly onto the corrected matrix. Duplicate positions from split cells
// count once, matching how extraction merged them.
func sameShape(group []element.Element, corrected [][]string) bool {
	covered := make(map[[2]int]bool, len(group))
	for _, e := range group {
		if e.Row >= len(corrected) || e.Col >= len(corrected[e.Row]) {
			return false
		}
		covered[[2]int{e.Row, e.Col}] = true
	}
	cells := 0
	for _, row := range corrected {
		cells += len(row)
	}
	return len(covered) == cells
}

// flatten replaces a rejected table's elements with paragraphs built from
// its non-empty cell text in reading order.
func flatten(group []element.Element) []element.Element {
	ordered := make([]element.Element, len(group))
	copy(ordered, group)
	// Reading order: row-major, regardless of stream order.
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Row != ordered[j].Row {
			return ordered[i].Row < ordered[j].Row
		}
		return ordered[i].Col < ordered[j].Col
	})

	var out []element.Element
	for _, e := range ordered {
		if e.Text == "" {
			continue
		}
		out = append(out, element.Paragraph(e.Text, e.Page))
	}
	return out
}
