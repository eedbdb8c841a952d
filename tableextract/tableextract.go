// Package tableextract turns one version's element stream into draft
// tables with stable content identity.
//
// Grouping is per version only: content identity is scoped to a single
// version's correction file, because extraction noise across runs makes
// cross-version identity unreliable.
package tableextract

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quadratecode/zhlaw-sub000/element"
)

// ErrBadStream is returned for malformed element streams. It isolates to
// the offending version; sibling versions in a batch proceed normally.
var ErrBadStream = errors.New("tableextract: malformed element stream")

// maxDim caps row/column indices to keep a corrupt stream from allocating
// an absurd matrix.
const maxDim = 10_000

// Draft is one candidate table reconstructed from the stream.
type Draft struct {
	Hash    string
	TableID string
	Cells   [][]string
	Pages   []int
}

// Tables groups table cells by their table-group identifier in stream
// order and reconstructs each group's cell matrix. Cell text is
// whitespace-trimmed before hashing.
func Tables(elems []element.Element) ([]Draft, error) {
	type group struct {
		cells map[[2]int]string
		pages map[int]bool
		rows  int
		cols  int
	}
	groups := make(map[string]*group)
	var order []string

	for i, e := range elems {
		if !e.IsTableCell() {
			continue
		}
		if e.Row < 0 || e.Col < 0 {
			return nil, fmt.Errorf("%w: element %d has negative cell index (%d,%d)",
				ErrBadStream, i, e.Row, e.Col)
		}
		if e.Row >= maxDim || e.Col >= maxDim {
			return nil, fmt.Errorf("%w: element %d cell index (%d,%d) exceeds limit",
				ErrBadStream, i, e.Row, e.Col)
		}

		g, ok := groups[e.TableID]
		if !ok {
			g = &group{cells: make(map[[2]int]string), pages: make(map[int]bool)}
			groups[e.TableID] = g
			order = append(order, e.TableID)
		}

		key := [2]int{e.Row, e.Col}
		text := strings.TrimSpace(e.Text)
		if prev, dup := g.cells[key]; dup && prev != "" && text != "" {
			// Extractors occasionally split one cell across elements.
			g.cells[key] = prev + " " + text
		} else if !dup || text != "" {
			g.cells[key] = text
		}
		if e.Row+1 > g.rows {
			g.rows = e.Row + 1
		}
		if e.Col+1 > g.cols {
			g.cols = e.Col + 1
		}
		if e.Page > 0 {
			g.pages[e.Page] = true
		}
	}

	drafts := make([]Draft, 0, len(order))
	for _, id := range order {
		g := groups[id]
		cells := make([][]string, g.rows)
		for r := 0; r < g.rows; r++ {
			cells[r] = make([]string, g.cols)
			for c := 0; c < g.cols; c++ {
				cells[r][c] = g.cells[[2]int{r, c}]
			}
		}
		pages := make([]int, 0, len(g.pages))
		for p := range g.pages {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		drafts = append(drafts, Draft{
			Hash:    Hash(cells),
			TableID: id,
			Cells:   cells,
			Pages:   pages,
		})
	}
	return drafts, nil
}

// Hash computes the content identity of a cell matrix: per-cell trim plus
// collapse of internal whitespace runs, rows and cells joined with the
// 0x1E/0x1F separators, sha256 hex. Stable across repeated extraction of
// unchanged input.
func Hash(cells [][]string) string {
	h := sha256.New()
	for r, row := range cells {
		if r > 0 {
			h.Write([]byte{0x1e})
		}
		for c, cell := range row {
			if c > 0 {
				h.Write([]byte{0x1f})
			}
			h.Write([]byte(canonicalCell(cell)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Empty reports whether every cell of the matrix is blank.
func Empty(cells [][]string) bool {
	for _, row := range cells {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				return false
			}
		}
	}
	return true
}

func canonicalCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
