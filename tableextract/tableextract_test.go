package tableextract_test

import (
	"errors"
	"testing"

	"github.com/quadratecode/zhlaw-sub000/element"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

func cell(table string, row, col int, text string, page int) element.Element {
	return element.Element{
		Type: element.TypeTableCell, TableID: table,
		Row: row, Col: col, Text: text, Page: page,
	}
}

func TestTablesGroupsInStreamOrder(t *testing.T) {
	elems := []element.Element{
		{Type: element.TypeHeading, Text: "§ 1", Page: 1},
		cell("t2", 0, 0, "Fee", 2),
		cell("t2", 0, 1, "CHF 50", 2),
		{Type: element.TypeParagraph, Text: "between tables", Page: 2},
		cell("t1", 0, 0, "Name", 3),
		cell("t1", 1, 0, "Value", 3),
	}

	drafts, err := tableextract.Tables(elems)
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	// First-seen order, not lexical order of table ids.
	if drafts[0].TableID != "t2" || drafts[1].TableID != "t1" {
		t.Fatalf("order = %s, %s", drafts[0].TableID, drafts[1].TableID)
	}
	if got := drafts[0].Cells; len(got) != 1 || len(got[0]) != 2 || got[0][1] != "CHF 50" {
		t.Fatalf("t2 cells = %v", got)
	}
	if got := drafts[1].Cells; len(got) != 2 || got[1][0] != "Value" {
		t.Fatalf("t1 cells = %v", got)
	}
	if len(drafts[0].Pages) != 1 || drafts[0].Pages[0] != 2 {
		t.Fatalf("t2 pages = %v", drafts[0].Pages)
	}
}

func TestMissingCellsAreBlank(t *testing.T) {
	elems := []element.Element{
		cell("t1", 0, 0, "a", 1),
		cell("t1", 2, 2, "z", 1),
	}
	drafts, err := tableextract.Tables(elems)
	if err != nil {
		t.Fatal(err)
	}
	cells := drafts[0].Cells
	if len(cells) != 3 || len(cells[0]) != 3 {
		t.Fatalf("matrix = %dx%d, want 3x3", len(cells), len(cells[0]))
	}
	if cells[1][1] != "" || cells[2][2] != "z" {
		t.Fatalf("cells = %v", cells)
	}
}

func TestHashStableAcrossRuns(t *testing.T) {
	elems := []element.Element{
		cell("t1", 0, 0, "  Gebühr  ", 1),
		cell("t1", 0, 1, "CHF\t50", 1),
	}
	first, err := tableextract.Tables(elems)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tableextract.Tables(elems)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Hash != second[0].Hash {
		t.Fatal("hash not stable across repeated extraction")
	}

	// Whitespace noise does not move identity.
	noisy := []element.Element{
		cell("t1", 0, 0, "Gebühr", 1),
		cell("t1", 0, 1, " CHF  50 ", 1),
	}
	third, err := tableextract.Tables(noisy)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Hash != third[0].Hash {
		t.Fatal("whitespace variation changed the hash")
	}

	// Content changes do.
	changed := []element.Element{
		cell("t1", 0, 0, "Gebühr", 1),
		cell("t1", 0, 1, "CHF 60", 1),
	}
	fourth, err := tableextract.Tables(changed)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Hash == fourth[0].Hash {
		t.Fatal("content change kept the same hash")
	}
}

func TestHashDistinguishesShape(t *testing.T) {
	row := tableextract.Hash([][]string{{"a", "b"}})
	col := tableextract.Hash([][]string{{"a"}, {"b"}})
	if row == col {
		t.Fatal("1x2 and 2x1 matrices must not collide")
	}
}

func TestMalformedStream(t *testing.T) {
	elems := []element.Element{cell("t1", -1, 0, "x", 1)}
	if _, err := tableextract.Tables(elems); !errors.Is(err, tableextract.ErrBadStream) {
		t.Fatalf("got %v, want ErrBadStream", err)
	}
}

func TestEmpty(t *testing.T) {
	if !tableextract.Empty([][]string{{" ", ""}, {"\t", ""}}) {
		t.Fatal("blank matrix not reported empty")
	}
	if tableextract.Empty([][]string{{"", "x"}}) {
		t.Fatal("non-blank matrix reported empty")
	}
}
