package applier_test

import (
	"testing"

	"github.com/quadratecode/zhlaw-sub000/applier"
	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/element"
	"github.com/quadratecode/zhlaw-sub000/tableextract"
)

func cell(table string, row, col int, text string) element.Element {
	return element.Element{
		Type: element.TypeTableCell, TableID: table,
		Row: row, Col: col, Text: text, Page: 1,
	}
}

// stream is a heading, one two-cell table, and a trailing paragraph.
func stream() []element.Element {
	return []element.Element{
		{Type: element.TypeHeading, Text: "§ 12", Page: 1},
		cell("t1", 0, 0, "Gebühr"),
		cell("t1", 0, 1, "CHF 50"),
		{Type: element.TypeParagraph, Text: "after", Page: 1},
	}
}

func fileFor(t *testing.T, elems []element.Element, status correction.Status) (*correction.File, string) {
	t.Helper()
	drafts, err := tableextract.Tables(elems)
	if err != nil {
		t.Fatal(err)
	}
	f := correction.NewFile("170.4", "118")
	h := drafts[0].Hash
	f.Tables[h] = &correction.Record{
		Hash:              h,
		Status:            status,
		OriginalStructure: drafts[0].Cells,
	}
	return f, h
}

func TestNilFilePassesThrough(t *testing.T) {
	in := stream()
	out, info := applier.Apply(in, nil)
	if len(out) != len(in) {
		t.Fatalf("got %d elements, want %d", len(out), len(in))
	}
	if info != (applier.AppliedInfo{}) {
		t.Fatalf("info = %+v", info)
	}
}

func TestConfirmedAndUndefinedPassThrough(t *testing.T) {
	for _, status := range []correction.Status{correction.StatusConfirmed, correction.StatusUndefined} {
		in := stream()
		f, _ := fileFor(t, in, status)
		out, info := applier.Apply(in, f)
		if len(out) != len(in) {
			t.Fatalf("%s: got %d elements, want %d", status, len(out), len(in))
		}
		if info.Confirmed+info.Undefined != 1 {
			t.Fatalf("%s: info = %+v", status, info)
		}
	}
}

func TestEditedSubstitutesInFrame(t *testing.T) {
	in := stream()
	f, h := fileFor(t, in, correction.StatusEdited)
	f.Tables[h].CorrectedStructure = [][]string{{"Gebühr", "CHF 60"}}

	out, info := applier.Apply(in, f)
	if info.Edited != 1 {
		t.Fatalf("info = %+v", info)
	}
	if len(out) != len(in) {
		t.Fatalf("frame changed size: %d elements", len(out))
	}
	if out[2].Text != "CHF 60" {
		t.Fatalf("cell not substituted: %q", out[2].Text)
	}
	if out[2].TableID != "t1" || out[2].Row != 0 || out[2].Col != 1 {
		t.Fatal("frame identity lost")
	}
}

func TestEditedReshapesFrame(t *testing.T) {
	in := stream()
	f, h := fileFor(t, in, correction.StatusEdited)
	f.Tables[h].CorrectedStructure = [][]string{{"Gebühr"}, {"CHF 50"}}

	out, _ := applier.Apply(in, f)
	var cells []element.Element
	for _, e := range out {
		if e.IsTableCell() {
			cells = append(cells, e)
		}
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells", len(cells))
	}
	if cells[1].Row != 1 || cells[1].Col != 0 || cells[1].Text != "CHF 50" {
		t.Fatalf("reshaped cell = %+v", cells[1])
	}
}

func TestRejectedFlattensToParagraphs(t *testing.T) {
	// Stream order deliberately differs from reading order.
	in := []element.Element{
		cell("t1", 1, 0, "second"),
		cell("t1", 0, 0, "first"),
		cell("t1", 0, 1, ""),
	}
	f, h := fileFor(t, in, correction.StatusRejected)
	f.Tables[h].Reason = "not a real table"

	out, info := applier.Apply(in, f)
	if info.Rejected != 1 {
		t.Fatalf("info = %+v", info)
	}
	if len(out) != 2 {
		t.Fatalf("got %d paragraphs, want 2 (empty cell dropped)", len(out))
	}
	if out[0].Type != element.TypeParagraph || out[0].Text != "first" || out[1].Text != "second" {
		t.Fatalf("reading order broken: %+v", out)
	}
}

func TestMergedRemovesElements(t *testing.T) {
	in := stream()
	f, h := fileFor(t, in, correction.StatusMerged)
	// Merge bookkeeping for a target elsewhere in the file.
	f.Tables["other"] = &correction.Record{
		Hash: "other", Status: correction.StatusConfirmed,
		OriginalStructure: [][]string{{"x"}},
	}
	f.Tables[h].MergedInto = "other"

	out, info := applier.Apply(in, f)
	if info.Merged != 1 {
		t.Fatalf("info = %+v", info)
	}
	for _, e := range out {
		if e.IsTableCell() {
			t.Fatalf("merged table cell survived: %+v", e)
		}
	}
	if len(out) != 2 {
		t.Fatalf("got %d elements, want heading and paragraph", len(out))
	}
}

func TestUnknownHashPassesThrough(t *testing.T) {
	in := stream()
	f := correction.NewFile("170.4", "118") // no record for the table
	out, info := applier.Apply(in, f)
	if len(out) != len(in) {
		t.Fatalf("got %d elements", len(out))
	}
	if info.Unknown != 1 {
		t.Fatalf("info = %+v", info)
	}
}

func TestMalformedStreamFailsOpen(t *testing.T) {
	in := []element.Element{cell("t1", -1, 0, "x")}
	f := correction.NewFile("170.4", "118")
	out, info := applier.Apply(in, f)
	if !info.StreamMalformed {
		t.Fatal("malformed stream not flagged")
	}
	if len(out) != len(in) {
		t.Fatal("fail-open must return the input unchanged")
	}
}

func TestEditedKeepsFrameWithSplitCells(t *testing.T) {
	// Two stream elements share (0,0): a split cell the extraction
	// merged into one value. The frame shape still matches, so the
	// corrected values go in place and the duplicate collapses.
	in := []element.Element{
		{Type: element.TypeHeading, Text: "§ 12", Page: 1},
		cell("t1", 0, 0, "Ge"),
		cell("t1", 0, 0, "bühr"),
		cell("t1", 0, 1, "CHF 50"),
	}
	f, h := fileFor(t, in, correction.StatusEdited)
	f.Tables[h].CorrectedStructure = [][]string{{"Gebühr", "CHF 60"}}

	out, info := applier.Apply(in, f)
	if info.Edited != 1 {
		t.Fatalf("info = %+v", info)
	}
	var cells []element.Element
	for _, e := range out {
		if e.IsTableCell() {
			cells = append(cells, e)
		}
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want split pair collapsed to one", len(cells))
	}
	if cells[0].Text != "Gebühr" || cells[1].Text != "CHF 60" {
		t.Fatalf("cells = %q / %q", cells[0].Text, cells[1].Text)
	}
	if cells[0].TableID != "t1" || cells[0].Row != 0 || cells[0].Col != 0 {
		t.Fatal("frame identity lost")
	}
}
