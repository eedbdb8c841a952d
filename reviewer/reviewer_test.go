package reviewer_test

import (
	"context"
	"testing"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
)

func TestSimulatedConfirmsNonEmpty(t *testing.T) {
	var sim reviewer.Simulated
	d, err := sim.Resolve(context.Background(), reviewer.Table{
		Hash:  "h1",
		Cells: [][]string{{"", ""}, {"", "CHF 50"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != correction.StatusConfirmed {
		t.Fatalf("got %q, want confirmed", d.Status)
	}
}

func TestSimulatedRejectsEmpty(t *testing.T) {
	var sim reviewer.Simulated
	d, err := sim.Resolve(context.Background(), reviewer.Table{
		Hash:  "h1",
		Cells: [][]string{{" ", ""}, {"", "\t"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != correction.StatusRejected {
		t.Fatalf("got %q, want rejected", d.Status)
	}
	if d.Reason == "" {
		t.Fatal("rejection carries no reason")
	}
}
