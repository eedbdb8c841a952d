package correction_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/quadratecode/zhlaw-sub000/correction"
)

func TestUnknownFieldsSurviveRoundTrip(t *testing.T) {
	src := []byte(`{
		"law_id": "170.4",
		"version": "118",
		"status": "in_progress",
		"editor_hint": {"zoom": 2},
		"tables": {
			"h1": {
				"hash": "h1",
				"status": "undefined",
				"original_structure": [["a","b"]],
				"has_header": true,
				"ocr_confidence": 0.93
			}
		}
	}`)

	var f correction.File
	if err := json.Unmarshal(src, &f); err != nil {
		t.Fatal(err)
	}
	if f.LawID != "170.4" || f.Version != "118" {
		t.Fatalf("got %s/%s", f.LawID, f.Version)
	}
	if _, ok := f.Extra["editor_hint"]; !ok {
		t.Fatal("top-level unknown field dropped on load")
	}
	rec := f.Tables["h1"]
	if rec == nil || !rec.HasHeader {
		t.Fatal("known record fields not decoded")
	}
	if _, ok := rec.Extra["ocr_confidence"]; !ok {
		t.Fatal("record-level unknown field dropped on load")
	}

	out, err := json.Marshal(&f)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out, []byte("editor_hint")) || !bytes.Contains(out, []byte("ocr_confidence")) {
		t.Fatalf("unknown fields stripped on save: %s", out)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	f := correction.NewFile("170.4", "118")
	f.Tables["h2"] = &correction.Record{Hash: "h2", Status: correction.StatusUndefined,
		OriginalStructure: [][]string{{"x"}}}
	f.Tables["h1"] = &correction.Record{Hash: "h1", Status: correction.StatusUndefined,
		OriginalStructure: [][]string{{"y"}}}

	first, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(f)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("marshalling is not deterministic")
		}
	}
}

func TestKnownFieldWinsOverStaleExtra(t *testing.T) {
	r := correction.Record{
		Hash:              "h1",
		Status:            correction.StatusConfirmed,
		OriginalStructure: [][]string{{"a"}},
		Extra:             map[string]json.RawMessage{"status": json.RawMessage(`"stale"`)},
	}
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var decoded correction.Record
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Status != correction.StatusConfirmed {
		t.Fatalf("stale extra shadowed live field: %q", decoded.Status)
	}
}
