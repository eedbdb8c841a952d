package webui_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quadratecode/zhlaw-sub000/correction"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
	"github.com/quadratecode/zhlaw-sub000/reviewer/webui"
)

func draft() reviewer.Table {
	return reviewer.Table{
		LawID: "170.4", Version: "118", Hash: "h1",
		Cells: [][]string{{"Gebühr", "CHF 50"}},
	}
}

func TestDecisionRoundTrip(t *testing.T) {
	b := webui.New(webui.Options{})
	srv := httptest.NewServer(b.Routes())
	defer srv.Close()

	type result struct {
		d   reviewer.Decision
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		d, err := b.Resolve(context.Background(), draft())
		resCh <- result{d, err}
	}()

	// Poll until the draft is visible.
	var next struct {
		ID    string         `json:"id"`
		Table reviewer.Table `json:"table"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(srv.URL + "/review/next")
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(&next); err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			break
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatal("draft never became visible")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if next.Table.Hash != "h1" {
		t.Fatalf("surfaced table = %+v", next.Table)
	}

	body := `{"status":"confirmed_with_changes","corrected_structure":[["Gebühr","CHF 60"]],"has_header":true}`
	resp, err := http.Post(srv.URL+"/review/"+next.ID, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decide status = %d", resp.StatusCode)
	}

	res := <-resCh
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.d.Status != correction.StatusEdited {
		t.Fatalf("status = %q", res.d.Status)
	}
	if res.d.CorrectedStructure[0][1] != "CHF 60" {
		t.Fatalf("corrected = %v", res.d.CorrectedStructure)
	}
	if !res.d.HasHeader {
		t.Fatal("header flag dropped from payload")
	}
}

func TestRejectsUnknownStatus(t *testing.T) {
	b := webui.New(webui.Options{})
	srv := httptest.NewServer(b.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/review/whatever", "application/json",
		strings.NewReader(`{"status":"maybe"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDecideUnknownID(t *testing.T) {
	b := webui.New(webui.Options{})
	srv := httptest.NewServer(b.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/review/missing", "application/json",
		strings.NewReader(`{"status":"rejected"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResolveCancellation(t *testing.T) {
	b := webui.New(webui.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Resolve(ctx, draft())
	if err == nil {
		t.Fatal("expected session error on cancelled context")
	}
}
