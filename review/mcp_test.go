package review_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quadratecode/zhlaw-sub000/review"
)

var testMCPImpl = &mcp.Implementation{Name: "tabrev-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*mcp.ClientSession, *review.Config) {
	t.Helper()
	engine, cfg := newEngine(t)

	srv := mcp.NewServer(testMCPImpl, nil)
	engine.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, cfg
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result.IsError {
		t.Fatalf("call %s returned tool error: %+v", name, result.Content)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("call %s: content is %T", name, result.Content[0])
	}
	return text.Text
}

func TestMCPExtractAndStatus(t *testing.T) {
	session, cfg := mcpSession(t)

	writeStream(t, cfg.ElementsDir, "170.4", "118", cells("t1", "Gebühr", "CHF 50"))

	out := mcpCallTool(t, session, "table_review_extract", map[string]any{})
	var extractRes struct {
		Processed int `json:"processed"`
	}
	if err := json.Unmarshal([]byte(out), &extractRes); err != nil {
		t.Fatal(err)
	}
	if extractRes.Processed != 1 {
		t.Fatalf("extract response = %s", out)
	}

	out = mcpCallTool(t, session, "table_review_status", map[string]any{})
	var status struct {
		Files     int `json:"files"`
		Undefined int `json:"undefined"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatal(err)
	}
	if status.Files != 1 || status.Undefined != 1 {
		t.Fatalf("status response = %s", out)
	}
}

func TestMCPResetRequiresKey(t *testing.T) {
	session, _ := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "table_review_reset",
		Arguments: map[string]any{"law_id": "does-not-exist", "version": "1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("reset of a missing file must surface a tool error")
	}
}

func TestMCPResetScopes(t *testing.T) {
	session, cfg := mcpSession(t)

	writeStream(t, cfg.ElementsDir, "170.4", "118", cells("t1", "Gebühr"))
	mcpCallTool(t, session, "table_review_extract", map[string]any{})

	out := mcpCallTool(t, session, "table_review_reset", map[string]any{"law_id": "170.4"})
	var lawRes struct {
		ResetFiles int `json:"reset_files"`
	}
	if err := json.Unmarshal([]byte(out), &lawRes); err != nil {
		t.Fatal(err)
	}
	if lawRes.ResetFiles != 1 {
		t.Fatalf("law-wide reset response = %s", out)
	}

	out = mcpCallTool(t, session, "table_review_reset", map[string]any{"all": true})
	var allRes struct {
		ResetFiles int `json:"reset_files"`
	}
	if err := json.Unmarshal([]byte(out), &allRes); err != nil {
		t.Fatal(err)
	}
	if allRes.ResetFiles != 1 {
		t.Fatalf("store-wide reset response = %s", out)
	}

	// No scope at all is a usage error.
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "table_review_reset",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Fatal("reset without a scope must surface a tool error")
	}
}
