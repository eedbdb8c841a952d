package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quadratecode/zhlaw-sub000/batch"
	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/mcpkit"
)

// RegisterMCP registers the review engine's tools on an MCP server. The
// interactive review itself stays human-facing; the tools cover the
// automatable operations.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerStatusTool(srv)
	e.registerExtractTool(srv)
	e.registerResetTool(srv)
	e.registerRegenerateTool(srv)
}

// --- status ---

type statusReq struct {
	LawID string `json:"law_id,omitempty"`
}

func (e *Engine) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "table_review_status",
		Description: "Report table review completion: aggregate counts, or per-version detail for one law.",
		InputSchema: mcpkit.InputSchema(map[string]any{
			"law_id": map[string]any{"type": "string", "description": "Restrict the report to one law"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*statusReq)
		if r.LawID != "" {
			return e.Files(ctx, r.LawID)
		}
		sum, err := e.Status(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"files":              sum.Files,
			"completed_files":    sum.CompletedFiles,
			"tables":             sum.Tables,
			"undefined":          sum.Undefined,
			"completion_percent": sum.CompletionPercent(),
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*mcpkit.DecodeResult, error) {
		var r statusReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &mcpkit.DecodeResult{Request: &r}, nil
	}

	mcpkit.RegisterTool(srv, tool, endpoint, decode)
}

// --- extract ---

type extractReq struct {
	LawID      string `json:"law_id,omitempty"`
	Version    string `json:"version,omitempty"`
	LatestOnly bool   `json:"latest_only,omitempty"`
}

func (e *Engine) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "table_review_extract",
		Description: "Extract candidate tables from element streams into correction files, preserving existing review decisions.",
		InputSchema: mcpkit.InputSchema(map[string]any{
			"law_id":      map[string]any{"type": "string", "description": "Restrict to one law"},
			"version":     map[string]any{"type": "string", "description": "Restrict to one version (requires law_id)"},
			"latest_only": map[string]any{"type": "boolean", "description": "Keep only each law's highest version"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		return e.Extract(ctx, batch.Filter{LawID: r.LawID, Version: r.Version, LatestOnly: r.LatestOnly})
	}

	decode := func(req *mcp.CallToolRequest) (*mcpkit.DecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &mcpkit.DecodeResult{Request: &r}, nil
	}

	mcpkit.RegisterTool(srv, tool, endpoint, decode)
}

// --- reset ---

type keyReq struct {
	LawID   string `json:"law_id"`
	Version string `json:"version"`
}

type resetReq struct {
	LawID   string `json:"law_id,omitempty"`
	Version string `json:"version,omitempty"`
	All     bool   `json:"all,omitempty"`
}

func (e *Engine) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "table_review_reset",
		Description: "Return correction tables to undefined, keeping structures and version metadata. Scope: one version (law_id+version), one law (law_id), or the whole store (all).",
		InputSchema: mcpkit.InputSchema(map[string]any{
			"law_id":  map[string]any{"type": "string", "description": "Law identifier"},
			"version": map[string]any{"type": "string", "description": "Version (nachtragsnummer); resets one file when set"},
			"all":     map[string]any{"type": "boolean", "description": "Reset every correction file in the store"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*resetReq)
		switch {
		case r.All:
			n, err := e.ResetAll(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"reset_files": n}, nil
		case r.LawID != "" && r.Version != "":
			k := corrstore.Key{LawID: r.LawID, Version: r.Version}
			if err := e.Reset(ctx, k); err != nil {
				return nil, err
			}
			return map[string]any{"reset": k.String()}, nil
		case r.LawID != "":
			n, err := e.ResetLaw(ctx, r.LawID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"reset_files": n, "law_id": r.LawID}, nil
		default:
			return nil, fmt.Errorf("reset needs all, law_id, or law_id with version")
		}
	}

	decode := func(req *mcp.CallToolRequest) (*mcpkit.DecodeResult, error) {
		var r resetReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &mcpkit.DecodeResult{Request: &r}, nil
	}

	mcpkit.RegisterTool(srv, tool, endpoint, decode)
}

// --- regenerate ---

func (e *Engine) registerRegenerateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "table_review_regenerate",
		Description: "Discard one correction file and rebuild it from the current element stream. Destructive: prior decisions are lost.",
		InputSchema: mcpkit.InputSchema(map[string]any{
			"law_id":  map[string]any{"type": "string", "description": "Law identifier"},
			"version": map[string]any{"type": "string", "description": "Version (nachtragsnummer)"},
		}, []string{"law_id", "version"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*keyReq)
		k := corrstore.Key{LawID: r.LawID, Version: r.Version}
		if err := e.Regenerate(ctx, k); err != nil {
			return nil, err
		}
		return map[string]any{"regenerated": k.String()}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*mcpkit.DecodeResult, error) {
		var r keyReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &mcpkit.DecodeResult{Request: &r}, nil
	}

	mcpkit.RegisterTool(srv, tool, endpoint, decode)
}
