// Command tabrev drives the table correction lifecycle: extraction,
// batch review, reset/regenerate and completion reporting, plus an MCP
// surface for automation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/quadratecode/zhlaw-sub000/batch"
	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/review"
	"github.com/quadratecode/zhlaw-sub000/reviewer"
	"github.com/quadratecode/zhlaw-sub000/reviewer/tui"
	"github.com/quadratecode/zhlaw-sub000/reviewer/webui"
)

const usage = `usage: tabrev <command> [flags]

commands:
  extract     extract candidate tables into correction files
  review      run a review batch (simulated, terminal or web reviewer)
  status      report review completion
  reset       return correction files to undefined (one version, one law, or all)
  regenerate  rebuild one correction file from its element stream
  unmerge     revert one merged table for re-review
  mcp         serve the review tools over MCP stdio
`

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1], os.Args[2:], logger); err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, logger *slog.Logger) error {
	switch command {
	case "extract":
		return cmdExtract(ctx, args, logger)
	case "review":
		return cmdReview(ctx, args, logger)
	case "status":
		return cmdStatus(ctx, args, logger)
	case "reset":
		return cmdReset(ctx, args, logger)
	case "regenerate":
		return cmdRegenerate(ctx, args, logger)
	case "unmerge":
		return cmdUnmerge(ctx, args, logger)
	case "mcp":
		return cmdMCP(ctx, args, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// newEngine loads the config (file if present, defaults otherwise) and
// wires the engine.
func newEngine(configPath string, logger *slog.Logger) (*review.Engine, *review.Config, error) {
	cfg := review.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = review.LoadConfig(configPath)
		if err != nil {
			return nil, nil, err
		}
	}
	e, err := review.NewEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return e, cfg, nil
}

func commonFlags(fs *flag.FlagSet) (config *string, f *batch.Filter) {
	f = &batch.Filter{}
	config = fs.String("config", env("TABREV_CONFIG", ""), "config file path")
	fs.StringVar(&f.LawID, "law", "", "restrict to one law")
	fs.StringVar(&f.Version, "version", "", "restrict to one version (requires -law)")
	fs.BoolVar(&f.LatestOnly, "latest", false, "keep only each law's highest version")
	return config, f
}

func cmdExtract(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	config, filter := commonFlags(fs)
	fs.Parse(args)

	e, _, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.Extract(ctx, *filter)
	if err != nil {
		return err
	}
	fmt.Printf("extracted %d streams, %d tables", res.Processed, res.Tables)
	if len(res.Failed) > 0 {
		fmt.Printf(", %d failed", len(res.Failed))
	}
	fmt.Println()
	for item, reason := range res.Failed {
		fmt.Printf("  failed %s: %s\n", item, reason)
	}
	return nil
}

func cmdReview(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	config, filter := commonFlags(fs)
	mode := fs.String("mode", "tui", "reviewer mode: sim, tui or web")
	resume := fs.Bool("resume", false, "resume the previous checkpoint")
	fs.Parse(args)

	e, cfg, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	var port reviewer.Port
	switch *mode {
	case "sim":
		port = reviewer.Simulated{}
	case "tui":
		port = tui.New()
	case "web":
		bridge := webui.New(webui.Options{Logger: logger})
		addr := cfg.ListenWeb
		if addr == "" {
			addr = "127.0.0.1:8090"
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           bridge.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("web reviewer listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("web reviewer", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
		port = bridge
	default:
		return fmt.Errorf("unknown review mode %q", *mode)
	}

	prog, err := e.Review(ctx, *filter, port, *resume)
	if err != nil {
		return err
	}
	fmt.Printf("batch %s: %d completed, %d failed (%s)\n",
		prog.BatchID, len(prog.CompletedItemIDs), len(prog.FailedItemIDs), prog.Status)
	for item, reason := range prog.FailedItemIDs {
		fmt.Printf("  failed %s: %s\n", item, reason)
	}
	return nil
}

func cmdStatus(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	config := fs.String("config", env("TABREV_CONFIG", ""), "config file path")
	law := fs.String("law", "", "per-version detail for one law")
	fs.Parse(args)

	e, _, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	if *law != "" {
		files, err := e.Files(ctx, *law)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s/%s  %s  %d tables (%d undefined)\n",
				f.LawID, f.Version, f.Status, f.Total, f.Undefined)
		}
		return nil
	}

	sum, err := e.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d files (%d completed), %d tables, %.1f%% reviewed\n",
		sum.Files, sum.CompletedFiles, sum.Tables, sum.CompletionPercent())
	fmt.Printf("confirmed %d, edited %d, rejected %d, merged %d, undefined %d\n",
		sum.Confirmed, sum.Edited, sum.Rejected, sum.Merged, sum.Undefined)
	return nil
}

func keyFlags(fs *flag.FlagSet) (config, law, version *string) {
	config = fs.String("config", env("TABREV_CONFIG", ""), "config file path")
	law = fs.String("law", "", "law identifier")
	version = fs.String("version", "", "version (nachtragsnummer)")
	return
}

func cmdReset(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	config, law, version := keyFlags(fs)
	all := fs.Bool("all", false, "reset every correction file in the store")
	fs.Parse(args)

	e, _, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	switch {
	case *all:
		n, err := e.ResetAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("reset %d correction files\n", n)
	case *law != "" && *version != "":
		k := corrstore.Key{LawID: *law, Version: *version}
		if err := e.Reset(ctx, k); err != nil {
			return err
		}
		fmt.Printf("reset %s\n", k)
	case *law != "":
		n, err := e.ResetLaw(ctx, *law)
		if err != nil {
			return err
		}
		fmt.Printf("reset %d versions of %s\n", n, *law)
	default:
		return fmt.Errorf("reset requires -all, -law, or -law with -version")
	}
	return nil
}

func cmdRegenerate(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("regenerate", flag.ExitOnError)
	config, law, version := keyFlags(fs)
	fs.Parse(args)
	if *law == "" || *version == "" {
		return fmt.Errorf("regenerate requires -law and -version")
	}

	e, _, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	k := corrstore.Key{LawID: *law, Version: *version}
	if err := e.Regenerate(ctx, k); err != nil {
		return err
	}
	fmt.Printf("regenerated %s\n", k)
	return nil
}

func cmdUnmerge(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("unmerge", flag.ExitOnError)
	config, law, version := keyFlags(fs)
	hash := fs.String("hash", "", "table hash to unmerge")
	fs.Parse(args)
	if *law == "" || *version == "" || *hash == "" {
		return fmt.Errorf("unmerge requires -law, -version and -hash")
	}

	e, _, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	k := corrstore.Key{LawID: *law, Version: *version}
	if err := e.Unmerge(ctx, k, *hash); err != nil {
		return err
	}
	fmt.Printf("unmerged %s in %s\n", *hash, k)
	return nil
}

func cmdMCP(ctx context.Context, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	config := fs.String("config", env("TABREV_CONFIG", ""), "config file path")
	fs.Parse(args)

	e, _, err := newEngine(*config, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "tabrev",
		Version: "1.0.0",
	}, nil)
	e.RegisterMCP(srv)

	logger.Info("MCP server starting on stdio")
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
