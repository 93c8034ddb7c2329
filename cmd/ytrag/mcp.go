package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/ytrag/internal/api"
	"github.com/kalambet/ytrag/internal/config"
	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/ingest"
	"github.com/kalambet/ytrag/internal/scrape"
	"github.com/kalambet/ytrag/internal/session"
	"github.com/kalambet/ytrag/internal/storage"
)

// cachedStoreAsker re-resolves the store ID before each exchange, so
// questions asked after an in-session ingest hit the fresh store.
type cachedStoreAsker struct {
	loop  *session.Loop
	store *storage.Store
	key   string
}

func (a *cachedStoreAsker) Exchange(ctx context.Context, prompt string) (storage.ChatTurn, error) {
	if entry, ok := a.store.StoreEntry(a.key); ok {
		a.loop.SetStoreID(entry.StoreID)
	}
	return a.loop.Exchange(ctx, prompt)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP (stdio transport)",
	Long: `Serve ask, ingest_channel, cost_summary and chat_history as MCP tools
over stdio, for use by MCP-capable agents and editors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Stdout carries the protocol; all diagnostics go to stderr.
	setupLogging(cfg.Log.Level)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := genai.Authenticate(ctx, cfg.Gemini.BaseURL)
	if err != nil {
		return err
	}

	storeID := ""
	if entry, ok := store.StoreEntry(cfg.Gemini.StoreKey); ok {
		storeID = entry.StoreID
	}

	scraper := scrape.New(
		scrape.WithRate(cfg.Scrape.RatePerSec),
		scrape.WithTimeout(time.Duration(cfg.Scrape.PageTimeoutSec)*time.Second),
	)
	coord := ingest.New(scraper, client, store, cfg.TranscriptsDir(), cfg.Gemini.StoreKey)
	loop := session.NewLoop(client, store, cfg.Gemini.DefaultModel, "", storeID, os.Stdin, io.Discard)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:    store,
		Asker:    &cachedStoreAsker{loop: loop, store: store, key: cfg.Gemini.StoreKey},
		Ingester: coord,
	})

	slog.Info("MCP server started (stdio transport)")
	stdioSrv := server.NewStdioServer(mcpSrv)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
