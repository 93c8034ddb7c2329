package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/ytrag/internal/config"
	"github.com/kalambet/ytrag/internal/costs"
	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/ingest"
	"github.com/kalambet/ytrag/internal/scrape"
	"github.com/kalambet/ytrag/internal/session"
	"github.com/kalambet/ytrag/internal/storage"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "ytrag",
	Short: "Ask questions about YouTube channels using their video transcripts",
	Long: `ytrag scrapes a YouTube channel's latest video transcripts, indexes them
in a Gemini File Search store, and answers questions grounded in that content.

Examples:
  ytrag --channel https://www.youtube.com/@somechannel --numvideos 10
  ytrag --skip-scraping --prompt "What topics were covered recently?"
  ytrag --cost-report`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(cmd)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		failf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("channel", "", "YouTube channel URL, @handle URL, or /channel/ID URL")
	rootCmd.Flags().Int("numvideos", 5, "how many recent videos to process")
	rootCmd.Flags().StringArray("prompt", nil, "run a prompt non-interactively (repeatable)")
	rootCmd.Flags().String("model", "", "Gemini model to query (default from config)")
	rootCmd.Flags().Bool("skip-scraping", false, "skip ingestion and query the existing index")
	rootCmd.Flags().Bool("cost-report", false, "print the full cost report and exit")
	rootCmd.Flags().String("cost-query", "", "print costs for a time window (e.g. 'this week') and exit")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(costCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ytrag version %s\n", version)
	},
}

func runRoot(cmd *cobra.Command) error {
	channel, _ := cmd.Flags().GetString("channel")
	numVideos, _ := cmd.Flags().GetInt("numvideos")
	prompts, _ := cmd.Flags().GetStringArray("prompt")
	model, _ := cmd.Flags().GetString("model")
	skipScraping, _ := cmd.Flags().GetBool("skip-scraping")
	costReport, _ := cmd.Flags().GetBool("cost-report")
	costQuery, _ := cmd.Flags().GetString("cost-query")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	// Cost reporting reads only the local ledger, no credentials needed.
	if costReport {
		costs.WriteSummary(os.Stdout, store.Costs(), time.Now())
		return nil
	}
	if costQuery != "" {
		w := costs.Resolve(costQuery, time.Now())
		costs.WriteWindow(os.Stdout, costs.Summarize(store.Costs(), w))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stepf("Authenticating with Gemini...")
	client, err := genai.Authenticate(ctx, cfg.Gemini.BaseURL)
	if err != nil {
		if errors.Is(err, genai.ErrUnauthenticated) {
			failf("No working credentials found.")
			fmt.Fprintln(os.Stderr, "Set GEMINI_API_KEY or run: gcloud auth application-default login")
		}
		return err
	}
	successf("Authenticated")

	if model == "" {
		model = cfg.Gemini.DefaultModel
	}

	if !skipScraping {
		if channel == "" {
			channel = promptForChannel(prompts)
		}
		if channel == "" {
			return fmt.Errorf("--channel is required (or use --skip-scraping)")
		}
	}

	scraper := scrape.New(
		scrape.WithRate(cfg.Scrape.RatePerSec),
		scrape.WithTimeout(time.Duration(cfg.Scrape.PageTimeoutSec)*time.Second),
	)
	storeID, err := resolveIndex(ctx, scraper, client, store, cfg.TranscriptsDir(), cfg.Gemini.StoreKey, channel, numVideos, skipScraping)
	if err != nil {
		return err
	}

	loop := session.NewLoop(client, store, model, channel, storeID, os.Stdin, os.Stdout)
	if len(prompts) > 0 {
		return loop.RunPrompts(ctx, prompts)
	}
	return loop.Run(ctx)
}

// resolveIndex returns the remote store to query. Under --skip-scraping the
// scraper is never invoked and only the cached mapping is consulted;
// otherwise the channel is ingested first. Either way a run with nothing
// newly uploaded falls back to the cached store so earlier indexed content
// stays queryable.
func resolveIndex(ctx context.Context, scraper ingest.Scraper, remote ingest.Uploader, store *storage.Store, transcriptDir, storeKey, channel string, numVideos int, skipScraping bool) (string, error) {
	if skipScraping {
		entry, ok := store.StoreEntry(storeKey)
		if !ok {
			return "", fmt.Errorf("no indexed content yet; run without --skip-scraping first")
		}
		reportLine("Index", "%d videos", store.IndexSize())
		return entry.StoreID, nil
	}

	coord := ingest.New(scraper, remote, store, transcriptDir, storeKey)

	stepf("Fetching latest %d videos from %s", numVideos, channel)
	rep, err := coord.Run(ctx, channel, numVideos)
	if err != nil {
		return "", err
	}

	reportLine("Found", "%d videos", rep.Found)
	reportLine("Indexed", "%d new", rep.Ingested)
	if rep.Skipped > 0 {
		reportLine("Skipped", "%d already indexed", rep.Skipped)
	}
	if rep.NoTranscript > 0 {
		reportLine("No transcript", "%d", rep.NoTranscript)
	}
	if rep.Failed > 0 {
		warnf("%d videos failed to ingest", rep.Failed)
	}
	if rep.Ingested > 0 {
		reportLine("Indexing cost", "$%.6f USD (%d tokens)", rep.EstimatedCostUSD, rep.EstimatedTokens)
	}

	if rep.StoreID != "" {
		return rep.StoreID, nil
	}
	// The channel listed nothing new; reuse the store from an earlier run.
	entry, ok := store.StoreEntry(storeKey)
	if !ok {
		return "", fmt.Errorf("nothing indexed for this channel yet")
	}
	return entry.StoreID, nil
}

// promptForChannel asks on the terminal when no channel flag was given and
// the run is interactive. Batch runs never block on input.
func promptForChannel(prompts []string) string {
	if len(prompts) > 0 {
		return ""
	}
	fmt.Fprint(os.Stderr, "Enter YouTube channel URL: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func openStore(cfg config.Config) (*storage.Store, error) {
	store, err := storage.Open(cfg.Data.Dir)
	if err != nil {
		var cfgErr *storage.ConfigError
		if errors.As(err, &cfgErr) {
			failf("Corrupt data file: %s", cfgErr.Path)
			fmt.Fprintln(os.Stderr, "Fix or remove the file and try again.")
		}
		return nil, err
	}
	return store, nil
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
