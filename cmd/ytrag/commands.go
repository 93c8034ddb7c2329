package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kalambet/ytrag/internal/config"
	"github.com/kalambet/ytrag/internal/costs"
	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/storage"
)

// --- cost ---

var costCmd = &cobra.Command{
	Use:   "cost [window]",
	Short: "Report accumulated API spending",
	Long: `Report accumulated API spending from the local cost ledger.

Examples:
  ytrag cost
  ytrag cost today
  ytrag cost "this week"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			costs.WriteSummary(os.Stdout, store.Costs(), time.Now())
			return nil
		}

		query := strings.Join(args, " ")
		w := costs.Resolve(query, time.Now())
		costs.WriteWindow(os.Stdout, costs.Summarize(store.Costs(), w))
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage chat history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent exchanges",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		turns := store.RecentTurns(limit)
		if len(turns) == 0 {
			fmt.Println("No chat history yet.")
			return nil
		}
		printTurns(turns)
		return nil
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search exchanges by substring",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		turns := store.SearchTurns(query)
		if len(turns) == 0 {
			fmt.Println("No matching exchanges.")
			return nil
		}
		printTurns(turns)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export chat history as JSONL or plain text",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		if format != "json" && format != "txt" {
			return fmt.Errorf("unknown format %q (valid: json, txt)", format)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		var writer *os.File
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		} else {
			writer = os.Stdout
		}

		if format == "txt" {
			for _, turn := range store.Turns() {
				fmt.Fprintf(writer, "[%s] %s\n", turn.Timestamp.Format(time.RFC3339), turn.Prompt)
				fmt.Fprintf(writer, "%s\n\n", turn.Response)
			}
		} else {
			enc := json.NewEncoder(writer)
			for _, turn := range store.Turns() {
				if err := enc.Encode(turn); err != nil {
					return err
				}
			}
		}

		if output != "" {
			successf("History exported to %s", output)
		}
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all chat history",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			warnf("This will delete ALL chat history. Use --confirm to proceed.")
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		if err := store.ClearHistory(); err != nil {
			return err
		}
		successf("Chat history cleared")
		return nil
	},
}

func printTurns(turns []storage.ChatTurn) {
	for _, t := range turns {
		marker := ""
		if t.Failed {
			marker = paint(ansiRed, " [failed]")
		}
		fmt.Printf("\n%s %s%s\n", paint(ansiCyan, t.Timestamp.Local().Format("2006-01-02 15:04")), t.Prompt, marker)
		resp := t.Response
		if utf8.RuneCountInString(resp) > 300 {
			resp = string([]rune(resp)[:300]) + "..."
		}
		fmt.Printf("  %s\n", resp)
		if t.CostUSD > 0 {
			fmt.Printf("  %s $%.6f (%d in / %d out tokens)\n", paint(ansiBold, "cost:"), t.CostUSD, t.InputTokens, t.OutputTokens)
		}
	}
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of exchanges to list")
	historyExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	historyExportCmd.Flags().String("format", "json", "export format: json (JSONL) or txt")
	historyClearCmd.Flags().Bool("confirm", false, "confirm history deletion")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// --- store ---

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect or delete the remote search store",
}

var storeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the search store and indexed videos",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		entries := store.StoreEntries()
		if len(entries) == 0 {
			fmt.Println("No search store created yet.")
			return nil
		}
		for key, e := range entries {
			fmt.Printf("%s %s\n", paint(ansiBold, key+":"), e.StoreID)
			fmt.Printf("  created %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04"))
		}

		ids := store.IndexedIDs()
		reportLine("Indexed videos", "%d", len(ids))
		for _, id := range ids {
			entry, ok := store.IndexEntry(id)
			if !ok {
				continue
			}
			fmt.Printf("  %s  %s\n", paint(ansiCyan, id), entry.Title)
		}
		return nil
	},
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the remote search store and local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			warnf("This will delete the remote search store and the local index cache. Use --confirm to proceed.")
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		entry, ok := store.StoreEntry(cfg.Gemini.StoreKey)
		if !ok {
			fmt.Println("No search store to delete.")
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := genai.Authenticate(ctx, cfg.Gemini.BaseURL)
		if err != nil {
			return err
		}

		stepf("Deleting store %s...", entry.StoreID)
		if err := client.DeleteStore(ctx, entry.StoreID); err != nil {
			warnf("Remote delete failed: %v", err)
		}
		if err := store.DeleteStoreEntry(cfg.Gemini.StoreKey); err != nil {
			return err
		}
		successf("Store deleted")
		return nil
	},
}

func init() {
	storeDeleteCmd.Flags().Bool("confirm", false, "confirm store deletion")
	storeCmd.AddCommand(storeShowCmd)
	storeCmd.AddCommand(storeDeleteCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", paint(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		successf("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
