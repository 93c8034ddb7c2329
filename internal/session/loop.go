// Package session runs the query loop against an indexed channel:
// interactive from a terminal, or batch over a list of prompts. Every
// answered prompt is recorded in chat history and the cost ledger.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kalambet/ytrag/internal/costs"
	"github.com/kalambet/ytrag/internal/genai"
	"github.com/kalambet/ytrag/internal/storage"
)

// Dispatcher answers a single grounded prompt.
type Dispatcher interface {
	Generate(ctx context.Context, model, prompt, storeName string) (*genai.GenerateResult, error)
}

// Loop drives the query session. Control words are matched before
// anything is sent to the model: quit/exit/q end the session, cost
// prints a spending report, history prints recent exchanges.
type Loop struct {
	dispatcher Dispatcher
	store      *storage.Store
	model      string
	channel    string
	storeID    string
	in         io.Reader
	out        io.Writer
	clock      func() time.Time
	logger     *slog.Logger
}

func NewLoop(d Dispatcher, store *storage.Store, model, channel, storeID string, in io.Reader, out io.Writer) *Loop {
	return &Loop{
		dispatcher: d,
		store:      store,
		model:      model,
		channel:    channel,
		storeID:    storeID,
		in:         in,
		out:        out,
		clock:      time.Now,
		logger:     slog.Default(),
	}
}

// SetStoreID retargets subsequent exchanges at a different search store.
// Used when ingestion creates the store after the loop was built.
func (l *Loop) SetStoreID(id string) { l.storeID = id }

const historyPreviewSize = 5

// Run reads prompts until a quit word or EOF. Failed exchanges are
// reported and recorded but never end the session.
func (l *Loop) Run(ctx context.Context) error {
	fmt.Fprintln(l.out, "Ask questions about the channel's videos. Type 'quit' to exit, 'cost' for spending, 'history' for recent exchanges.")
	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(l.out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(l.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			fmt.Fprintln(l.out, "Goodbye.")
			return nil
		case "cost":
			costs.WriteSummary(l.out, l.store.Costs(), l.clock())
			continue
		case "history":
			l.printHistory()
			continue
		}

		turn, err := l.Exchange(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(l.out, "Query failed: %v\n", err)
			continue
		}
		fmt.Fprintf(l.out, "\n%s\n", turn.Response)
	}
}

// RunPrompts answers each prompt in order, printing prompt and answer.
// A failed prompt is reported and the batch continues.
func (l *Loop) RunPrompts(ctx context.Context, prompts []string) error {
	for _, p := range prompts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fmt.Fprintf(l.out, "\n> %s\n", p)
		turn, err := l.Exchange(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(l.out, "Query failed: %v\n", err)
			continue
		}
		fmt.Fprintf(l.out, "\n%s\n", turn.Response)
	}
	return nil
}

// Exchange sends one prompt to the model and records the outcome. On
// success the turn and a query cost event are persisted; on failure a
// failed turn is persisted with zero cost so history shows the attempt.
func (l *Loop) Exchange(ctx context.Context, prompt string) (storage.ChatTurn, error) {
	turn := storage.ChatTurn{
		ID:        uuid.New().String(),
		Timestamp: l.clock().UTC(),
		Prompt:    prompt,
		Model:     l.model,
		Channel:   l.channel,
	}

	res, err := l.dispatcher.Generate(ctx, l.model, prompt, l.storeID)
	if err != nil {
		turn.Failed = true
		turn.Response = fmt.Sprintf("ERROR: %v", err)
		if saveErr := l.store.AppendTurn(turn); saveErr != nil {
			l.logger.Error("recording failed turn", "error", saveErr)
		}
		return turn, err
	}

	cost := costs.QueryCost(res.InputTokens, res.OutputTokens)
	turn.Response = res.Text
	turn.InputTokens = res.InputTokens
	turn.OutputTokens = res.OutputTokens
	turn.CostUSD = cost

	if err := l.store.AppendTurn(turn); err != nil {
		return turn, fmt.Errorf("recording chat turn: %w", err)
	}
	if err := l.store.AppendCost(storage.CostEvent{
		ID:        uuid.New().String(),
		Timestamp: turn.Timestamp,
		Kind:      storage.KindQuery,
		Tokens:    res.InputTokens + res.OutputTokens,
		CostUSD:   cost,
		Metadata:  map[string]string{"model": l.model},
	}); err != nil {
		return turn, fmt.Errorf("recording query cost: %w", err)
	}
	return turn, nil
}

func (l *Loop) printHistory() {
	turns := l.store.RecentTurns(historyPreviewSize)
	if len(turns) == 0 {
		fmt.Fprintln(l.out, "No chat history yet.")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(l.out, "[%s] %s\n", t.Timestamp.Local().Format("2006-01-02 15:04"), t.Prompt)
		resp := t.Response
		if utf8.RuneCountInString(resp) > 200 {
			resp = string([]rune(resp)[:200]) + "..."
		}
		fmt.Fprintf(l.out, "    %s\n", resp)
	}
}
