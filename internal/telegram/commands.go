package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/jejecipher/internal/cipher"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/history"
	"github.com/yourusername/jejecipher/internal/transform"
)

const reversePrefix = "rev_"

// Transformer runs encode and decode requests.
type Transformer interface {
	Run(ctx context.Context, mode string, req transform.Request) (*transform.Result, error)
}

// HistoryReader reads recorded transforms.
type HistoryReader interface {
	Get(ctx context.Context, ref string) (*db.Transform, error)
	List(ctx context.Context, f history.Filter) ([]db.Transform, int, error)
	Stats(ctx context.Context) (history.Stats, error)
}

// Reply is a command response. A non-empty Ref gets an inline button that
// runs the opposite transform on the output.
type Reply struct {
	Text string
	Ref  string
}

// CommandHandler handles Telegram bot commands.
type CommandHandler struct {
	svc     Transformer
	history HistoryReader
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(svc Transformer, hist HistoryReader) *CommandHandler {
	return &CommandHandler{svc: svc, history: hist}
}

// Respond dispatches a command to the matching handler.
func (h *CommandHandler) Respond(ctx context.Context, command, args string) Reply {
	switch command {
	case "encode":
		return h.handleTransform(ctx, db.ModeEncode, args)
	case "decode":
		return h.handleTransform(ctx, db.ModeDecode, args)
	case "legend":
		return Reply{Text: formatLegend(cipher.Legend())}
	case "history":
		return h.handleHistory(ctx)
	case "stats":
		return h.handleStats(ctx)
	case "help", "start":
		return Reply{Text: helpText}
	default:
		return Reply{Text: "Unknown command. Use /help for a list of commands."}
	}
}

// HandleCallback processes inline keyboard button presses.
func (h *CommandHandler) HandleCallback(ctx context.Context, data string) Reply {
	ref, ok := strings.CutPrefix(data, reversePrefix)
	if !ok {
		return Reply{Text: "Unknown action."}
	}
	t, err := h.history.Get(ctx, ref)
	if errors.Is(err, history.ErrNotFound) {
		return Reply{Text: "That transform is no longer in history."}
	}
	if err != nil {
		return Reply{Text: "Error fetching history."}
	}
	mode := db.ModeDecode
	if t.Mode == db.ModeDecode {
		mode = db.ModeEncode
	}
	return h.run(ctx, mode, t.Output)
}

func (h *CommandHandler) handleTransform(ctx context.Context, mode, args string) Reply {
	if strings.TrimSpace(args) == "" {
		return Reply{Text: fmt.Sprintf("Usage: /%s <text>", mode)}
	}
	return h.run(ctx, mode, args)
}

func (h *CommandHandler) run(ctx context.Context, mode, text string) Reply {
	res, err := h.svc.Run(ctx, mode, transform.Request{Text: text, Source: transform.SourceTelegram})
	if errors.Is(err, transform.ErrInputTooLarge) {
		return Reply{Text: "Text is too long."}
	}
	if err != nil {
		return Reply{Text: fmt.Sprintf("Error: %v", err)}
	}
	return Reply{Text: res.Output, Ref: res.Ref}
}

func (h *CommandHandler) handleHistory(ctx context.Context) Reply {
	items, total, err := h.history.List(ctx, history.Filter{Limit: 10})
	if err != nil {
		return Reply{Text: "Error fetching history."}
	}
	return Reply{Text: formatHistory(items, total)}
}

func (h *CommandHandler) handleStats(ctx context.Context) Reply {
	st, err := h.history.Stats(ctx)
	if err != nil {
		return Reply{Text: "Error fetching stats."}
	}
	return Reply{Text: fmt.Sprintf("Transforms: %d\nEncoded: %d\nDecoded: %d\nToday: %d",
		st.Total, st.Encoded, st.Decoded, st.Today)}
}

const helpText = `jejecipher commands

/encode <text> - Encode text
/decode <text> - Decode text
/legend - Letter to symbol table
/history - Last 10 transforms
/stats - Transform counts
/help - This help`

func formatLegend(entries []cipher.Entry) string {
	var sb strings.Builder
	sb.WriteString("Legend\n\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "%s %s", e.Letter, e.Symbol)
		if i%4 == 3 || i == len(entries)-1 {
			sb.WriteByte('\n')
		} else {
			sb.WriteString("   ")
		}
	}
	fmt.Fprintf(&sb, "\nMarkers: %s consonant start, %s vowel start, %s after a vowel, %s five letters or more",
		cipher.PrefixConsonant, cipher.PrefixVowel, cipher.VowelMarker, cipher.LengthSuffix)
	return sb.String()
}

func formatHistory(items []db.Transform, total int) string {
	if len(items) == 0 {
		return "No transforms yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d of %d\n\n", len(items), total)
	for _, t := range items {
		fmt.Fprintf(&sb, "%s [%s] %s\n→ %s\n\n",
			t.CreatedAt.UTC().Format("01-02 15:04"), t.Mode, truncate(t.Input, 40), truncate(t.Output, 60))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
