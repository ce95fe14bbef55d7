package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/metrics"
	"waste-bot/api/internal/session"
	"waste-bot/api/internal/store"
)

// BotAPI: то, что роутеру нужно от *tgbotapi.BotAPI.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type History interface {
	Insert(ctx context.Context, ev session.Event) (int64, error)
	CountByLabel(ctx context.Context, since time.Time) (map[string]int, error)
	Recent(ctx context.Context, chatID int64, limit int) ([]session.Event, error)
}

const historyLimit = 10

type Publisher interface {
	Publish(ctx context.Context, ev session.Event) error
}

type Router struct {
	Bot        BotAPI
	EngManager *classify.Manager
	Engines    classify.Engines
	Table      guide.Table
	Threshold  float64
	VideoDir   string

	History   History
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	batches sync.Map // key -> *photoBatch
	last    sync.Map // chatID -> []photo, для /again
}

func (r *Router) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Router) table() guide.Table {
	if r.Table == nil {
		return guide.Default()
	}
	return r.Table
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.HandleCommand(ctx, upd.Message)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(ctx, *upd.Message)
		return
	}
	if upd.Message.Document != nil && strings.HasPrefix(upd.Message.Document.MimeType, "image/") {
		r.acceptPhoto(ctx, *upd.Message)
		return
	}
	if upd.Message.Text != "" {
		r.send(upd.Message.Chat.ID, "Send a photo of the item and I will tell you how to dispose of it.")
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		r.send(cid, "✅ OK, engine: "+r.EngManager.Get(cid).Name())
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	case "labels":
		r.send(cid, labelsText(r.table()))
	case "stats":
		r.handleStats(ctx, cid)
	case "history":
		r.handleHistory(ctx, cid)
	case "again":
		v, ok := r.last.Load(cid)
		if !ok {
			r.send(cid, "Nothing to classify yet. Send a photo first.")
			return
		}
		go r.classifyBatch(context.WithoutCancel(ctx), cid, v.([]photo))
	default:
		r.send(cid, "Unknown command. Try /start")
	}
}

const startText = "Send a photo of a waste item (or an album) and I will show how to dispose of it.\n" +
	"Commands: /labels, /engine, /stats, /history, /again, /health"

// handleEngineCommand: /engine {tm|onnx|gemini|gpt} [model]
func (r *Router) handleEngineCommand(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		cur := r.EngManager.Get(chatID)
		r.send(chatID, fmt.Sprintf("Current engine: %s (%s)\nUsage: /engine {%s} [model]",
			cur.Name(), cur.GetModel(), strings.Join(r.Engines.Names(), "|")))
		return
	}
	eng, err := r.Engines.Get(fields[0])
	if err != nil {
		r.send(chatID, "Unknown engine. Available: "+strings.Join(r.Engines.Names(), " | "))
		return
	}

	// модель меняется только для этого чата
	if len(fields) > 1 {
		if ms, ok := eng.(classify.ModelSwitcher); ok {
			eng = ms.WithModel(fields[1])
		}
	}
	r.EngManager.Set(chatID, eng)
	r.send(chatID, "✅ Engine: "+eng.Name()+" ("+eng.GetModel()+")")
}

func (r *Router) handleStats(ctx context.Context, chatID int64) {
	if r.History == nil {
		r.send(chatID, "History is disabled.")
		return
	}
	since := time.Now().Add(-7 * 24 * time.Hour)
	counts, err := r.History.CountByLabel(ctx, since)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, statsText(r.table(), counts))
}

func (r *Router) handleHistory(ctx context.Context, chatID int64) {
	if r.History == nil {
		r.send(chatID, "History is disabled.")
		return
	}
	events, err := r.History.Recent(ctx, chatID, historyLimit)
	if errors.Is(err, store.ErrNotFound) {
		r.send(chatID, "No guidance shown in this chat yet.")
		return
	}
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.send(chatID, historyText(r.table(), events))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Classification error: %v", err))
}

func labelsText(t guide.Table) string {
	var b strings.Builder
	b.WriteString("Known categories:\n")
	for _, l := range classify.Known {
		fmt.Fprintf(&b, "• %s: %s\n", t.DisplayName(l), t.Instruction(l))
	}
	fmt.Fprintf(&b, "• %s: %s", t.DisplayName(classify.General), t.Instruction(classify.General))
	return b.String()
}

func historyText(t guide.Table, events []session.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d in this chat:\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "%s %s (%.0f%%, %s)\n", ev.At.Format("02.01 15:04"),
			t.DisplayName(classify.Label(ev.Label)), ev.Confidence*100, ev.Engine)
	}
	return strings.TrimRight(b.String(), "\n")
}

func statsText(t guide.Table, counts map[string]int) string {
	if len(counts) == 0 {
		return "No guidance shown in the last 7 days."
	}
	labels := make([]string, 0, len(counts))
	total := 0
	for l, n := range counts {
		labels = append(labels, l)
		total += n
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Last 7 days, %d items:\n", total)
	for _, l := range labels {
		fmt.Fprintf(&b, "%s: %d\n", t.DisplayName(classify.Label(l)), counts[l])
	}
	return strings.TrimRight(b.String(), "\n")
}
