// Package telegram provides the Telegram bot for admin notifications and commands.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot wraps the Telegram bot API.
type Bot struct {
	api         *tgbotapi.BotAPI
	log         *zap.Logger
	adminChatID int64
	handler     *CommandHandler
}

// New creates a Bot. Returns nil if token is empty (Telegram disabled).
func New(log *zap.Logger, token string, adminChatID int64, handler *CommandHandler) (*Bot, error) {
	if token == "" {
		return nil, nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram.New: %w", err)
	}
	return &Bot{
		api:         api,
		log:         log.Named("telegram"),
		adminChatID: adminChatID,
		handler:     handler,
	}, nil
}

// SetHandler attaches the command handler. Call before Start.
func (b *Bot) SetHandler(h *CommandHandler) {
	if b == nil {
		return
	}
	b.handler = h
}

// Username returns the bot's @handle.
func (b *Bot) Username() string {
	if b == nil {
		return ""
	}
	return b.api.Self.UserName
}

// Send sends a plain text message to the admin chat. Cipher output is full
// of Markdown control characters, so no parse mode is set.
func (b *Bot) Send(msg string) error {
	if b == nil {
		return nil
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(b.adminChatID, msg)); err != nil {
		return fmt.Errorf("telegram.Send: %w", err)
	}
	return nil
}

// Start begins polling for updates and blocks until ctx is done.
// Only processes messages from adminChatID.
func (b *Bot) Start(ctx context.Context) {
	if b == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info("polling", zap.String("bot", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if q := update.CallbackQuery; q != nil {
				if q.Message == nil || q.Message.Chat.ID != b.adminChatID {
					continue
				}
				b.handleCallback(ctx, q)
				continue
			}
			if update.Message == nil || update.Message.Chat.ID != b.adminChatID {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.handler == nil || !msg.IsCommand() {
		return
	}
	r := b.handler.Respond(ctx, msg.Command(), msg.CommandArguments())
	b.reply(msg.Chat.ID, r)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if b.handler != nil {
		b.reply(query.Message.Chat.ID, b.handler.HandleCallback(ctx, query.Data))
	}
	ack := tgbotapi.NewCallback(query.ID, "")
	if _, err := b.api.Request(ack); err != nil {
		b.log.Warn("ack callback", zap.Error(err))
	}
}

// reply sends a Reply, attaching a reverse button when it carries a ref.
func (b *Bot) reply(chatID int64, r Reply) {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if r.Ref != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("↩ Reverse", reversePrefix+r.Ref),
			),
		)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
