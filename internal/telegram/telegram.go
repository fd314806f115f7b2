// Package telegram encapsulates transport layer (not OSI, but generally telegram receive/send handlers).
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"will-bot/internal/dispatcher"
)

// Opts is a carrier of options for Bot.
type Opts struct {
	Token string
	Debug bool
}

// Bot wraps a third-party telegram API implementation. It receives updates
// either over a webhook or a long-poll loop and relays replies produced by
// the dispatcher.
type Bot struct {
	api             *tgbotapi.BotAPI
	eventDispatcher *dispatcher.EventDispatcher
}

// NewBot instantiates underlying BotAPI instance and returns a new configured Bot.
// The dispatcher is attached separately because it needs the bot's chat
// actions as a dependency.
func NewBot(opts Opts) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init bot-api instance: %w", err)
	}
	slog.Info("authorized on account", "name", api.Self.UserName)
	api.Debug = opts.Debug

	return &Bot{api: api}, nil
}

// AttachDispatcher wires the event dispatcher. Must be called before Listen
// or WebhookHandler.
func (b *Bot) AttachDispatcher(ed *dispatcher.EventDispatcher) {
	b.eventDispatcher = ed
}

// DeleteMessage removes a message from the chat history.
func (b *Bot) DeleteMessage(chatID int64, messageID int) error {
	_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// SendTyping shows the "typing..." chat action in the given chat.
func (b *Bot) SendTyping(chatID int64) error {
	_, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// WebhookPath is the route updates arrive on. The bot token keeps the
// endpoint unguessable, same trick Telegram's own docs suggest.
func (b *Bot) WebhookPath() string {
	return "/" + b.api.Token
}

// RegisterWebhook points Telegram at publicURL + WebhookPath and returns the
// registered link.
func (b *Bot) RegisterWebhook(publicURL string) (string, error) {
	link := strings.TrimRight(publicURL, "/") + b.WebhookPath()

	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return "", fmt.Errorf("failed to build webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return "", fmt.Errorf("failed to register webhook: %w", err)
	}

	return link, nil
}

// WebhookHandler parses one update per request, dispatches it, and sends the
// reply before acknowledging Telegram.
func (b *Bot) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			slog.WarnContext(r.Context(), "failed to parse webhook update", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		b.handleUpdate(r.Context(), *update)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

// Listen runs the long-poll update loop, used when no public URL is
// configured. Blocks until the context is cancelled.
func (b *Bot) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		slog.WarnContext(ctx, "got update without usable message", "update_id", update.UpdateID)
		return
	}

	message := update.Message
	slog.InfoContext(ctx, "message received", "user", message.From.UserName, "chat_id", message.Chat.ID)

	reply := b.eventDispatcher.DispatchMessage(ctx, message)
	if reply.Text == "" {
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, reply.Text)
	msg.ParseMode = reply.ParseMode
	msg.ReplyToMessageID = message.MessageID
	// The /setkey flow deletes the message being replied to.
	msg.AllowSendingWithoutReply = true

	if _, err := b.api.Send(msg); err != nil {
		slog.ErrorContext(ctx, "failed to send reply", "chat_id", message.Chat.ID, "error", err)
	}
}
