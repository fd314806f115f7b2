// Package dispatcher maps inbound Telegram messages to replies. It is
// memoryless across messages: the only state it consults is the per-user key
// store, and the only side effects it performs go through ChatActions.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/dghubble/trie"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"will-bot/internal/keystore"
	"will-bot/internal/openrouter"
)

const completionTimeout = 90 * time.Second

// Completer issues one completion request on behalf of a user.
type Completer interface {
	CompleteChat(ctx context.Context, d *openrouter.CompleteChatData) (string, error)
}

// ChatActions is the slice of the Telegram API the dispatcher needs for side
// effects beyond replying.
type ChatActions interface {
	// DeleteMessage removes a message from the chat history.
	DeleteMessage(chatID int64, messageID int) error
	// SendTyping shows the "typing..." chat action while a completion is
	// in flight.
	SendTyping(chatID int64) error
}

// Reply is the dispatcher's answer to one inbound message.
type Reply struct {
	Text      string
	ParseMode string
}

// Deps is a carrier of dependencies for event dispatcher.
type Deps struct {
	Keys      keystore.Store
	Completer Completer
	Chat      ChatActions
}

// EventDispatcher dispatches commands according to command prefixes and other
// heuristics. Command inputs are handled via fuzzy search.
type EventDispatcher struct {
	keys      keystore.Store
	completer Completer
	chat      ChatActions

	commandTrie atomic.Pointer[trie.RuneTrie]
}

// NewEventDispatcher creates EventDispatcher instance with built command trie.
func NewEventDispatcher(deps Deps) (*EventDispatcher, error) {
	ed := &EventDispatcher{
		keys:      deps.Keys,
		completer: deps.Completer,
		chat:      deps.Chat,
	}
	if err := ed.buildTrie(); err != nil {
		return nil, err
	}

	return ed, nil
}

func (ed *EventDispatcher) buildTrie() error {
	commandTrie := trie.NewRuneTrie()
	for _, command := range commands {
		commandTrie.Put(string(command), command)
	}

	ed.commandTrie.Store(commandTrie)
	return nil
}

// DispatchMessage handles one inbound message and returns the reply to send.
func (ed *EventDispatcher) DispatchMessage(ctx context.Context, message *tgbotapi.Message) Reply {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	if message.IsCommand() {
		return ed.handleCommand(ctx, message)
	}

	return ed.handleChat(ctx, message)
}

func (ed *EventDispatcher) handleCommand(ctx context.Context, message *tgbotapi.Message) Reply {
	parsedCommands, exact := ed.getRelevantCommands(message.CommandWithAt())
	if !exact {
		if len(parsedCommands) == 0 {
			return Reply{Text: unexpectedCommandReply}
		}

		return Reply{Text: clarifyCommandReply(parsedCommands)}
	}

	command := parsedCommands[0]
	if reply, ok := constantReplies[command]; ok {
		return Reply{Text: reply}
	}

	switch command {
	case StartCommand:
		return startReply(message.From)
	case SetKeyCommand:
		return ed.handleSetKey(ctx, message)
	case MyKeyCommand:
		return ed.handleMyKey(ctx, message)
	case DelKeyCommand:
		return ed.handleDelKey(ctx, message)
	}

	return Reply{Text: unexpectedCommandReply}
}

func (ed *EventDispatcher) handleSetKey(ctx context.Context, message *tgbotapi.Message) Reply {
	key := strings.TrimSpace(message.CommandArguments())
	if key == "" {
		return Reply{Text: setKeyUsageReply}
	}

	userID := message.From.ID
	if err := ed.keys.Set(ctx, userID, key); err != nil {
		slog.ErrorContext(ctx, "failed to store api key", "user_id", userID, "error", err)
		return Reply{Text: genericErrorReply}
	}
	slog.InfoContext(ctx, "api key set", "user_id", userID)

	// The triggering message still holds the plaintext key; get it out of
	// the chat history.
	if err := ed.chat.DeleteMessage(message.Chat.ID, message.MessageID); err != nil {
		slog.WarnContext(ctx, "could not delete the key message", "user_id", userID, "error", err)
		return Reply{Text: keySavedManualDeleteReply}
	}

	return Reply{Text: keySavedReply}
}

func (ed *EventDispatcher) handleMyKey(ctx context.Context, message *tgbotapi.Message) Reply {
	key, err := ed.keys.Get(ctx, message.From.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read api key", "user_id", message.From.ID, "error", err)
		return Reply{Text: genericErrorReply}
	}
	if key == "" {
		return Reply{Text: noKeyToShowReply}
	}

	return Reply{
		Text:      fmt.Sprintf("You have an API key set: `%s`", maskKey(key)),
		ParseMode: tgbotapi.ModeMarkdown,
	}
}

func (ed *EventDispatcher) handleDelKey(ctx context.Context, message *tgbotapi.Message) Reply {
	removed, err := ed.keys.Delete(ctx, message.From.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete api key", "user_id", message.From.ID, "error", err)
		return Reply{Text: genericErrorReply}
	}
	if !removed {
		return Reply{Text: noKeyToRemoveReply}
	}

	return Reply{Text: keyRemovedReply}
}

func (ed *EventDispatcher) handleChat(ctx context.Context, message *tgbotapi.Message) Reply {
	userID := message.From.ID
	key, err := ed.keys.Get(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read api key", "user_id", userID, "error", err)
		return Reply{Text: genericErrorReply}
	}
	if key == "" {
		return Reply{Text: setKeyFirstReply}
	}

	if err := ed.chat.SendTyping(message.Chat.ID); err != nil {
		slog.WarnContext(ctx, "failed to send typing action", "chat_id", message.Chat.ID, "error", err)
	}

	response, err := ed.completer.CompleteChat(ctx, &openrouter.CompleteChatData{
		UserID:  userID,
		APIKey:  key,
		Content: message.Text,
	})
	if err != nil {
		switch {
		case openrouter.IsAuthError(err):
			return Reply{Text: invalidKeyReply}
		case errors.Is(err, openrouter.ErrRateLimited):
			return Reply{Text: tooManyRequestsReply}
		default:
			return Reply{Text: genericErrorReply}
		}
	}

	return Reply{Text: response}
}

func (ed *EventDispatcher) getRelevantCommands(command string) ([]Command, bool) {
	ct := ed.commandTrie.Load()
	if x := ct.Get(command); x != nil {
		return []Command{x.(Command)}, true
	}

	const maxDistance = 3
	var closestCommands []Command
	_ = ct.Walk(func(key string, value any) error {
		c := value.(Command)
		distance := levenshtein.ComputeDistance(command, key)
		if distance < maxDistance || strings.HasPrefix(key, command) {
			closestCommands = append(closestCommands, c)
		}
		return nil
	})

	return closestCommands, false
}

// maskKey renders a stored key as a short preview: first four characters, an
// ellipsis, last four characters.
func maskKey(key string) string {
	const edge = 4
	if len(key) < edge*2 {
		return "..."
	}
	return key[:edge] + "..." + key[len(key)-edge:]
}

const (
	unexpectedCommandReply = "I don't understand that command :("

	setKeyUsageReply = "Error: You must provide a key.\nUsage: /setkey <your_api_key>"
	keySavedReply    = "✅ OpenRouter API key saved successfully! " +
		"Your original message has been deleted for security.\n\n" +
		"Now you can start chatting."
	keySavedManualDeleteReply = "✅ OpenRouter API key saved! " +
		"(I couldn't delete your original message, please delete it manually)."
	noKeyToShowReply   = "You haven't set an API key yet. Use /setkey <your_key>."
	keyRemovedReply    = "🗑️ Your API key has been removed."
	noKeyToRemoveReply = "You don't have an API key to remove."

	setKeyFirstReply = "You must set your OpenRouter API key first. " +
		"Use the command: /setkey <your_api_key>"
	invalidKeyReply = "😔 Your OpenRouter API key seems to be incorrect or invalid. " +
		"Please try again with /setkey"
	genericErrorReply    = "😔 Sorry, an error occurred. Please try again later."
	tooManyRequestsReply = "Too many requests, please slow down a little."
)

func startReply(user *tgbotapi.User) Reply {
	name := ""
	if user != nil {
		name = user.FirstName
	}

	text := fmt.Sprintf(
		"Hi <b>%s</b>, I'm <b>Will</b>, an AI assistant created by lollo21! 👋\n\n"+
			"To use me, you must first provide your OpenRouter API key.\n\n"+
			"Use the command:\n<code>/setkey YOUR_API_KEY</code>\n\n"+
			"Your key will only be used to process your requests. "+
			"For security, the message containing your key will be deleted immediately.",
		html.EscapeString(name),
	)

	return Reply{Text: text, ParseMode: tgbotapi.ModeHTML}
}

func clarifyCommandReply(parsedCommands []Command) string {
	similarCommands := strings.Join(commandList(parsedCommands), ", ")

	return fmt.Sprintf("Did you mean one of these: %s", similarCommands)
}
