package dispatcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"will-bot/internal/openrouter"
)

const (
	testUserID = int64(42)
	testChatID = int64(99)
)

type stubStore struct {
	keys map[int64]string
}

func newStubStore() *stubStore {
	return &stubStore{keys: make(map[int64]string)}
}

func (s *stubStore) Set(_ context.Context, userID int64, key string) error {
	s.keys[userID] = key
	return nil
}

func (s *stubStore) Get(_ context.Context, userID int64) (string, error) {
	return s.keys[userID], nil
}

func (s *stubStore) Delete(_ context.Context, userID int64) (bool, error) {
	_, ok := s.keys[userID]
	delete(s.keys, userID)
	return ok, nil
}

func (s *stubStore) Close() error { return nil }

type stubCompleter struct {
	calls    []openrouter.CompleteChatData
	response string
	err      error
}

func (c *stubCompleter) CompleteChat(_ context.Context, d *openrouter.CompleteChatData) (string, error) {
	c.calls = append(c.calls, *d)
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

type stubChat struct {
	deletedMessages []int
	typingChats     []int64
	deleteErr       error
}

func (c *stubChat) DeleteMessage(_ int64, messageID int) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deletedMessages = append(c.deletedMessages, messageID)
	return nil
}

func (c *stubChat) SendTyping(chatID int64) error {
	c.typingChats = append(c.typingChats, chatID)
	return nil
}

func newTestDispatcher(t *testing.T, store *stubStore, completer *stubCompleter, chat *stubChat) *EventDispatcher {
	t.Helper()

	ed, err := NewEventDispatcher(Deps{Keys: store, Completer: completer, Chat: chat})
	require.NoError(t, err)
	return ed
}

func commandMsg(text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.Index(text, " "); i != -1 {
		length = i
	}

	msg := textMsg(text)
	msg.Entities = []tgbotapi.MessageEntity{
		{Type: "bot_command", Offset: 0, Length: length},
	}
	return msg
}

func textMsg(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: testUserID, FirstName: "Ada", UserName: "ada"},
		Chat:      &tgbotapi.Chat{ID: testChatID},
		Text:      text,
	}
}

func TestDispatch_ChatWithoutKey(t *testing.T) {
	store := newStubStore()
	completer := &stubCompleter{response: "should never be seen"}
	ed := newTestDispatcher(t, store, completer, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), textMsg("hello"))

	assert.Equal(t, setKeyFirstReply, reply.Text)
	assert.Empty(t, completer.calls, "no outbound call without a stored key")
}

func TestDispatch_ChatWithKey(t *testing.T) {
	store := newStubStore()
	completer := &stubCompleter{response: "hi there"}
	chat := &stubChat{}
	ed := newTestDispatcher(t, store, completer, chat)

	ed.DispatchMessage(context.Background(), commandMsg("/setkey sk-ABCDEFGH1234"))
	reply := ed.DispatchMessage(context.Background(), textMsg("hello"))

	assert.Equal(t, "hi there", reply.Text)
	require.Len(t, completer.calls, 1, "exactly one outbound call per message")
	assert.Equal(t, "sk-ABCDEFGH1234", completer.calls[0].APIKey)
	assert.Equal(t, "hello", completer.calls[0].Content)
	assert.Equal(t, []int64{testChatID}, chat.typingChats)
}

func TestDispatch_AuthErrorReply(t *testing.T) {
	store := newStubStore()
	store.keys[testUserID] = "sk-bogus"
	completer := &stubCompleter{
		err: &openrouter.RequestError{Kind: openrouter.KindAuth, Err: errors.New("Incorrect API key provided")},
	}
	ed := newTestDispatcher(t, store, completer, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), textMsg("hello"))

	assert.Equal(t, invalidKeyReply, reply.Text)
}

func TestDispatch_GenericErrorReply(t *testing.T) {
	store := newStubStore()
	store.keys[testUserID] = "sk-fine"
	completer := &stubCompleter{
		err: &openrouter.RequestError{Kind: openrouter.KindTransient, Err: errors.New("upstream timeout")},
	}
	ed := newTestDispatcher(t, store, completer, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), textMsg("hello"))

	assert.Equal(t, genericErrorReply, reply.Text)
}

func TestDispatch_RateLimitedReply(t *testing.T) {
	store := newStubStore()
	store.keys[testUserID] = "sk-fine"
	completer := &stubCompleter{err: openrouter.ErrRateLimited}
	ed := newTestDispatcher(t, store, completer, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), textMsg("hello"))

	assert.Equal(t, tooManyRequestsReply, reply.Text)
}

func TestDispatch_SetKeyDeletesMessage(t *testing.T) {
	store := newStubStore()
	chat := &stubChat{}
	ed := newTestDispatcher(t, store, &stubCompleter{}, chat)

	reply := ed.DispatchMessage(context.Background(), commandMsg("/setkey sk-ABCDEFGH1234"))

	assert.Equal(t, keySavedReply, reply.Text)
	assert.Equal(t, "sk-ABCDEFGH1234", store.keys[testUserID])
	assert.Equal(t, []int{7}, chat.deletedMessages)
}

func TestDispatch_SetKeyDeleteFailureIsNonFatal(t *testing.T) {
	store := newStubStore()
	chat := &stubChat{deleteErr: errors.New("message can't be deleted")}
	ed := newTestDispatcher(t, store, &stubCompleter{}, chat)

	reply := ed.DispatchMessage(context.Background(), commandMsg("/setkey sk-ABCDEFGH1234"))

	assert.Equal(t, keySavedManualDeleteReply, reply.Text)
	assert.Equal(t, "sk-ABCDEFGH1234", store.keys[testUserID], "key is stored even when deletion fails")
}

func TestDispatch_SetKeyWithoutArgument(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/setkey"))

	assert.Equal(t, setKeyUsageReply, reply.Text)
}

func TestDispatch_MyKeyPreview(t *testing.T) {
	store := newStubStore()
	store.keys[testUserID] = "sk-ABCDEFGH1234"
	ed := newTestDispatcher(t, store, &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/mykey"))

	assert.Contains(t, reply.Text, "sk-A...1234")
	assert.NotContains(t, reply.Text, "sk-ABCDEFGH1234", "full key never leaves the store")
	assert.Equal(t, tgbotapi.ModeMarkdown, reply.ParseMode)
}

func TestDispatch_MyKeyUnset(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/mykey"))

	assert.Equal(t, noKeyToShowReply, reply.Text)
}

func TestDispatch_DelKey(t *testing.T) {
	store := newStubStore()
	store.keys[testUserID] = "sk-ABCDEFGH1234"
	ed := newTestDispatcher(t, store, &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/delkey"))

	assert.Equal(t, keyRemovedReply, reply.Text)
	assert.Empty(t, store.keys)
}

func TestDispatch_DelKeyNothingToRemove(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/delkey"))

	assert.Equal(t, noKeyToRemoveReply, reply.Text)
}

func TestDispatch_StartMentionsSetKey(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/start"))

	assert.Contains(t, reply.Text, "Ada")
	assert.Contains(t, reply.Text, "/setkey")
	assert.Equal(t, tgbotapi.ModeHTML, reply.ParseMode)
}

func TestDispatch_HelpListsCommands(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/help"))

	for _, c := range commands {
		assert.Contains(t, reply.Text, "/"+string(c))
	}
}

func TestDispatch_FuzzyCommandSuggestion(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/setkei"))

	assert.Contains(t, reply.Text, "/setkey")
}

func TestDispatch_UnknownCommand(t *testing.T) {
	ed := newTestDispatcher(t, newStubStore(), &stubCompleter{}, &stubChat{})

	reply := ed.DispatchMessage(context.Background(), commandMsg("/zzzzzzzzzz"))

	assert.Equal(t, unexpectedCommandReply, reply.Text)
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{name: "typical key", key: "sk-ABCDEFGH1234", want: "sk-A...1234"},
		{name: "exactly eight chars", key: "ABCDEFGH", want: "ABCD...EFGH"},
		{name: "too short to preview", key: "short", want: "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskKey(tt.key))
		})
	}
}
