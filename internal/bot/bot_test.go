package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lawrelay/lawyer-bot/internal/dialogue"
	"github.com/lawrelay/lawyer-bot/internal/format"
	"github.com/lawrelay/lawyer-bot/internal/models"
	"github.com/lawrelay/lawyer-bot/internal/router"
	"github.com/lawrelay/lawyer-bot/internal/store"
)

const (
	lawyerChat int64 = -1001234
	userID     int64 = 555
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []router.Message
	nextID int
	fail   bool
}

func (f *fakeSender) Send(ctx context.Context, msg router.Message) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail && msg.ChatID == lawyerChat {
		return 0, errors.New("telegram unavailable")
	}
	f.nextID++
	f.sent = append(f.sent, msg)
	return f.nextID, nil
}

func (f *fakeSender) to(chat int64) []router.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []router.Message
	for _, m := range f.sent {
		if m.ChatID == chat {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) last(chat int64) router.Message {
	msgs := f.to(chat)
	if len(msgs) == 0 {
		return router.Message{}
	}
	return msgs[len(msgs)-1]
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	store  store.Store
	nextID int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.OpenFile(context.Background(), filepath.Join(t.TempDir(), "questions.json"))
	if err != nil {
		t.Fatal(err)
	}
	sender := &fakeSender{}
	r := router.New(router.Config{Store: s, Sender: sender, ReviewerChat: lawyerChat})
	b := New(Config{Sender: sender, Dialogue: dialogue.New(nil), Router: r})
	return &harness{bot: b, sender: sender, store: s, nextID: 10000}
}

func (h *harness) message(chat *tgbotapi.Chat, from *tgbotapi.User, text string) *tgbotapi.Message {
	h.nextID++
	msg := &tgbotapi.Message{MessageID: h.nextID, Chat: chat, From: from, Text: text}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func (h *harness) fromUser(text string) {
	chat := &tgbotapi.Chat{ID: userID, Type: "private"}
	from := &tgbotapi.User{ID: userID, UserName: "ivan"}
	h.bot.HandleMessage(context.Background(), h.message(chat, from, text))
}

func (h *harness) fromLawyer(text string, replyTo int) {
	chat := &tgbotapi.Chat{ID: lawyerChat, Type: "supergroup"}
	from := &tgbotapi.User{ID: 9000, UserName: "lawyer"}
	msg := h.message(chat, from, text)
	if replyTo != 0 {
		msg.ReplyToMessage = &tgbotapi.Message{MessageID: replyTo, Chat: chat}
	}
	h.bot.HandleMessage(context.Background(), msg)
}

func (h *harness) pending(t *testing.T) map[string]models.Submission {
	t.Helper()
	all, err := h.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return all
}

func TestQuestionToAnswerRoundTrip(t *testing.T) {
	h := newHarness(t)

	h.fromUser("/start")
	if got := h.sender.last(userID).Text; got != format.Prompt(dialogue.PromptWelcome) {
		t.Fatalf("expected welcome, got %q", got)
	}
	h.fromUser("What is your name question")
	h.fromUser("+79241234567")

	forwards := h.sender.to(lawyerChat)
	if len(forwards) != 1 {
		t.Fatalf("expected one forward, got %d", len(forwards))
	}
	if !strings.Contains(forwards[0].Text, "What is your name question") || !strings.Contains(forwards[0].Text, "+79241234567") {
		t.Errorf("forward text: %q", forwards[0].Text)
	}

	pending := h.pending(t)
	if len(pending) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(pending))
	}
	var forwardID string
	for id := range pending {
		forwardID = id
	}
	confirm := h.sender.last(userID)
	if confirm.Text != format.Sent || !confirm.Keyboard {
		t.Errorf("expected confirmation with keyboard, got %+v", confirm)
	}

	// The fake sender numbers messages from 1; the forward was the third send.
	if forwardID != "3" {
		t.Fatalf("forward id = %s", forwardID)
	}
	h.fromLawyer("Answer text", 3)

	answer := h.sender.last(userID)
	if !strings.HasSuffix(answer.Text, "Answer text") {
		t.Errorf("user got %q", answer.Text)
	}
	if n := len(h.pending(t)); n != 0 {
		t.Errorf("expected empty store after answer, got %d", n)
	}
}

func TestReplyToUnknownMessage(t *testing.T) {
	h := newHarness(t)

	h.fromLawyer("Answer text", 42)

	notice := h.sender.last(lawyerChat)
	if notice.Text != format.NotFound {
		t.Errorf("expected not-found notice, got %q", notice.Text)
	}
	if notice.ReplyTo == 0 {
		t.Error("notice should reply to the reviewer's message")
	}
	if n := len(h.pending(t)); n != 0 {
		t.Errorf("store changed: %d", n)
	}
}

func TestLawyerMessageWithoutReply(t *testing.T) {
	h := newHarness(t)
	h.fromLawyer("just chatting", 0)
	if got := h.sender.last(lawyerChat).Text; got != format.UseReply {
		t.Errorf("expected use-reply notice, got %q", got)
	}
}

func TestServiceMessagesIgnored(t *testing.T) {
	h := newHarness(t)
	chat := &tgbotapi.Chat{ID: lawyerChat, Type: "supergroup"}
	msg := h.message(chat, &tgbotapi.User{ID: 1}, "")
	msg.NewChatMembers = []tgbotapi.User{{ID: 2}}
	h.bot.HandleMessage(context.Background(), msg)

	if n := len(h.sender.to(lawyerChat)); n != 0 {
		t.Errorf("expected no notices, got %d", n)
	}
}

func TestInvalidInputRePrompts(t *testing.T) {
	h := newHarness(t)
	h.fromUser("/start")
	h.fromUser("   ")
	if got := h.sender.last(userID).Text; got != format.Prompt(dialogue.PromptEmptyQuestion) {
		t.Errorf("expected empty-question prompt, got %q", got)
	}
	h.fromUser("question")
	h.fromUser("89241234567")
	if got := h.sender.last(userID).Text; got != format.Prompt(dialogue.PromptBadPhone) {
		t.Errorf("expected bad-phone prompt, got %q", got)
	}
	if n := len(h.sender.to(lawyerChat)); n != 0 {
		t.Errorf("nothing should be forwarded yet, got %d", n)
	}
}

func TestForwardFailureResumesPhoneStep(t *testing.T) {
	h := newHarness(t)
	h.sender.fail = true

	h.fromUser("/start")
	h.fromUser("question")
	h.fromUser("+79241234567")

	if got := h.sender.last(userID).Text; got != format.ForwardFailed {
		t.Errorf("expected forward-failed notice, got %q", got)
	}
	if n := len(h.pending(t)); n != 0 {
		t.Errorf("expected nothing stored, got %d", n)
	}

	h.sender.fail = false
	h.fromUser("+79241234567")
	if n := len(h.pending(t)); n != 1 {
		t.Errorf("expected retry to store the question, got %d", n)
	}
}

func TestStopAndNewQuestionButton(t *testing.T) {
	h := newHarness(t)
	h.fromUser("/start")
	h.fromUser("/stop")
	if got := h.sender.last(userID).Text; got != format.Prompt(dialogue.PromptStopped) {
		t.Errorf("expected stopped prompt, got %q", got)
	}
	if phase := h.bot.dialogue.Phase(userID); phase != models.PhaseIdle {
		t.Errorf("phase = %s", phase)
	}

	h.fromUser(format.NewQuestionButton)
	if phase := h.bot.dialogue.Phase(userID); phase != models.PhaseAwaitingQuestion {
		t.Errorf("phase = %s", phase)
	}
}

func TestPendingCommand(t *testing.T) {
	h := newHarness(t)
	h.fromUser("/start")
	h.fromUser("question one")
	h.fromUser("+79241234567")

	h.fromLawyer("/pending", 0)
	got := h.sender.last(lawyerChat).Text
	if !strings.Contains(got, "question one") || !strings.Contains(got, "@ivan") {
		t.Errorf("pending list: %q", got)
	}
}

func TestUnrelatedGroupIgnored(t *testing.T) {
	h := newHarness(t)
	chat := &tgbotapi.Chat{ID: -777, Type: "group"}
	h.bot.HandleMessage(context.Background(), h.message(chat, &tgbotapi.User{ID: 1}, "hello"))
	if len(h.sender.sent) != 0 {
		t.Errorf("expected no messages, got %+v", h.sender.sent)
	}
}
