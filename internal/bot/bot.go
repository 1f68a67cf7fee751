package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/lawrelay/lawyer-bot/internal/dialogue"
	"github.com/lawrelay/lawyer-bot/internal/format"
	"github.com/lawrelay/lawyer-bot/internal/models"
	"github.com/lawrelay/lawyer-bot/internal/router"
)

type Bot struct {
	api          *tgbotapi.BotAPI
	sender       router.Sender
	dialogue     *dialogue.Machine
	router       *router.Router
	reviewerChat int64 // Telegram chat ID of the lawyers' group
	pollTimeout  time.Duration
	retryDelay   time.Duration
	log          *slog.Logger
}

type Config struct {
	API         *tgbotapi.BotAPI
	Sender      router.Sender
	Dialogue    *dialogue.Machine
	Router      *router.Router
	PollTimeout time.Duration
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Connect authorizes against the Bot API with token
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func New(cfg Config) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	return &Bot{
		api:          cfg.API,
		sender:       cfg.Sender,
		dialogue:     cfg.Dialogue,
		router:       cfg.Router,
		reviewerChat: cfg.Router.ReviewerChat(),
		pollTimeout:  cfg.PollTimeout,
		retryDelay:   cfg.RetryDelay,
		log:          logger.With("component", "bot"),
	}
}

// Run long-polls for updates until ctx is cancelled. A failed poll is
// retried after the configured delay.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout.Seconds())

	b.log.Info("polling for updates", "account", b.api.Self.UserName)
	for ctx.Err() == nil {
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			b.log.Error("failed to get updates", "error", err, "retry_in", b.retryDelay)
			select {
			case <-ctx.Done():
			case <-time.After(b.retryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= u.Offset {
				u.Offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}
			b.HandleMessage(ctx, update.Message)
		}
	}

	b.log.Info("stopped polling")
	return nil
}

// HandleMessage processes one inbound message to completion. A panic is
// logged and swallowed so the next update is still handled.
func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	log := b.log.With("event_id", uuid.NewString(), "chat_id", msg.Chat.ID, "message_id", msg.MessageID)
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while handling message", "panic", p)
		}
	}()

	switch {
	case msg.Chat.ID == b.reviewerChat:
		b.handleReviewer(ctx, log, msg)
	case msg.Chat.IsPrivate() && msg.From != nil:
		b.handleUser(ctx, log, msg)
	default:
		log.Debug("ignoring message from unrelated chat")
	}
}

func (b *Bot) handleUser(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	userID := msg.From.ID
	log = log.With("user_id", userID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(ctx, log, msg.Chat.ID, b.dialogue.Start(userID))
		case "stop":
			b.reply(ctx, log, msg.Chat.ID, b.dialogue.Cancel(userID))
		case "help":
			b.sendMessage(ctx, log, router.Message{ChatID: msg.Chat.ID, Text: format.Help})
		default:
			b.sendMessage(ctx, log, router.Message{ChatID: msg.Chat.ID, Text: "Unknown command. Use /help to see available commands."})
		}
		return
	}

	if msg.Text == format.NewQuestionButton {
		b.reply(ctx, log, msg.Chat.ID, b.dialogue.NewQuestion(userID))
		return
	}

	res := b.dialogue.HandleText(userID, msg.From.UserName, msg.Text)
	if res.Draft == nil {
		log.Debug("dialogue step", "phase", res.Phase)
		b.reply(ctx, log, msg.Chat.ID, res)
		return
	}
	b.submit(ctx, log, msg.Chat.ID, *res.Draft)
}

func (b *Bot) submit(ctx context.Context, log *slog.Logger, chatID int64, d models.Draft) {
	sub, err := b.router.Forward(ctx, d)
	if err != nil {
		log.Error("failed to forward question", "error", err)
		b.dialogue.Resume(d)
		b.sendMessage(ctx, log, router.Message{ChatID: chatID, Text: format.ForwardFailed})
		return
	}

	log.Info("question submitted", "forward_id", sub.ForwardID)
	b.sendMessage(ctx, log, router.Message{ChatID: chatID, Text: format.Sent, Keyboard: true})
}

func (b *Bot) handleReviewer(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	if isServiceMessage(msg) {
		return
	}

	if msg.IsCommand() && msg.Command() == "pending" {
		b.handlePending(ctx, log, msg)
		return
	}

	reply := router.Reply{MessageID: msg.MessageID, Text: msg.Text}
	if reply.Text == "" {
		reply.Text = msg.Caption
	}
	if msg.ReplyToMessage != nil {
		reply.ReplyTo = msg.ReplyToMessage.MessageID
	}

	outcome, err := b.router.RouteReply(ctx, reply)
	if err != nil {
		log.Error("failed to route reply", "reply_to", reply.ReplyTo, "outcome", outcome, "error", err)
		return
	}
	log.Info("reviewer message handled", "reply_to", reply.ReplyTo, "outcome", outcome)
}

func (b *Bot) handlePending(ctx context.Context, log *slog.Logger, msg *tgbotapi.Message) {
	subs, err := b.router.Pending(ctx)
	if err != nil {
		log.Error("failed to list pending questions", "error", err)
		b.sendMessage(ctx, log, router.Message{ChatID: msg.Chat.ID, Text: "Error fetching pending questions.", ReplyTo: msg.MessageID})
		return
	}
	b.sendMessage(ctx, log, router.Message{
		ChatID:  msg.Chat.ID,
		Text:    format.Pending(subs, time.Now()),
		ReplyTo: msg.MessageID,
	})
}

func (b *Bot) reply(ctx context.Context, log *slog.Logger, chatID int64, res dialogue.Result) {
	if text := format.Prompt(res.Prompt); text != "" {
		b.sendMessage(ctx, log, router.Message{ChatID: chatID, Text: text})
	}
}

func (b *Bot) sendMessage(ctx context.Context, log *slog.Logger, msg router.Message) {
	if _, err := b.sender.Send(ctx, msg); err != nil {
		log.Error("error sending message", "to", msg.ChatID, "error", err)
	}
}

func isServiceMessage(msg *tgbotapi.Message) bool {
	return len(msg.NewChatMembers) > 0 ||
		msg.LeftChatMember != nil ||
		msg.PinnedMessage != nil ||
		msg.NewChatTitle != "" ||
		msg.GroupChatCreated ||
		msg.MigrateFromChatID != 0
}
