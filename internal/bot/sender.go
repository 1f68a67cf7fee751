package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lawrelay/lawyer-bot/internal/format"
	"github.com/lawrelay/lawyer-bot/internal/router"
)

// Sender sends router messages through the Bot API.
type Sender struct {
	api *tgbotapi.BotAPI
}

func NewSender(api *tgbotapi.BotAPI) *Sender {
	return &Sender{api: api}
}

func (s *Sender) Send(ctx context.Context, msg router.Message) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.ReplyToMessageID = msg.ReplyTo
	if msg.Keyboard {
		cfg.ReplyMarkup = newQuestionKeyboard()
	}

	sent, err := s.api.Send(cfg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func newQuestionKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(format.NewQuestionButton)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
