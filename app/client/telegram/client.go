package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"weatherbot/app/config"
	"weatherbot/app/service/queue"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/do"
)

type EventHandler func(event queue.Event)

type Button struct {
	Label string
	Data  string
}

type Reply struct {
	Text     string
	HTML     bool
	Keyboard [][]Button
}

type Client struct {
	cfg *config.Config
	bot *tgbotapi.BotAPI

	mutex   sync.RWMutex
	handler EventHandler
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Authorized on telegram", "username", bot.Self.UserName)

	return &Client{
		cfg: cfg,
		bot: bot,
	}, nil
}

func (c *Client) SetListener(handler EventHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.handler = handler
}

// Run long-polls for updates until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.cfg.Telegram.PollTimeout

	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			event, ok := toEvent(update)
			if !ok {
				continue
			}

			c.mutex.RLock()
			handler := c.handler
			c.mutex.RUnlock()

			if handler == nil {
				continue
			}

			handler(event)
		}
	}
}

func toEvent(update tgbotapi.Update) (queue.Event, bool) {
	if query := update.CallbackQuery; query != nil {
		if query.Message == nil || query.Message.Chat == nil {
			return queue.Event{}, false
		}

		return queue.Event{
			ChatID:       query.Message.Chat.ID,
			MessageID:    query.Message.MessageID,
			User:         toUser(query.From),
			CallbackID:   query.ID,
			CallbackData: query.Data,
		}, true
	}

	message := update.Message
	if message == nil || message.Chat == nil || message.Text == "" {
		return queue.Event{}, false
	}

	event := queue.Event{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		User:      toUser(message.From),
		Text:      message.Text,
	}
	if message.IsCommand() {
		event.Command = message.Command()
	}

	return event, true
}

func toUser(user *tgbotapi.User) queue.User {
	if user == nil {
		return queue.User{}
	}
	return queue.User{
		ID:        user.ID,
		FirstName: user.FirstName,
		Username:  user.UserName,
	}
}

func (c *Client) Send(_ context.Context, chatID int64, reply Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if len(reply.Keyboard) > 0 {
		msg.ReplyMarkup = keyboard(reply.Keyboard)
	}

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (c *Client) Edit(_ context.Context, chatID int64, messageID int, reply Reply) error {
	var edit tgbotapi.EditMessageTextConfig
	if len(reply.Keyboard) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, reply.Text, keyboard(reply.Keyboard))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, reply.Text)
	}
	if reply.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}

	if _, err := c.bot.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}

	return nil
}

// Escape makes a value safe for HTML parse mode.
func Escape(text string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, text)
}

func keyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	result := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		result = append(result, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(result...)
}
