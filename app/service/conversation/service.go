package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"weatherbot/app/client/similarity"
	"weatherbot/app/client/telegram"
	"weatherbot/app/config"
	"weatherbot/app/report"
	"weatherbot/app/service/intent"
	"weatherbot/app/service/queue"
	"weatherbot/app/service/storage"
	"weatherbot/app/service/weather"
	"weatherbot/app/util/mylog"

	"github.com/samber/do"
)

const maxHandleDuration = 60 * time.Second

var yesNoRegexp = regexp.MustCompile(`(?i)\b(yes|no)\b`)

type Service struct {
	cfg *config.Config

	messenger  Messenger
	intents    IntentParser
	cities     CityExtractor
	weatherSvc *weather.Service
	store      storage.Store
	renderer   *report.Renderer
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*telegram.Client](di),
		do.MustInvoke[*intent.Service](di),
		do.MustInvoke[*similarity.Client](di),
		do.MustInvoke[*weather.Service](di),
		do.MustInvoke[storage.Store](di),
	), nil
}

func NewService(
	cfg *config.Config,
	messenger Messenger,
	intents IntentParser,
	cities CityExtractor,
	weatherSvc *weather.Service,
	store storage.Store,
) *Service {
	return &Service{
		cfg:        cfg,
		messenger:  messenger,
		intents:    intents,
		cities:     cities,
		weatherSvc: weatherSvc,
		store:      store,
		renderer:   report.NewRenderer(weatherSvc.Catalog(), telegram.Escape),
	}
}

// Handle processes one event to completion.
func (s *Service) Handle(ctx context.Context, event queue.Event) error {
	ctx, cancel := context.WithTimeout(ctx, maxHandleDuration)
	defer cancel()

	if event.IsCallback() {
		return s.handleCallback(ctx, event)
	}

	switch event.Command {
	case "":
	case "start":
		return s.handleStart(ctx, event)
	case "help":
		return s.handleHelp(ctx, event)
	default:
		slog.Debug("Ignoring unknown command", "command", event.Command, "chat_id", event.ChatID)
		return nil
	}

	chat, err := s.store.LoadChat(ctx, event.ChatID)
	if err != nil {
		return fmt.Errorf("store.LoadChat: %w", err)
	}

	var next storage.ChatState
	switch chat.Step {
	case storage.StepAsk:
		next, err = s.handleAnswer(ctx, event, chat)
	case storage.StepExpectingCity:
		next, err = s.handleCity(ctx, event)
	default:
		next, err = s.handleQuery(ctx, event)
	}
	if err != nil {
		return err
	}

	if err = s.store.SaveChat(ctx, event.ChatID, next); err != nil {
		return fmt.Errorf("store.SaveChat: %w", err)
	}

	return nil
}

func (s *Service) handleStart(ctx context.Context, event queue.Event) error {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Hi %s!", mention(event.User.ID, displayName(event.User))))
	builder.WriteString("\nThis is Weather API bot. ")
	builder.WriteString(telegram.Escape(usageText))
	builder.WriteString("\n\nAPI link: " + apiLink)

	if dev := s.cfg.Telegram.Developer; dev.Name != "" {
		builder.WriteString("\nDeveloper: " + mention(dev.ID, dev.Name))
	}

	if err := s.reset(ctx, event.ChatID); err != nil {
		return err
	}

	return s.messenger.Send(ctx, event.ChatID, telegram.Reply{Text: builder.String(), HTML: true})
}

func (s *Service) handleHelp(ctx context.Context, event queue.Event) error {
	if err := s.reset(ctx, event.ChatID); err != nil {
		return err
	}

	return s.messenger.Send(ctx, event.ChatID, telegram.Reply{Text: usageText})
}

func (s *Service) reset(ctx context.Context, chatID int64) error {
	if err := s.store.SaveChat(ctx, chatID, storage.ChatState{Step: storage.StepQuery}); err != nil {
		return fmt.Errorf("store.SaveChat: %w", err)
	}
	return nil
}

func (s *Service) handleQuery(ctx context.Context, event queue.Event) (storage.ChatState, error) {
	outcome, err := s.intents.Parse(ctx, event.Text)
	if err != nil {
		return storage.ChatState{}, fmt.Errorf("intents.Parse: %w", err)
	}

	slog.Info("Parsed query",
		"chat_id", event.ChatID,
		"text", event.Text,
		"kind", outcome.Kind,
	)

	switch outcome.Kind {
	case intent.KindMatch:
		city, ok, err := s.findCity(ctx, event.Text)
		if err != nil {
			return storage.ChatState{}, err
		}
		if !ok {
			return storage.ChatState{Step: storage.StepQuery}, s.sendText(ctx, event.ChatID, noCityText)
		}
		return storage.ChatState{Step: storage.StepQuery}, s.sendWeather(ctx, event.ChatID, city)

	case intent.KindSuggest:
		best, _ := outcome.Best()
		next := storage.ChatState{Step: storage.StepAsk, PendingQuery: event.Text}
		return next, s.sendText(ctx, event.ChatID, fmt.Sprintf(askTemplate, best))

	default:
		return storage.ChatState{Step: storage.StepQuery}, s.sendText(ctx, event.ChatID, ambiguousText)
	}
}

// handleAnswer expects yes or no; anything else is treated as a new query.
func (s *Service) handleAnswer(ctx context.Context, event queue.Event, chat storage.ChatState) (storage.ChatState, error) {
	match := yesNoRegexp.FindStringSubmatch(event.Text)
	if match == nil {
		return s.handleQuery(ctx, event)
	}

	if strings.EqualFold(match[1], "no") {
		return storage.ChatState{Step: storage.StepQuery}, s.sendText(ctx, event.ChatID, tryAgainText)
	}

	city, ok, err := s.findCity(ctx, event.Text)
	if err != nil {
		return storage.ChatState{}, err
	}
	if !ok && chat.PendingQuery != "" {
		city, ok, err = s.findCity(ctx, chat.PendingQuery)
		if err != nil {
			return storage.ChatState{}, err
		}
	}

	if !ok {
		return storage.ChatState{Step: storage.StepExpectingCity}, s.sendText(ctx, event.ChatID, specifyCityText)
	}

	return storage.ChatState{Step: storage.StepQuery}, s.sendWeather(ctx, event.ChatID, city)
}

func (s *Service) handleCity(ctx context.Context, event queue.Event) (storage.ChatState, error) {
	city, ok, err := s.findCity(ctx, event.Text)
	if err != nil {
		return storage.ChatState{}, err
	}
	if !ok {
		return storage.ChatState{Step: storage.StepExpectingCity}, s.sendText(ctx, event.ChatID, specifyCityText)
	}

	return storage.ChatState{Step: storage.StepQuery}, s.sendWeather(ctx, event.ChatID, city)
}

func (s *Service) findCity(ctx context.Context, text string) (string, bool, error) {
	city, err := s.cities.ExtractCity(ctx, text)
	if errors.Is(err, similarity.ErrNoCity) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cities.ExtractCity: %w", err)
	}
	return city, true, nil
}

func (s *Service) sendWeather(ctx context.Context, chatID int64, city string) error {
	snapshot, state, err := s.weatherSvc.Fetch(ctx, city)
	if err != nil {
		slog.Warn("Weather fetch failed",
			"chat_id", chatID,
			"city", city,
			"error", err,
		)
		return s.sendText(ctx, chatID, weather.FailureMessage(err))
	}

	reply, err := s.reportReply(ctx, snapshot, state)
	if err != nil {
		return err
	}

	slog.Info("Sent weather report",
		"chat_id", chatID,
		"city", city,
		mylog.TelegramKey, true,
	)

	return s.messenger.Send(ctx, chatID, reply)
}

func (s *Service) handleCallback(ctx context.Context, event queue.Event) error {
	token, err := s.store.Token(ctx, event.CallbackData)
	if errors.Is(err, storage.ErrNotFound) {
		return s.messenger.AnswerCallback(ctx, event.CallbackID, expiredText)
	}
	if err != nil {
		return fmt.Errorf("store.Token: %w", err)
	}

	command, err := report.DecodeCommand(s.weatherSvc.Catalog(), token)
	if err != nil {
		slog.Warn("Rejected toggle token", "chat_id", event.ChatID, "error", err)
		return s.messenger.AnswerCallback(ctx, event.CallbackID, expiredText)
	}

	if err = s.messenger.AnswerCallback(ctx, event.CallbackID, ""); err != nil {
		return err
	}

	snapshot, state := command.Apply()

	reply, err := s.reportReply(ctx, snapshot, state)
	if err != nil {
		return err
	}

	return s.messenger.Edit(ctx, event.ChatID, event.MessageID, reply)
}

// reportReply renders the report and stores the button tokens under short
// keys in a single write. Callback data is limited to 64 bytes.
func (s *Service) reportReply(ctx context.Context, snapshot *report.Snapshot, state *report.State) (telegram.Reply, error) {
	view, err := s.weatherSvc.View(s.renderer, snapshot, state)
	if err != nil {
		return telegram.Reply{Text: weather.FailureMessage(err)}, nil
	}

	var tokens []string
	for _, row := range view.Buttons {
		for _, b := range row {
			tokens = append(tokens, b.Token)
		}
	}

	keys, err := s.store.PutTokens(ctx, tokens)
	if err != nil {
		return telegram.Reply{}, fmt.Errorf("store.PutTokens: %w", err)
	}

	keyboard := make([][]telegram.Button, 0, len(view.Buttons))
	for _, row := range view.Buttons {
		buttons := make([]telegram.Button, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telegram.Button{Label: b.Label, Data: keys[0]})
			keys = keys[1:]
		}
		keyboard = append(keyboard, buttons)
	}

	return telegram.Reply{
		Text:     view.Text,
		HTML:     true,
		Keyboard: keyboard,
	}, nil
}

func (s *Service) sendText(ctx context.Context, chatID int64, text string) error {
	return s.messenger.Send(ctx, chatID, telegram.Reply{Text: text})
}

func (s *Service) Shutdown() error {
	return nil
}
