package conversation

import (
	"context"
	"weatherbot/app/client/telegram"
	"weatherbot/app/service/intent"
)

const (
	usageText = "Usage is very simple, just type your query in plain English text and I will fetch the API for you. " +
		"I depend on a simple Natural Language Processing technique which could fail sometimes." +
		"\ne.g. \"What is the current weather in New York?\""

	apiLink = "https://www.weatherapi.com/"

	askTemplate   = "Did you mean to ask for \"%s\"? (reply yes/no)"
	ambiguousText = "Your query is ambiguous. " +
		"Try another format that matches better, " +
		"Or try /help for more information on how this bot works."
	noCityText      = "Sure, I can tell you about the weather condition in any city, just mention the city in your text."
	specifyCityText = "Please specify the city in the next message."
	tryAgainText    = "Please try another query."
	expiredText     = "This button has expired, please send a new query."
)

type Messenger interface {
	Send(ctx context.Context, chatID int64, reply telegram.Reply) error
	Edit(ctx context.Context, chatID int64, messageID int, reply telegram.Reply) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type IntentParser interface {
	Parse(ctx context.Context, text string) (intent.Outcome, error)
}

// CityExtractor returns similarity.ErrNoCity when text names no place.
type CityExtractor interface {
	ExtractCity(ctx context.Context, text string) (string, error)
}
