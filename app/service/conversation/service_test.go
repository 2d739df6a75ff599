package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatherbot/app/client/similarity"
	"weatherbot/app/client/telegram"
	"weatherbot/app/client/weatherapi"
	"weatherbot/app/config"
	"weatherbot/app/report"
	"weatherbot/app/service/intent"
	"weatherbot/app/service/queue"
	"weatherbot/app/service/storage"
	"weatherbot/app/service/weather"
)

const chatID = int64(7)

const parisJSON = `{
	"location": {"name": "Paris", "region": "Ile-de-France", "country": "France", "lat": 48.87, "lon": 2.33, "localtime": "2024-03-10 15:00"},
	"current": {"temp_c": 9.0, "temp_f": 48.2, "is_day": 1, "condition": {"text": "Sunny"}, "wind_mph": 4.3, "wind_kph": 6.8, "wind_degree": 90}
}`

type sent struct {
	messageID int
	reply     telegram.Reply
}

type fakeMessenger struct {
	sent    []sent
	edits   []sent
	answers []string
}

func (m *fakeMessenger) Send(_ context.Context, _ int64, reply telegram.Reply) error {
	m.sent = append(m.sent, sent{reply: reply})
	return nil
}

func (m *fakeMessenger) Edit(_ context.Context, _ int64, messageID int, reply telegram.Reply) error {
	m.edits = append(m.edits, sent{messageID: messageID, reply: reply})
	return nil
}

func (m *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	m.answers = append(m.answers, text)
	return nil
}

func (m *fakeMessenger) last() telegram.Reply {
	return m.sent[len(m.sent)-1].reply
}

type fakeIntents map[string]intent.Outcome

func (f fakeIntents) Parse(_ context.Context, text string) (intent.Outcome, error) {
	return f[text], nil
}

type fakeCities map[string]string

func (f fakeCities) ExtractCity(_ context.Context, text string) (string, error) {
	city, ok := f[text]
	if !ok {
		return "", similarity.ErrNoCity
	}
	return city, nil
}

type fakeFetcher struct {
	queries []string
	err     error
}

func (f *fakeFetcher) Current(_ context.Context, query string) (*report.Snapshot, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return report.ParseSnapshot([]byte(parisJSON))
}

type countingStore struct {
	*storage.FileStore
	batches int
}

func (c *countingStore) PutTokens(ctx context.Context, tokens []string) ([]string, error) {
	c.batches++
	return c.FileStore.PutTokens(ctx, tokens)
}

type fixture struct {
	svc       *Service
	messenger *fakeMessenger
	fetcher   *fakeFetcher
	store     *countingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "store.jsonl"), time.Hour)
	require.NoError(t, err)

	suggest := intent.Outcome{
		Kind:       intent.KindSuggest,
		Candidates: []intent.Candidate{{Intent: intent.WeatherCity, Score: 55}},
	}
	intents := fakeIntents{
		"weather in Paris":   {Kind: intent.KindMatch, Intent: intent.WeatherCity},
		"weather please":     {Kind: intent.KindMatch, Intent: intent.WeatherCity},
		"how is it in Paris": suggest,
		"how is it":          suggest,
	}
	cities := fakeCities{
		"weather in Paris":   "Paris",
		"how is it in Paris": "Paris",
		"Paris":              "Paris",
	}

	f := &fixture{
		messenger: &fakeMessenger{},
		fetcher:   &fakeFetcher{},
		store:     &countingStore{FileStore: store},
	}

	cfg := &config.Config{}
	cfg.Telegram.Developer.ID = 99
	cfg.Telegram.Developer.Name = "Dev"

	f.svc = NewService(cfg, f.messenger, intents, cities, weather.NewService(f.fetcher, report.DefaultCatalog()), f.store)
	return f
}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, f.svc.Handle(context.Background(), queue.Event{ChatID: chatID, Text: text}))
}

func (f *fixture) step(t *testing.T) storage.Step {
	t.Helper()
	state, err := f.store.LoadChat(context.Background(), chatID)
	require.NoError(t, err)
	return state.Step
}

func TestStartAndHelp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Handle(ctx, queue.Event{
		ChatID:  chatID,
		Command: "start",
		User:    queue.User{ID: 5, FirstName: "Ann <3"},
	})
	require.NoError(t, err)

	reply := f.messenger.last()
	assert.True(t, reply.HTML)
	assert.Contains(t, reply.Text, `Hi <a href="tg://user?id=5">Ann &lt;3</a>!`)
	assert.Contains(t, reply.Text, "API link: https://www.weatherapi.com/")
	assert.Contains(t, reply.Text, `Developer: <a href="tg://user?id=99">Dev</a>`)

	require.NoError(t, f.svc.Handle(ctx, queue.Event{ChatID: chatID, Command: "help"}))
	assert.Equal(t, usageText, f.messenger.last().Text)

	require.NoError(t, f.svc.Handle(ctx, queue.Event{ChatID: chatID, Command: "unknown"}))
	assert.Len(t, f.messenger.sent, 2)
}

func TestMatchWithCity(t *testing.T) {
	f := newFixture(t)

	f.say(t, "weather in Paris")

	reply := f.messenger.last()
	assert.Equal(t, []string{"Paris"}, f.fetcher.queries)
	assert.Equal(t, "France, Ile-de-France\nCondition is Sunny\nTemperature 9.0°C (48.2°F)\n", reply.Text)
	assert.True(t, reply.HTML)
	require.Len(t, reply.Keyboard, 3)
	assert.Equal(t, "Show local time", reply.Keyboard[0][0].Label)
	assert.LessOrEqual(t, len(reply.Keyboard[0][0].Data), 64)
	assert.Equal(t, 1, f.store.batches)
	assert.Equal(t, storage.StepQuery, f.step(t))
}

func TestMatchWithoutCity(t *testing.T) {
	f := newFixture(t)

	f.say(t, "weather please")

	assert.Equal(t, noCityText, f.messenger.last().Text)
	assert.Empty(t, f.fetcher.queries)
}

func TestSuggestThenYesUsesPendingQuery(t *testing.T) {
	f := newFixture(t)

	f.say(t, "how is it in Paris")
	assert.Equal(t, `Did you mean to ask for "current weather in a city"? (reply yes/no)`, f.messenger.last().Text)
	assert.Equal(t, storage.StepAsk, f.step(t))

	f.say(t, "yes")
	assert.Equal(t, []string{"Paris"}, f.fetcher.queries)
	assert.Equal(t, storage.StepQuery, f.step(t))
}

func TestSuggestThenYesAsksForCity(t *testing.T) {
	f := newFixture(t)

	f.say(t, "how is it")
	f.say(t, "Yes!")
	assert.Equal(t, specifyCityText, f.messenger.last().Text)
	assert.Equal(t, storage.StepExpectingCity, f.step(t))

	f.say(t, "somewhere")
	assert.Equal(t, specifyCityText, f.messenger.last().Text)
	assert.Equal(t, storage.StepExpectingCity, f.step(t))

	f.say(t, "Paris")
	assert.Equal(t, []string{"Paris"}, f.fetcher.queries)
	assert.Equal(t, storage.StepQuery, f.step(t))
}

func TestSuggestThenNo(t *testing.T) {
	f := newFixture(t)

	f.say(t, "how is it")
	f.say(t, "no thanks")

	assert.Equal(t, tryAgainText, f.messenger.last().Text)
	assert.Equal(t, storage.StepQuery, f.step(t))
	assert.Empty(t, f.fetcher.queries)
}

func TestSuggestThenNewQuery(t *testing.T) {
	f := newFixture(t)

	f.say(t, "how is it")
	f.say(t, "weather in Paris")

	assert.Equal(t, []string{"Paris"}, f.fetcher.queries)
	assert.Equal(t, storage.StepQuery, f.step(t))
}

func TestAmbiguous(t *testing.T) {
	f := newFixture(t)

	f.say(t, "tell me a joke")

	assert.Equal(t, ambiguousText, f.messenger.last().Text)
	assert.Equal(t, storage.StepQuery, f.step(t))
}

func TestFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = &weatherapi.FetchError{StatusCode: 400, Reason: "Bad Request"}

	f.say(t, "weather in Paris")

	assert.Equal(t,
		"Something went wrong, failed to fetch weather API. The API responded with status code 400 'Bad Request'.",
		f.messenger.last().Text)

	f.fetcher.err = errors.New("connection refused")
	f.say(t, "weather in Paris")
	assert.Equal(t, weather.FailureMessage(f.fetcher.err), f.messenger.last().Text)
}

func TestCallbackToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.say(t, "weather in Paris")
	wind := f.messenger.last().Keyboard[2][1]
	assert.Equal(t, "Show wind data", wind.Label)

	err := f.svc.Handle(ctx, queue.Event{
		ChatID:       chatID,
		MessageID:    11,
		CallbackID:   "cb",
		CallbackData: wind.Data,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{""}, f.messenger.answers)
	require.Len(t, f.messenger.edits, 1)
	edit := f.messenger.edits[0]
	assert.Equal(t, 11, edit.messageID)
	assert.Contains(t, edit.reply.Text, "Wind speed is 4.3 miles/hour (6.8 km/h) in the East direction\n")
	assert.Equal(t, "Hide wind data", edit.reply.Keyboard[2][1].Label)
	assert.Len(t, f.fetcher.queries, 1, "toggling never refetches")
	assert.Equal(t, 2, f.store.batches, "one token write per rendered report")
}

func TestCallbackExpired(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Handle(context.Background(), queue.Event{
		ChatID:       chatID,
		CallbackID:   "cb",
		CallbackData: "gone",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{expiredText}, f.messenger.answers)
	assert.Empty(t, f.messenger.edits)
}

func TestCallbackCorruptToken(t *testing.T) {
	f := newFixture(t)

	key, err := f.store.PutToken(context.Background(), `{"data":{},"state":25}`)
	require.NoError(t, err)

	err = f.svc.Handle(context.Background(), queue.Event{
		ChatID:       chatID,
		CallbackID:   "cb",
		CallbackData: key,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{expiredText}, f.messenger.answers)
}
