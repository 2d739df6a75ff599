package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"weatherbot/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
)

const noCityAnswer = "NONE"

var ErrNoCity = errors.New("no city mentioned")

const cityPromptTemplate = `Find the first city, country or other geopolitical place mentioned in the message below.
Answer with the place name only, exactly as written in the message.
If the message mentions no place, answer {{.none}}.

Message: {{.text}}`

type Client struct {
	llm        llms.Model
	embedder   embeddings.Embedder
	cityPrompt prompts.PromptTemplate

	mu    sync.Mutex
	cache map[string][]float32
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	llm, err := openai.New(
		openai.WithToken(cfg.OpenAI.Token),
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, oops.Errorf("failed to create embedder: %w", err)
	}

	return New(llm, embedder), nil
}

func New(llm llms.Model, embedder embeddings.Embedder) *Client {
	return &Client{
		llm:        llm,
		embedder:   embedder,
		cityPrompt: prompts.NewPromptTemplate(cityPromptTemplate, []string{"text", "none"}),
		cache:      make(map[string][]float32),
	}
}

// Similarity returns the cosine similarity of the two sentences' embeddings.
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := c.embed(ctx, a)
	if err != nil {
		return 0, err
	}

	vb, err := c.embed(ctx, b)
	if err != nil {
		return 0, err
	}

	return cosine(va, vb), nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(text))

	c.mu.Lock()
	vector, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return vector, nil
	}

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	c.mu.Lock()
	c.cache[key] = vector
	c.mu.Unlock()

	return vector, nil
}

// ExtractCity asks the model for the first place named in text.
func (c *Client) ExtractCity(ctx context.Context, text string) (string, error) {
	prompt, err := c.cityPrompt.Format(map[string]any{
		"text": text,
		"none": noCityAnswer,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format city prompt: %w", err)
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(0),
		llms.WithMaxTokens(32),
	)
	if err != nil {
		return "", fmt.Errorf("failed to extract city: %w", err)
	}

	return parseCityAnswer(answer)
}

func parseCityAnswer(answer string) (string, error) {
	city := strings.TrimSpace(answer)
	city = strings.Trim(city, "\"'`.")
	city = strings.TrimSpace(city)

	if city == "" || strings.EqualFold(city, noCityAnswer) {
		return "", ErrNoCity
	}

	return city, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
