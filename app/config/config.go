package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Log        Log        `yaml:"log"`
	Telegram   Telegram   `yaml:"telegram"`
	WeatherAPI WeatherAPI `yaml:"weather_api"`
	OpenAI     OpenAI     `yaml:"openai"`
	Intent     Intent     `yaml:"intent"`
	Storage    Storage    `yaml:"storage"`
	HTTP       HTTP       `yaml:"http"`
	MCP        MCP        `yaml:"mcp"`
}

type Telegram struct {
	// Bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789" validate:"required"`
	// Long polling timeout in seconds
	PollTimeout int `yaml:"poll_timeout" example:"60" validate:"gte=0"`
	// Developer shown in the /start greeting
	Developer Developer `yaml:"developer"`
}

type Developer struct {
	// Telegram user id of the developer
	ID int64 `yaml:"id" example:"123456789"`
	// Display name of the developer
	Name string `yaml:"name" example:"Jane Doe"`
}

type WeatherAPI struct {
	// weatherapi.com key
	Key string `yaml:"key" example:"0123456789abcdef0123456789abcdef" validate:"required"`
	// Base URL of the API
	BaseURL string `yaml:"base_url" example:"https://api.weatherapi.com/v1" validate:"required,url"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"10s"`
}

type OpenAI struct {
	// OpenAI compatible base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required,url"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Chat model used to extract city names
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
	// Embedding model used for sentence similarity
	EmbeddingModel string `yaml:"embedding_model" example:"text-embedding-3-small" validate:"required"`
}

type Intent struct {
	// Similarity percentage accepted as a direct match
	MatchThreshold int `yaml:"match_threshold" example:"65" validate:"gte=0,lte=100"`
	// Similarity percentage that triggers a "did you mean" question
	SuggestThreshold int `yaml:"suggest_threshold" example:"50" validate:"gte=0,lte=100,ltefield=MatchThreshold"`
}

type Storage struct {
	// Path of the JSON lines file used when redis is not configured
	Path string `yaml:"path" example:"data/weatherbot.jsonl"`
	// How long button tokens stay valid
	TokenTTL time.Duration `yaml:"token_ttl" example:"720h"`
	// How often expired tokens are pruned
	PruneInterval time.Duration `yaml:"prune_interval" example:"1h"`
	Redis         Redis         `yaml:"redis"`
}

type Redis struct {
	// Redis address, leave empty to use the file storage
	Addr string `yaml:"addr" example:"localhost:6379"`
	// Redis password
	Password string `yaml:"password"`
	// Redis database number
	DB int `yaml:"db" example:"0"`
}

type HTTP struct {
	// Listen address of the report API, leave empty to disable
	Listen string `yaml:"listen" example:":8080"`
}

type MCP struct {
	// Listen address of the MCP server, leave empty to disable
	Listen string `yaml:"listen" example:":8081"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
	// Minimum console level: debug, info, warn or error
	Level string `yaml:"level" example:"info" validate:"omitempty,oneof=debug info warn error"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads a YAML config. The file is optional when every required
// value is supplied through the environment or a .env file.
func LoadFile(path string) (*Config, error) {
	var result Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, oops.Errorf("failed to read config file: %w", err)
	default:
		if err = yaml.Unmarshal(data, &result); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnv(&result)
	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"BOT_TOKEN":       &cfg.Telegram.Token,
		"API_KEY":         &cfg.WeatherAPI.Key,
		"OPENAI_TOKEN":    &cfg.OpenAI.Token,
		"OPENAI_BASE_URL": &cfg.OpenAI.BaseURL,
		"REDIS_ADDR":      &cfg.Storage.Redis.Addr,
		"REDIS_PASSWORD":  &cfg.Storage.Redis.Password,
	}

	for key, target := range overrides {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = 60
	}
	if cfg.WeatherAPI.BaseURL == "" {
		cfg.WeatherAPI.BaseURL = "https://api.weatherapi.com/v1"
	}
	if cfg.WeatherAPI.Timeout == 0 {
		cfg.WeatherAPI.Timeout = 10 * time.Second
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Intent.MatchThreshold == 0 {
		cfg.Intent.MatchThreshold = 65
	}
	if cfg.Intent.SuggestThreshold == 0 {
		cfg.Intent.SuggestThreshold = 50
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/weatherbot.jsonl"
	}
	if cfg.Storage.TokenTTL == 0 {
		cfg.Storage.TokenTTL = 30 * 24 * time.Hour
	}
	if cfg.Storage.PruneInterval == 0 {
		cfg.Storage.PruneInterval = time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
