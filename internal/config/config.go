package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every service setting.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
	Store  StoreConfig
	Limits LimitsConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech := loadSpeechConfig()
	storeCfg := loadStoreConfig()

	limits, err := loadLimitsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Speech: speech, Store: storeCfg, Limits: limits}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the chat model credentials and sampling settings.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("chat model credentials missing: set ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// SpeechConfig describes the OpenAI-compatible STT/TTS endpoint.
type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	STTModel string
	TTSModel string
	TTSVoice string
	Timeout  time.Duration
	Enabled  bool
}

func loadSpeechConfig() SpeechConfig {
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	timeout := 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv("SPEECH_TIMEOUT")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			timeout = time.Duration(seconds) * time.Second
		}
	}

	return SpeechConfig{
		APIKey:   apiKey,
		BaseURL:  getEnvOrDefault("SPEECH_BASE_URL", "https://api.openai.com/v1"),
		STTModel: getEnvOrDefault("SPEECH_STT_MODEL", "whisper-1"),
		TTSModel: getEnvOrDefault("SPEECH_TTS_MODEL", "tts-1"),
		TTSVoice: getEnvOrDefault("SPEECH_TTS_VOICE", "nova"),
		Timeout:  timeout,
		Enabled:  apiKey != "",
	}
}

// StoreConfig selects the persistence backends.
type StoreConfig struct {
	// SQLitePath is where conversation history and summaries live.
	SQLitePath string
	// PostgresURL, when set, backs the profile store; otherwise profiles
	// come from the in-memory store seeded at startup.
	PostgresURL string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		SQLitePath:  getEnvOrDefault("STORE_SQLITE_PATH", "data/companion.db"),
		PostgresURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
}

// LimitsConfig tunes the conversational limits.
type LimitsConfig struct {
	DailyMessages  int
	SilenceTimeout time.Duration
	SynthWorkers   int
}

func loadLimitsConfig() (LimitsConfig, error) {
	daily := 100
	if override, err := parseOptionalIntEnv("DAILY_MESSAGE_LIMIT"); err != nil {
		return LimitsConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return LimitsConfig{}, fmt.Errorf("DAILY_MESSAGE_LIMIT must be positive, got %d", *override)
		}
		daily = *override
	}

	silence := 1500 * time.Millisecond
	if override, err := parseOptionalIntEnv("SILENCE_TIMEOUT_MS"); err != nil {
		return LimitsConfig{}, err
	} else if override != nil && *override > 0 {
		silence = time.Duration(*override) * time.Millisecond
	}

	workers := 4
	if override, err := parseOptionalIntEnv("SYNTH_WORKERS"); err != nil {
		return LimitsConfig{}, err
	} else if override != nil && *override > 0 {
		workers = *override
	}

	return LimitsConfig{
		DailyMessages:  daily,
		SilenceTimeout: silence,
		SynthWorkers:   workers,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
