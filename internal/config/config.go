package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	OpenAI  OpenAIConfig
	Storage StorageConfig
	Chatbot ChatbotConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type OpenAIConfig struct {
	APIKey     string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type ChatbotConfig struct {
	DefaultLanguage string
	RecallTopK      int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		OpenAI: OpenAIConfig{
			EmbedModel: "text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chatbot: ChatbotConfig{
			DefaultLanguage: "en",
			RecallTopK:      5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatd"
	}
	return filepath.Join(home, ".fooodis", "chatd")
}

// Load reads configuration from defaults, an optional .env file in the
// working directory, and FOOODIS_* environment variables, in that order
// (later sources override earlier ones).
func Load() (Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg, nil
}
