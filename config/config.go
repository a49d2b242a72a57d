package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	DataDir    string `json:"data_dir"`
	LogDir     string `json:"log_dir"`

	// Tracked security
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name"`

	// LLM configuration
	LLMProvider    string `json:"llm_provider"`
	ChatModel      string `json:"chat_model"`
	BackendURL     string `json:"backend_url"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`

	// Elasticsearch configuration
	ElasticsearchURL      string `json:"elasticsearch_url"`
	ElasticsearchAPIKey   string `json:"elasticsearch_api_key"`
	ElasticsearchUsername string `json:"elasticsearch_username"`
	ElasticsearchPassword string `json:"elasticsearch_password"`

	// Finnhub configuration
	FinnhubAPIKey string `json:"finnhub_api_key"`

	// Local fallback corpus (NDJSON bulk file)
	FallbackCorpusPath string `json:"fallback_corpus_path"`

	// Conversation memory limits
	MaxSessions         int `json:"max_sessions"`
	SessionTimeoutHours int `json:"session_timeout_hours"`

	// HTTP surface
	ListenAddr string `json:"listen_addr"`

	Debug bool `json:"debug"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir: currentDir,
		DataDir:    filepath.Join(currentDir, "data"),
		LogDir:     filepath.Join(currentDir, "logs"),

		Symbol:      "ESTC",
		CompanyName: "elastic",

		LLMProvider: "openai",
		ChatModel:   "gpt-4o-mini",
		BackendURL:  "https://api.openai.com/v1",

		ElasticsearchURL: "http://localhost:9200",

		FallbackCorpusPath: filepath.Join(currentDir, "data", "estc_es9_bulk.json"),

		MaxSessions:         1000,
		SessionTimeoutHours: 24,

		ListenAddr: ":5000",
		Debug:      false,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("LOG_DIR"); val != "" {
		c.LogDir = val
	}

	if val := os.Getenv("STOCK_SYMBOL"); val != "" {
		c.Symbol = val
	}
	if val := os.Getenv("COMPANY_NAME"); val != "" {
		c.CompanyName = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("CHAT_MODEL"); val != "" {
		c.ChatModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}

	if val := os.Getenv("ELASTICSEARCH_URL"); val != "" {
		c.ElasticsearchURL = val
	}
	if val := os.Getenv("ELASTICSEARCH_API_KEY"); val != "" {
		c.ElasticsearchAPIKey = val
	}
	if val := os.Getenv("ELASTICSEARCH_USERNAME"); val != "" {
		c.ElasticsearchUsername = val
	}
	if val := os.Getenv("ELASTICSEARCH_PASSWORD"); val != "" {
		c.ElasticsearchPassword = val
	}

	if val := os.Getenv("FINNHUB_API_KEY"); val != "" {
		c.FinnhubAPIKey = val
	}

	if val := os.Getenv("FALLBACK_CORPUS_PATH"); val != "" {
		c.FallbackCorpusPath = val
	}

	if val := os.Getenv("MAX_SESSIONS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxSessions = v
		}
	}
	if val := os.Getenv("SESSION_TIMEOUT_HOURS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.SessionTimeoutHours = v
		}
	}

	if val := os.Getenv("LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}

	if val := os.Getenv("ESTCTIGER_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
