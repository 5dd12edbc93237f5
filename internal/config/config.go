package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AI struct {
		Provider        string  `yaml:"provider" validate:"omitempty,oneof=openai gemini"`
		Model           string  `yaml:"model"`
		APIKey          string  `yaml:"api_key"`
		BaseURL         string  `yaml:"base_url"`
		Temperature     float64 `yaml:"temperature" validate:"gte=0,lte=2"`
		MaxOutputTokens int     `yaml:"max_output_tokens" validate:"gt=0"`
	} `yaml:"ai"`
	Embedding struct {
		Provider  string `yaml:"provider" validate:"omitempty,oneof=ollama openai gemini"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		Dimension int    `yaml:"dimension" validate:"gte=0"`
	} `yaml:"embedding"`
	Generation struct {
		TokenBudget            int     `yaml:"token_budget" validate:"gt=0"`
		BudgetRatio            float64 `yaml:"budget_ratio" validate:"gt=0,lte=1"`
		RetrievalResults       int     `yaml:"retrieval_results" validate:"gt=0"`
		RefineRetrievalResults int     `yaml:"refine_retrieval_results" validate:"gt=0"`
		FailurePolicy          string  `yaml:"failure_policy" validate:"oneof=count retry"`
		MaxRetries             int     `yaml:"max_retries" validate:"gte=0"`
		PrefilterSource        bool    `yaml:"prefilter_source"`
	} `yaml:"generation"`
	Report struct {
		CurrentYear int `yaml:"current_year" validate:"gte=1"`
		TotalYears  int `yaml:"total_years" validate:"gte=1"`
	} `yaml:"report"`
	Storage struct {
		DBPath      string `yaml:"db_path" validate:"required"`
		Collection  string `yaml:"collection" validate:"required"`
		ChunkSize   int    `yaml:"chunk_size" validate:"gt=0"`
		VectorStore string `yaml:"vector_store" validate:"oneof=sqlite memory"`
	} `yaml:"storage"`
	Log struct {
		File       string `yaml:"file"`
		Production bool   `yaml:"production"`
	} `yaml:"log"`
	Server struct {
		Addr       string        `yaml:"addr"`
		SessionTTL time.Duration `yaml:"session_ttl"`
	} `yaml:"server"`
}

// Default returns a configuration usable without any file on disk.
func Default() *Config {
	var cfg Config
	cfg.AI.Provider = "openai"
	cfg.AI.Model = "gpt-4o"
	cfg.AI.Temperature = 0.3
	cfg.AI.MaxOutputTokens = 4000
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"
	cfg.Generation.TokenBudget = 128000
	cfg.Generation.BudgetRatio = 0.9
	cfg.Generation.RetrievalResults = 3
	cfg.Generation.RefineRetrievalResults = 5
	cfg.Generation.FailurePolicy = "count"
	cfg.Generation.MaxRetries = 2
	cfg.Report.CurrentYear = 2
	cfg.Report.TotalYears = 5
	cfg.Storage.DBPath = "reportgen.db"
	cfg.Storage.Collection = "documents"
	cfg.Storage.ChunkSize = 1000
	cfg.Storage.VectorStore = "sqlite"
	cfg.Log.File = "logs/reportgen.log"
	cfg.Server.Addr = ":8080"
	cfg.Server.SessionTTL = time.Hour
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config on top of defaults
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if provider := os.Getenv("REPORTGEN_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = strings.ToLower(provider)
	}
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if apiKey := os.Getenv("REPORTGEN_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case "gemini":
			cfg.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if raw := os.Getenv("MAX_TOKEN_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Generation.TokenBudget = n
		}
	}
	if db := os.Getenv("REPORTGEN_DB"); db != "" {
		cfg.Storage.DBPath = db
	}
}

// Validate checks value ranges after all sources have been merged.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Report.CurrentYear > c.Report.TotalYears {
		return fmt.Errorf("invalid config: current_year %d exceeds total_years %d", c.Report.CurrentYear, c.Report.TotalYears)
	}
	return nil
}
