package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	HubSpot   HubSpotConfig   `yaml:"hubspot" mapstructure:"hubspot"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// HubSpotConfig holds HubSpot API credentials and limits. Key is used for
// read operations, WriteKey for contact updates.
type HubSpotConfig struct {
	Key      string  `yaml:"key" mapstructure:"key"`
	WriteKey string  `yaml:"write_key" mapstructure:"write_key"`
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	RPS      float64 `yaml:"rps" mapstructure:"rps"`
	PageSize int     `yaml:"page_size" mapstructure:"page_size"`
	// MappingFile points at the persona label → enum value JSON mapping
	// used on import.
	MappingFile string `yaml:"mapping_file" mapstructure:"mapping_file"`
}

// EnrichConfig configures chunking, pacing, and pass behavior.
type EnrichConfig struct {
	InitialChunk       int      `yaml:"initial_chunk" mapstructure:"initial_chunk"`
	MinChunk           int      `yaml:"min_chunk" mapstructure:"min_chunk"`
	MaxChunk           int      `yaml:"max_chunk" mapstructure:"max_chunk"`
	MaxPasses          int      `yaml:"max_passes" mapstructure:"max_passes"`
	TokenBudgetTPM     int      `yaml:"token_budget_tpm" mapstructure:"token_budget_tpm"`
	ChunkTokenCeiling  int      `yaml:"chunk_token_ceiling" mapstructure:"chunk_token_ceiling"`
	SafetyTokensPerRow int      `yaml:"safety_tokens_per_row" mapstructure:"safety_tokens_per_row"`
	BaseSleepMs        int      `yaml:"base_sleep_ms" mapstructure:"base_sleep_ms"`
	Personas           []string `yaml:"personas" mapstructure:"personas"`
	FrameFile          string   `yaml:"frame_file" mapstructure:"frame_file"`
	PersonasFile       string   `yaml:"personas_file" mapstructure:"personas_file"`
	ExcludeEmails      []string `yaml:"exclude_emails" mapstructure:"exclude_emails"`
}

// RetryConfig configures the retry/backoff controller.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// OutputConfig configures where accepted and skipped CSVs are written.
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	SkippedDir string `yaml:"skipped_dir" mapstructure:"skipped_dir"`
}

// StoreConfig configures the run-history database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PERSONA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rps", 4.0)
	v.SetDefault("hubspot.page_size", 100)
	v.SetDefault("hubspot.mapping_file", "hubspot_persona_mapping.json")
	v.SetDefault("enrich.initial_chunk", 80)
	v.SetDefault("enrich.min_chunk", 10)
	v.SetDefault("enrich.max_chunk", 100)
	v.SetDefault("enrich.max_passes", 3)
	v.SetDefault("enrich.token_budget_tpm", 360000)
	v.SetDefault("enrich.chunk_token_ceiling", 12000)
	v.SetDefault("enrich.safety_tokens_per_row", 120)
	v.SetDefault("enrich.base_sleep_ms", 1500)
	v.SetDefault("enrich.frame_file", "frame_instructions.txt")
	v.SetDefault("enrich.personas_file", "persona_definitions.txt")
	v.SetDefault("enrich.exclude_emails", []string{"@sells-group.com", "test"})
	v.SetDefault("retry.max_attempts", 6)
	v.SetDefault("retry.initial_backoff_ms", 2000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.skipped_dir", "output/skipped")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration required for the given mode is
// present and sane. Modes: "enrich" (classification runs), "hubspot"
// (export/import against the CRM).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "enrich":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Enrich.MaxPasses < 1 {
			problems = append(problems, "enrich.max_passes must be >= 1")
		}
		if c.Enrich.MinChunk < 1 || c.Enrich.InitialChunk < c.Enrich.MinChunk {
			problems = append(problems, "enrich chunk sizes must satisfy 1 <= min_chunk <= initial_chunk")
		}
		if c.Enrich.MaxChunk > 0 && c.Enrich.InitialChunk > c.Enrich.MaxChunk {
			problems = append(problems, "enrich.initial_chunk must be <= max_chunk")
		}
		if c.Enrich.TokenBudgetTPM < 1 {
			problems = append(problems, "enrich.token_budget_tpm must be > 0")
		}
	case "hubspot":
		if c.HubSpot.Key == "" {
			problems = append(problems, "hubspot.key is required")
		}
		if c.HubSpot.RPS <= 0 {
			problems = append(problems, "hubspot.rps must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
