package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/vitalscribe/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage VitalScribe configuration",
	Long: `Manage VitalScribe configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (VITALSCRIBE_*)
3. Config file (~/.vitalscribe/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, env vars and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := decodeConfig()
		if err != nil {
			return err
		}
		// Missing keys are reported below rather than failing the dump
		_ = applyProviderEnv(cfg)

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Printf("  LLM API key:        %s\n", keyStatus(cfg.LLM.APIKey))
		fmt.Printf("  Embedding API key:  %s\n", keyStatus(cfg.Embedding.APIKey))
		fmt.Println()
		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (VITALSCRIBE_*, OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL)")
		fmt.Println("  3. Config file (~/.vitalscribe/config.yaml)")
		fmt.Println("  4. Defaults")
		fmt.Println()

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.vitalscribe/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.vitalscribe"
		configPath := configDir + "/config.yaml"

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'vitalscribe config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...interface{}) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# VitalScribe Configuration File\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (VITALSCRIBE_*, e.g. VITALSCRIBE_LLM_PROVIDER)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n")
		printf("#\n")
		printf("# Durations are nanoseconds or Go duration strings (\"30s\", \"720h\").\n\n")

		yamlData, mErr := yaml.Marshal(model.DefaultConfig())
		if mErr != nil {
			return fmt.Errorf("error marshaling config: %w", mErr)
		}
		if err == nil {
			if _, wErr := f.Write(yamlData); wErr != nil {
				return fmt.Errorf("error writing config: %w", wErr)
			}
		}

		printf("\n# API Keys (recommended to use environment variables instead):\n")
		printf("#   export OPENAI_API_KEY=sk-...\n")
		printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
		printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")

		if err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  vitalscribe config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// setDefaults registers every configuration key so env vars and config files can override it
func setDefaults() {
	d := model.DefaultConfig()

	viper.SetDefault("llm.provider", d.LLM.Provider)
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", d.LLM.BaseURL)
	viper.SetDefault("llm.timeout", d.LLM.Timeout)
	viper.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	viper.SetDefault("embedding.provider", d.Embedding.Provider)
	viper.SetDefault("embedding.model", d.Embedding.Model)
	viper.SetDefault("embedding.api_key", "")
	viper.SetDefault("embedding.base_url", d.Embedding.BaseURL)

	viper.SetDefault("retrieval.threshold", d.Retrieval.Threshold)
	viper.SetDefault("retrieval.top_k", d.Retrieval.TopK)

	viper.SetDefault("store.driver", d.Store.Driver)
	viper.SetDefault("store.dsn", d.Store.DSN)
	viper.SetDefault("store.transcript_retention", d.Store.TranscriptRetention)

	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.backend", d.Cache.Backend)
	viper.SetDefault("cache.dir", d.Cache.Dir)
	viper.SetDefault("cache.ttl", d.Cache.TTL)
	viper.SetDefault("cache.redis_addr", d.Cache.RedisAddr)

	viper.SetDefault("concurrency.workers", d.Concurrency.Workers)
	viper.SetDefault("rate_limiting.requests_per_second", d.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", d.RateLimiting.BurstSize)
	viper.SetDefault("rate_limiting.embed_rps", d.RateLimiting.EmbedRPS)
	viper.SetDefault("rate_limiting.completion_rps", d.RateLimiting.CompletionRPS)

	viper.SetDefault("timeouts.embed", d.Timeouts.Embed)
	viper.SetDefault("timeouts.search", d.Timeouts.Search)
	viper.SetDefault("timeouts.completion", d.Timeouts.Completion)
	viper.SetDefault("timeouts.persist", d.Timeouts.Persist)

	viper.SetDefault("breaker.max_failures", d.Breaker.MaxFailures)
	viper.SetDefault("breaker.open_timeout", d.Breaker.OpenTimeout)
	viper.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	viper.SetDefault("retry.initial_interval", d.Retry.InitialInterval)

	viper.SetDefault("logging.environment", d.Logging.Environment)
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("server.addr", d.Server.Addr)

	viper.SetDefault("http.http_proxy", d.HTTP.HTTPProxy)
	viper.SetDefault("http.https_proxy", d.HTTP.HTTPSProxy)
	viper.SetDefault("http.no_proxy", d.HTTP.NoProxy)
	viper.SetDefault("http.max_body_bytes", d.HTTP.MaxBodyBytes)
}

// loadConfig merges viper's view of defaults, file, env and flags into a Config
// and resolves provider credentials from the conventional environment variables.
func loadConfig() (*model.Config, error) {
	cfg, err := decodeConfig()
	if err != nil {
		return nil, err
	}
	if err := applyProviderEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func applyProviderEnv(cfg *model.Config) error {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	switch strings.ToLower(cfg.Embedding.Provider) {
	case "openai":
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set (required by the embedding provider)")
		}
	case "ollama":
		// The embedder speaks Ollama's OpenAI-compatible endpoint
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		}
	}
	return nil
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}
	return "set"
}
