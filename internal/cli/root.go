package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/ppiankov/vitalscribe/internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vitalscribe",
	Short: "VitalScribe - nursing assessment field extraction",
	Long: `VitalScribe turns free-text nursing assessment transcripts into
structured, validated form fields.

Relevant fields are selected by embedding similarity against the field
catalog, a language model extracts their values, and every value is
validated and normalized against the catalog rules. When retrieval or the
model is unavailable, deterministic pattern extraction takes over.

Extracted values are suggestions for a nurse to review, never a final record.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number and build information for VitalScribe.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vitalscribe %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.vitalscribe/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "", "database DSN (SQLite path or Postgres URL)")
	rootCmd.PersistentFlags().String("store-driver", "", "store backend (sqlite, postgres)")
	rootCmd.PersistentFlags().String("llm-provider", "", "LLM provider (openai, anthropic, ollama; empty disables)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model name")
	rootCmd.PersistentFlags().String("embedding-provider", "", "embedding provider (openai, ollama; empty disables)")
	rootCmd.PersistentFlags().String("embedding-model", "", "embedding model name")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))
	_ = viper.BindPFlag("embedding.provider", rootCmd.PersistentFlags().Lookup("embedding-provider"))
	_ = viper.BindPFlag("embedding.model", rootCmd.PersistentFlags().Lookup("embedding-model"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.vitalscribe")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults()

	// VITALSCRIBE_LLM_PROVIDER -> llm.provider
	viper.SetEnvPrefix("VITALSCRIBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
