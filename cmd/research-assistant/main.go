// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-assistant CLI.
// Each subcommand builds the components it needs from the loaded config:
// search, analyze, plan, run, chat, memory, report, and version.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const secretsDir = ".secrets"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets = secrets.Set{}

	logger  = zap.NewNop()
	verbose bool

	// cfg is filled by loadConfig before any subcommand runs.
	cfg = types.DefaultConfig()

	// current is the component set built by the running subcommand, if any.
	current *app
)

// rootCmd is the base command for the research-assistant CLI.
var rootCmd = &cobra.Command{
	Use:   "research-assistant",
	Short: "Multi-agent research assistant for academic literature",
	Long: `research-assistant searches academic and web sources, analyzes the
papers it finds with a language model, and keeps long-term memory across
runs.

A query is planned into tasks for the search, analysis, memory, and writer
agents, then executed through the tool registry. Use search and analyze to
run single stages, run for the full plan-execute-report cycle, and chat for
a conversation that remembers earlier questions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		zc := zap.NewProductionConfig()
		if verbose {
			zc = zap.NewDevelopmentConfig()
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if loadedSecrets, err = secrets.Load(secretsDir, logger); err != nil {
			return err
		}
		if len(loadedSecrets) > 0 {
			logger.Debug("loaded secrets", zap.Strings("keys", loadedSecrets.Keys()))
		}

		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeCurrent()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/research-assistant.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider: gemini, openai, or anthropic")
	rootCmd.PersistentFlags().String("model", "", "LLM model identifier")
	rootCmd.PersistentFlags().Bool("trace", false, "print OpenTelemetry spans to stderr")

	viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("observability.trace_stdout", rootCmd.PersistentFlags().Lookup("trace"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-assistant")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-assistant"))
		}
	}

	setDefaults(types.DefaultConfig())
	viper.SetEnvPrefix("RESEARCH_ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables such as
// RESEARCH_ASSISTANT_MEMORY_BACKEND override it.
func setDefaults(d types.Config) {
	viper.SetDefault("llm.provider", string(d.LLM.Provider))
	viper.SetDefault("llm.model", d.LLM.Model)
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.max_tokens", d.LLM.MaxTokens)

	viper.SetDefault("search.timeout", d.Search.Timeout)
	viper.SetDefault("search.user_agent", d.Search.UserAgent)
	viper.SetDefault("search.sources", d.Search.Sources)
	viper.SetDefault("search.max_results", d.Search.MaxResults)
	viper.SetDefault("search.workers", d.Search.Workers)
	viper.SetDefault("search.serper_api_key", "")
	viper.SetDefault("search.semantic_scholar_api_key", "")
	viper.SetDefault("search.openalex_email", "")

	viper.SetDefault("memory.backend", string(d.Memory.Backend))
	viper.SetDefault("memory.path", d.Memory.Path)
	viper.SetDefault("memory.redis_addr", d.Memory.RedisAddr)
	viper.SetDefault("memory.redis_db", d.Memory.RedisDB)
	viper.SetDefault("memory.redis_key", d.Memory.RedisKey)

	viper.SetDefault("observability.service_name", d.Observability.ServiceName)
	viper.SetDefault("observability.trace_stdout", d.Observability.TraceStdout)
	viper.SetDefault("observability.export_path", d.Observability.ExportPath)

	viper.SetDefault("outputs_dir", d.OutputsDir)
	viper.SetDefault("session_path", d.SessionPath)
}

// loadConfig decodes viper's merged settings into cfg and fills API keys
// left empty from .secrets/ or the environment.
func loadConfig() error {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = loadedSecrets.Get(providerKey(c.LLM.Provider))
	}
	c.Search.SerperAPIKey = secretDefault(secrets.SerperAPIKey, c.Search.SerperAPIKey)
	c.Search.SemanticScholarAPIKey = secretDefault(secrets.SemanticScholarAPIKey, c.Search.SemanticScholarAPIKey)
	c.Search.OpenAlexEmail = secretDefault(secrets.OpenAlexEmail, c.Search.OpenAlexEmail)

	cfg = c
	logger.Debug("config loaded",
		zap.String("provider", string(cfg.LLM.Provider)),
		zap.String("model", cfg.LLM.Model),
		zap.Strings("sources", cfg.Search.Sources),
		zap.String("memory", string(cfg.Memory.Backend)))
	return nil
}

// secretDefault returns fallback if set, otherwise the secret for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets.Get(key)
}

func providerKey(p types.LLMProvider) string {
	switch p {
	case types.ProviderOpenAI:
		return secrets.OpenAIAPIKey
	case types.ProviderAnthropic:
		return secrets.AnthropicAPIKey
	default:
		return secrets.GoogleAPIKey
	}
}

// commandContext returns the command's context, or Background for
// commands run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// closeCurrent closes the running command's app. cobra skips post-run
// hooks when a command fails, so main calls it again after Execute.
func closeCurrent() {
	if current != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		current.Close(ctx)
		current = nil
	}
	_ = logger.Sync()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	closeCurrent()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
