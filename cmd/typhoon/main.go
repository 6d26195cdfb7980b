// Package main is the entry point for the Typhoon chat service.
// Typhoon is a plain-text chatbot about modern fighter jets, served
// over HTTP with a small embedded web UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/typhoon/internal/chat"
	"github.com/normanking/typhoon/internal/config"
	"github.com/normanking/typhoon/internal/conversation"
	"github.com/normanking/typhoon/internal/knowledge"
	"github.com/normanking/typhoon/internal/llm"
	"github.com/normanking/typhoon/internal/logging"
	"github.com/normanking/typhoon/internal/persona"
	"github.com/normanking/typhoon/internal/server"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "typhoon",
		Short: "Typhoon - a fighter jet chatbot service",
		Long: `Typhoon answers questions about modern fighter jets in plain,
friendly language, using public information only.

Start the server:   typhoon serve
One-shot question:  typhoon ask "How fast is the Typhoon?"
Configuration:      typhoon config show`,
		RunE: runServe,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.typhoon/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat server",
		RunE:  runServe,
	})

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(configCmd())

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Typhoon v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildEngine wires the full chat stack from configuration.
func buildEngine(cfg *config.Config) (*chat.Engine, *llm.MetricsProvider, error) {
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	kb, err := knowledge.Load(cfg.Chat.KnowledgePath)
	if err != nil {
		return nil, nil, err
	}

	engine := chat.NewEngine(provider, conversation.NewHistory(), persona.Default(), kb, chat.Options{
		MaxHistoryPairs: cfg.Chat.MaxHistoryPairs,
		MaxRounds:       cfg.Chat.MaxRounds,
		ReplyTokens:     cfg.Chat.ReplyTokens,
	})
	return engine, provider, nil
}

func initLogging(cfg *config.Config) (func(), error) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	closer, err := logging.Setup(level, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	return func() { closer.Close() }, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cleanup, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, provider, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	if !provider.Available() {
		log.Warn().Str("provider", provider.Name()).Msg("backend not available; chat requests will fail until it is")
	}

	fmt.Println(bannerStyle.Render("Typhoon") + " fighter jet chat server")
	fmt.Printf("Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, engine, provider).Start(ctx)
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cleanup, err := initLogging(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			engine, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			reply, err := engine.Respond(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Println(answerStyle.Render(reply))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("Typhoon Configuration:")
			fmt.Println("──────────────────────")
			fmt.Printf("Listen:         %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("Provider:       %s\n", cfg.LLM.DefaultProvider)
			if p, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; ok {
				fmt.Printf("Model:          %s\n", p.Model)
			}
			fmt.Printf("History pairs:  %d\n", cfg.Chat.MaxHistoryPairs)
			fmt.Printf("Max rounds:     %d\n", cfg.Chat.MaxRounds)
			fmt.Printf("Reply tokens:   %d\n", cfg.Chat.ReplyTokens)
			fmt.Printf("Knowledge file: %s\n", cfg.Chat.KnowledgePath)
			fmt.Printf("Log level:      %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			if cfgPath != "" {
				fmt.Println(cfgPath)
				return
			}
			home, _ := os.UserHomeDir()
			fmt.Println(home + "/.typhoon/config.yaml")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				path = home + "/.typhoon/config.yaml"
			}
			if err := config.Default().SaveToPath(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})

	return cmd
}
