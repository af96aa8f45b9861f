package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alwatan/noura/internal/config"
	"github.com/alwatan/noura/internal/observability"
)

var (
	flagLogLevel string
	flagPersona  string
)

var rootCmd = &cobra.Command{
	Use:           "noura",
	Short:         "Noura - Arabic voice assistant for SAP and government e-service questions",
	SilenceUsage:  true,
	SilenceErrors: true, // main prints the styled error
	Long: `Noura is a terminal client for an Arabic-speaking assistant that answers
questions about SAP systems and Saudi government e-service platforms.

Replies are generated with Gemini and spoken with Gemini speech synthesis.
Spoken questions are transcribed with Deepgram when DEEPGRAM_API_KEY is set.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagPersona, "persona", "", "Persona YAML file overriding the built-in copy")
}

// loadConfig reads the environment and applies the persistent flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagPersona != "" {
		cfg.PersonaFile = flagPersona
	}

	observability.InitLoggerWithWriter(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
