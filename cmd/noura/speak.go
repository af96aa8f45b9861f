package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alwatan/noura/internal/playback"
)

var speakCmd = &cobra.Command{
	Use:   "speak TEXT...",
	Short: "Speak text in the assistant's voice and exit",
	Long: `Speak synthesizes TEXT with the configured voice and style and plays it
on the selected output: the speakers when built with -tags portaudio, WAV
files in PLAYBACK_OUTPUT_DIR otherwise.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpeak,
}

func init() {
	rootCmd.AddCommand(speakCmd)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	text := strings.Join(args, " ")
	outcome := a.speaker.PlayText(text).Wait()

	switch outcome {
	case playback.OutcomeCompleted:
		fmt.Fprintln(cmd.OutOrStdout(), statusStyle.Render("spoken on "+a.output))
		return nil
	case playback.OutcomeSilent:
		return fmt.Errorf("no audio was produced for %q", text)
	default:
		return fmt.Errorf("playback %s", outcome)
	}
}
