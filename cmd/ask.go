package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusmind/campusmind/internal/app"
	"github.com/campusmind/campusmind/internal/config"
)

var askCmd = &cobra.Command{
	Use:   "ask <course-id> <question...>",
	Short: "Ask a question about a course's materials",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		return runAsk(args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(courseID, question string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	result := a.Synthesizer.Answer(ctx, courseID, question)
	fmt.Println(result.Text)
	if len(result.SourceRefs) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(result.SourceRefs, ", "))
	}
	return nil
}
