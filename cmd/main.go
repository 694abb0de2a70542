package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assemblydigest/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assemblydigest",
		Short: "Summarizes National Assembly meeting transcripts and bills",
		Long: `assemblydigest collects National Assembly meetings and bills from the open API,
summarizes long transcripts chunk by chunk with a language model and stores the
results in a local SQLite database.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(), newAnalyzeCmd(), newSyncBillsCmd())

	return rootCmd
}

func newLogger(cmd *cobra.Command, toStderr bool) *slog.Logger {
	w := cmd.OutOrStdout()
	if toStderr {
		w = cmd.ErrOrStderr()
	}

	log := slog.New(slog.NewJSONHandler(w, nil))
	slog.SetDefault(log)

	return log
}

func loadConfig(ctx context.Context, log *slog.Logger) (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// signalContext is cancelled on the first interrupt or SIGTERM.
func signalContext(parent context.Context, log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(c)

		select {
		case sig := <-c:
			log.InfoContext(ctx, "Shutdown signal is received",
				"signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
