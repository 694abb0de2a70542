package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"assemblydigest/internal/domain"

	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	title string
	joint bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <url|file>",
		Short: "Summarize one document and print the analysis as JSON",
		Long: `Summarize one document and print {"summary": ..., "topics": [...]}.

The argument is either a document URL, which is downloaded and parsed, or a
local plain text file.

Examples:
  assemblydigest analyze https://record.assembly.go.kr/assembly/viewer/minutes/download/pdf.do?id=55000
  assemblydigest analyze transcript.txt --title "제422회 국회 본회의"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Document title used in prompts")
	cmd.Flags().BoolVar(&opts.joint, "joint", false, "Run both reducers concurrently")

	return cmd
}

func runAnalyze(cmd *cobra.Command, source string, opts analyzeOptions) error {
	log := newLogger(cmd, true)

	ctx, cancel := signalContext(cmd.Context(), log)
	defer cancel()

	cfg, err := loadConfig(ctx, log)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var analysis domain.Analysis

	if isURL(source) {
		analysis = a.pipeline.AnalyzeDocument(ctx, a.loader, source, opts.title)
	} else {
		text, readErr := os.ReadFile(source)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", source, readErr)
		}

		if opts.joint {
			analysis = a.pipeline.RunJoint(ctx, string(text), opts.title)
		} else {
			analysis = a.pipeline.Run(ctx, string(text), opts.title)
		}
	}

	if analysis.Empty() {
		log.WarnContext(ctx, "Analysis is empty",
			"source", source)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err = enc.Encode(analysis); err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	if ctx.Err() != nil {
		return errors.New("analysis was interrupted")
	}

	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
