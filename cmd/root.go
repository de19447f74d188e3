// Package cmd implements the counsel CLI commands.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maumlab/counsel/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "counsel",
	Short: "counsel - 아들러 심리학 기반 상담 서비스",
	Long: `counsel은 아들러 개인심리학 지식 베이스를 바탕으로 답변하는
RAG 상담 서비스입니다.

인자 없이 실행하면 대화형 상담 모드로 진입합니다.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG in the environment switches on
// debug-level output; logs go to stderr so stdout stays clean for the chat.
func newLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, cfg)
}
