package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maumlab/counsel/internal/app"
	"github.com/maumlab/counsel/internal/config"
	"github.com/maumlab/counsel/internal/dialogue"
	"github.com/maumlab/counsel/internal/respond"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "대화형 상담 모드 실행",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	return chatLoop(ctx, a.Orchestrator, os.Stdin, os.Stdout)
}

// chatLoop runs the interactive counseling session until the user closes it
// or input ends.
func chatLoop(ctx context.Context, responder interface {
	Respond(ctx context.Context, sessionID, input string) dialogue.Turn
}, in io.Reader, out io.Writer) error {
	sessionID := uuid.NewString()

	fmt.Fprintln(out, "안녕하세요, 마음 상담사입니다. 어떤 이야기든 편하게 들려주세요.")
	fmt.Fprintln(out, "(종료하려면 '고마워' 또는 'exit'를 입력하세요.)")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Fprint(out, "나> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		turn := responder.Respond(ctx, sessionID, input)
		printTurn(out, turn)

		if turn.Mode == string(respond.ModeClosing) {
			return nil
		}
	}
}

// printTurn renders one turn to the console, with source citations for
// augmented answers.
func printTurn(out io.Writer, turn dialogue.Turn) {
	fmt.Fprintf(out, "\n상담사> %s\n", turn.Answer)

	if len(turn.UsedChunks) > 0 {
		fmt.Fprintln(out, "\n  [참고 자료]")
		for _, c := range turn.UsedChunks {
			fmt.Fprintf(out, "  - %s: %s\n", c.Source, c.Summary)
		}
	}
	fmt.Fprintln(out)
}
