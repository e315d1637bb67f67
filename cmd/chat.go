package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	orchestratorx "github.com/tanpawarit/chative-bank-onboarding/agent/agents/orchestrator"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	"github.com/tanpawarit/chative-bank-onboarding/api"
)

var chatSession string

var ChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long: `Talk to the assistant from the terminal.

Commands:
  /image <path>   attach a license image to the next message
  /reset          forget the current session
  /quit           exit`,
	RunE: runChat,
}

func init() {
	ChatCmd.Flags().StringVar(&chatSession, "session", "", "Session id (random when empty)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close resources")
		}
	}()

	sessionID := chatSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return chatLoop(ctx, a.orchestrator, sessionID, cmd.InOrStdin(), cmd.OutOrStdout())
}

func chatLoop(ctx context.Context, wf api.Workflow, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "session %s\n", sessionID)

	var images [][]byte
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/reset":
			if err := wf.Reset(ctx, sessionID); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
				continue
			}
			images = nil
			fmt.Fprintln(out, "session cleared")
			continue
		case strings.HasPrefix(line, "/image "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(out, "read image: %v\n", err)
				continue
			}
			images = append(images, data)
			fmt.Fprintf(out, "attached %s (%d images pending)\n", path, len(images))
			continue
		}

		stream := wf.Stream(ctx, orchestratorx.Request{SessionID: sessionID, Text: line, Images: images})
		images = nil
		for ev := range stream.Events() {
			if ev.Kind.Terminal() {
				fmt.Fprintln(out, eventx.Display(ev))
				continue
			}
			fmt.Fprintf(out, "  · %s\n", eventx.Display(ev))
		}
	}
}
