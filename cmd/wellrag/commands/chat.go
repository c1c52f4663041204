// ABOUTME: Interactive chat command keeping one session's memory across questions
// ABOUTME: Follow-ups like "its TVD" resolve against wells cited earlier in the session
package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harper/wellrag/internal/app"
	"github.com/harper/wellrag/internal/core"
)

var chatSession string

// asker is the slice of the agent the chat loop drives
type asker interface {
	Ask(ctx context.Context, sessionID, query string, opts core.AskOptions) (core.Answer, error)
	ResetSession(id string) bool
}

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive question answering session",
		Long: `Start an interactive session over the indexed well reports.

Each line is a question. The session remembers the last turns, so follow-up
questions can refer to the well discussed before.

Commands inside the session:
  /reset   forget the conversation so far
  /exit    leave (Ctrl-D works too)`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}

	cmd.Flags().StringVar(&chatSession, "session", "", "Session id to use (default: new session)")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := app.Open(cmd.Context(), cfg, newLogger())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	a.ServeMetrics(cmd.Context())

	return chatLoop(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.Agent, chatSession)
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, agent asker, sessionID string) error {
	scanner := bufio.NewScanner(in)
	prompt := func() {
		if !quiet {
			fmt.Fprint(out, "> ")
		}
	}

	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/reset":
			if sessionID != "" && agent.ResetSession(sessionID) {
				fmt.Fprintln(out, "Session memory cleared.")
			} else {
				fmt.Fprintln(out, "Nothing to reset.")
			}
		case strings.HasPrefix(line, "/"):
			fmt.Fprintf(out, "Unknown command %s (try /reset or /exit)\n", line)
		default:
			answer, err := agent.Ask(ctx, sessionID, line, core.AskOptions{Interactive: true})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(out, "Error: %v\n", err)
				break
			}
			sessionID = answer.SessionID
			if err := printAnswer(out, answer); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		prompt()
	}
	return scanner.Err()
}
