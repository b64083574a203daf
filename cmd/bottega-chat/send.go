package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bottegachat/internal/chat"
	"bottegachat/internal/session"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send one message and print the bot reply",
		Long: `send runs a single chat turn and prints the normalized reply on stdout.

The thread id in effect after the turn is printed on stderr, so the conversation
can be continued with --thread-id.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.ThreadID != "" && !session.Valid(a.cfg.ThreadID) {
				return errors.Errorf("invalid thread id %q (from --thread-id, BOTTEGA_THREAD_ID or thread_id)", a.cfg.ThreadID)
			}
			return a.runSend(cmd.Context(), strings.Join(args, " "), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func (a *app) runSend(ctx context.Context, message string, out, errOut io.Writer) error {
	printed := 0
	ctrl := a.newController(chat.WithOnChange(func(snap chat.Snapshot) {
		for ; printed < len(snap.Turns); printed++ {
			if turn := snap.Turns[printed]; !turn.IsUser {
				fmt.Fprintln(out, turn.Text)
			}
		}
	}))

	if !ctrl.Send(ctx, message) {
		return errors.New("message must not be blank")
	}
	snap := ctrl.Snapshot()
	fmt.Fprintf(errOut, "thread_id: %s\n", snap.SessionID)
	if snap.LastError != nil {
		return errors.Wrap(snap.LastError, "chat turn failed")
	}
	return nil
}
