package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <post-id>",
	Short: "Mark a post and everything older as read",
	Args:  cobra.ExactArgs(1),
	RunE:  readAction,
}

func init() {
	rootCmd.AddCommand(readCmd)
}

func readAction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	// The watermark only makes sense against the current merged list.
	s.engine.Refresh(ctx, false)

	if err := s.engine.MarkReadThrough(args[0]); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	fmt.Printf("Marked read through %s. %d unread remaining.\n", args[0], s.engine.UnreadCount())
	return nil
}
