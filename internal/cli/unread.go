package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/display"
	"github.com/ppiankov/onefeed/internal/timeline"
)

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show the unread count and jump to the first unread post",
	RunE:  unreadAction,
}

func init() {
	rootCmd.AddCommand(unreadCmd)
}

func unreadAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	out := s.engine.Refresh(ctx, false)

	f := display.NewTerminal(isTerminal())
	if out.Status != timeline.StatusSuccess {
		f.FormatOutcome(os.Stdout, out)
	}

	count := s.engine.UnreadCount()
	if count == 0 {
		fmt.Println("All caught up.")
		return nil
	}

	fmt.Printf("%d unread posts. First unread:\n\n", count)
	if entry, ok := s.engine.JumpToFirstUnread(); ok {
		return f.FormatEntries(os.Stdout, []timeline.Entry{entry}, count)
	}
	return nil
}
