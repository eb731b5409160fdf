package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/display"
	"github.com/ppiankov/onefeed/internal/timeline"
)

var nextLimit int

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Load the next page of older posts",
	RunE:  nextAction,
}

func init() {
	nextCmd.Flags().IntVar(&nextLimit, "limit", 50, "maximum entries to display")
	rootCmd.AddCommand(nextCmd)
}

func nextAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	out := s.engine.LoadNextPage(ctx)

	entries := s.engine.CurrentEntries()
	if nextLimit > 0 && len(entries) > nextLimit {
		entries = entries[:nextLimit]
	}

	f := display.NewTerminal(isTerminal())
	if out.Status != timeline.StatusSuccess {
		f.FormatOutcome(os.Stdout, out)
	}
	return f.FormatEntries(os.Stdout, entries, s.engine.UnreadCount())
}
