package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/display"
	"github.com/ppiankov/onefeed/internal/timeline"
)

var (
	showLimit int
	showForce bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Refresh and display the merged timeline",
	RunE:  showAction,
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 50, "maximum entries to display")
	showCmd.Flags().BoolVar(&showForce, "force", false, "reset cursors and refetch from the top")
	rootCmd.AddCommand(showCmd)
}

func showAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	out := s.engine.Refresh(ctx, showForce)

	entries := s.engine.CurrentEntries()
	if showLimit > 0 && len(entries) > showLimit {
		entries = entries[:showLimit]
	}

	f := display.NewTerminal(isTerminal())
	if out.Status != timeline.StatusSuccess {
		f.FormatOutcome(os.Stdout, out)
	}
	return f.FormatEntries(os.Stdout, entries, s.engine.UnreadCount())
}
