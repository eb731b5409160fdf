package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/onefeed/internal/display"
)

var refreshForce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch new posts from all selected accounts",
	RunE:  refreshAction,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshForce, "force", false, "reset cursors and refetch from the top")
	rootCmd.AddCommand(refreshCmd)
}

func refreshAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	out := s.engine.Refresh(ctx, refreshForce)

	f := display.NewTerminal(isTerminal())
	f.FormatOutcome(os.Stdout, out)
	return nil
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
