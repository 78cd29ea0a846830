package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	internaldb "github.com/rudransh-shrivastava/fastshare/internal/db"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("history is disabled, set --history or FASTSHARE_HISTORY to a database path")

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded transfers, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), cmd.OutOrStdout(), historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of transfers to show (0 = all)")
}

func runHistory(ctx context.Context, out io.Writer, limit int) error {
	history, closeHistory, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	if history == nil {
		return errHistoryDisabled
	}

	transfers, err := history.ListTransfers(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing transfers: %w", err)
	}

	printTransfers(out, transfers)
	return nil
}

func printTransfers(out io.Writer, transfers []internaldb.Transfer) {
	if len(transfers) == 0 {
		_, _ = fmt.Fprintln(out, "No transfers recorded yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STARTED\tROLE\tFILE\tSIZE\tPEER\tSTATUS")
	for _, t := range transfers {
		status := string(t.Status)
		if t.Status == internaldb.StatusFailed && t.Error != "" {
			status += ": " + t.Error
		} else if t.Status != internaldb.StatusCompleted {
			status += fmt.Sprintf(" (%s)", humanize.IBytes(t.Transferred))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(t.StartedAt),
			t.Role,
			t.FileName,
			humanize.IBytes(t.Size),
			t.Peer,
			status,
		)
	}
	_ = w.Flush()
}
