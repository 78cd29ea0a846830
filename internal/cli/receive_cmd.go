package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/fastshare/internal/node"
	"github.com/rudransh-shrivastava/fastshare/internal/progress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var receiveCmd = &cobra.Command{
	Use:   "receive IP",
	Short: "Connect to a sender and save the file it offers",
	Long: `Connect to the sender at IP on the configured port and write the file it
sends into the output directory. An existing file with the same name is
overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReceive(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	receiveCmd.Flags().StringP("output", "o", ".", "directory to save the file in")
	_ = viper.BindPFlag("output", receiveCmd.Flags().Lookup("output"))
}

func runReceive(ctx context.Context, out io.Writer, host string) error {
	history, closeHistory, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	opts := node.Options{Config: cfg, Logger: log}
	if history != nil {
		opts.History = history
	}

	var bar *progress.Bar
	if !cfg.Quiet {
		bar = progress.NewBar(os.Stderr, "Receiving")
		opts.Observer = bar
	}

	res, err := node.New(opts).Receive(ctx, host, cfg.Output)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if res.Path != "" {
			log.WithField("path", res.Path).Warn("Partial file left on disk")
		}
		return err
	}

	_, _ = fmt.Fprintf(out, "Received %s (%s), saved to %s\n",
		res.Metadata.Name, humanize.IBytes(res.Transferred), res.Path)
	return nil
}
