package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/fastshare/internal/config"
	"github.com/rudransh-shrivastava/fastshare/internal/node"
	"github.com/rudransh-shrivastava/fastshare/internal/progress"
	"github.com/rudransh-shrivastava/fastshare/internal/protocol"
	"github.com/rudransh-shrivastava/fastshare/internal/transport"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send FILE",
	Short: "Wait for one receiver and send it FILE",
	Long: `Listen on the configured port, wait for exactly one receiver to connect,
send FILE and exit. The command to run on the receiving machine is printed
once the port is bound.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func runSend(ctx context.Context, out io.Writer, path string) error {
	history, closeHistory, err := openHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	opts := node.Options{
		Config: cfg,
		Logger: log,
		OnListening: func(addr *net.TCPAddr, meta protocol.FileMetadata) {
			printReceiveHint(out, localHost(), addr.Port, meta)
		},
	}
	if history != nil {
		opts.History = history
	}

	var bar *progress.Bar
	if !cfg.Quiet {
		bar = progress.NewBar(os.Stderr, "Sending "+filepath.Base(path))
		opts.Observer = bar
	}

	res, err := node.New(opts).Send(ctx, path)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Sent %s (%s)\n", res.Metadata.Name, humanize.IBytes(res.Transferred))
	return nil
}

func localHost() string {
	ip, err := transport.LocalIP()
	if err != nil {
		log.Warnf("Could not determine local IP: %v", err)
		return "<this-machine-ip>"
	}
	return ip
}

func printReceiveHint(out io.Writer, host string, port int, meta protocol.FileMetadata) {
	_, _ = fmt.Fprintf(out, "Serving %s (%s) on %s\n", meta.Name, humanize.IBytes(meta.Size), transport.HostPort(host, port))
	_, _ = fmt.Fprintf(out, "On the receiving machine run:\n\n  %s\n\n", receiveCommand(host, port))
}

func receiveCommand(host string, port int) string {
	c := "fastshare receive " + host
	if port != config.DefaultPort {
		c += fmt.Sprintf(" --port %d", port)
	}
	return c
}
