package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/fastshare/internal/config"
	"github.com/rudransh-shrivastava/fastshare/internal/db"
	"github.com/rudransh-shrivastava/fastshare/internal/logger"
	"github.com/rudransh-shrivastava/fastshare/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg     *config.Config
	cfgFile string
	log     = logger.NewLogger()
)

var rootCmd = &cobra.Command{
	Use:   "fastshare",
	Short: "Send a file to another machine on the local network",
	Long: `fastshare transfers a single file between two machines over a direct TCP
connection. No server sits in between.

  On the sending machine:    fastshare send ./video.mp4
  On the receiving machine:  fastshare receive 192.168.1.20`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level, _ := cfg.Level()
		log.SetLevel(level)
		return nil
	},
}

func init() {
	d := config.NewDefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fastshare.yaml)")
	flags.IntP("port", "p", d.Port, "TCP port to listen on or connect to")
	flags.Int("chunk-size", d.ChunkSize, "bytes per read and write")
	flags.Duration("timeout", 0, "per read/write timeout once connected (0 = none)")
	flags.Duration("dial-timeout", 0, "connect timeout for receive (0 = none)")
	flags.Duration("accept-timeout", 0, "how long send waits for a receiver (0 = forever)")
	flags.String("history", "", "SQLite file to record transfers in (empty = disabled)")
	flags.String("log-level", d.LogLevel, "debug, info, warn or error")
	flags.BoolP("quiet", "q", false, "do not draw a progress bar")

	for key, name := range map[string]string{
		"port":           "port",
		"chunk_size":     "chunk-size",
		"timeout":        "timeout",
		"dial_timeout":   "dial-timeout",
		"accept_timeout": "accept-timeout",
		"history":        "history",
		"log_level":      "log-level",
		"quiet":          "quiet",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the command tree until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("fastshare failed")
		stop()
		os.Exit(1)
	}
}

// openHistory returns the configured ledger, or nil when history is off.
func openHistory() (*store.TransferStore, func(), error) {
	if cfg.History == "" {
		return nil, func() {}, nil
	}

	gdb, err := db.Open(cfg.History)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history %s: %w", cfg.History, err)
	}
	log.WithField("path", cfg.History).Debug("Recording transfer history")

	return store.NewTransferStore(gdb), func() { _ = db.Close(gdb) }, nil
}
