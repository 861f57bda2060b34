package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/allenjsomb/changer/pkg/audit"
	"github.com/allenjsomb/changer/pkg/config"
	"github.com/allenjsomb/changer/pkg/logging"
	"github.com/allenjsomb/changer/pkg/metrics"
	"github.com/allenjsomb/changer/pkg/rulestore"
	"github.com/allenjsomb/changer/pkg/supervisor"
	"github.com/allenjsomb/changer/pkg/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "changer",
	Short: "changer - a stream transformation broker",
	Long: `changer ingests multipart messages over a ZeroMQ PULL socket, dispatches
each message by its source tag, applies a configured named-capture regular
expression to extract structured fields, and republishes the result as JSON
on a PUB socket under a destination tag.

Rules linking source -> regex -> destination are loaded from a YAML rules
file and may be hot-reloaded without restart.`,
	RunE: runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.RulesPath, "rules", "./rules.yml", "Path to the rules file")
	flags.StringVar(&cfg.LogLevel, "log_level", "info", "Log level: debug, error, info, trace, warn")
	flags.StringVar(&cfg.LogStyle, "log_style", "auto", "Log color style: always, auto, never")
	flags.StringVar(&cfg.IP, "ip", "0.0.0.0", "Address to bind the ingress and egress sockets on")
	flags.IntVar(&cfg.PullPort, "pull_port", 7101, "Port for the ingress PULL socket (1024-65535)")
	flags.IntVar(&cfg.PubPort, "pub_port", 7102, "Port for the egress PUB socket (1024-65535)")
	flags.IntVar(&cfg.Rhwm, "rhwm", 1000, "Receive high-water mark (>= 1)")
	flags.IntVar(&cfg.Shwm, "shwm", 1000, "Send high-water mark (>= 1)")
	flags.StringVar(&cfg.MetricsAddr, "metrics_addr", "127.0.0.1:9101", "Address to serve Prometheus metrics on; empty disables")
	flags.StringVar(&cfg.AckStore, "ack_store", "", "Path to an optional SQLite ack ledger; empty disables")

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if info, err := os.Stat(cfg.RulesPath); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("rules file %s does not exist or is not a regular file", cfg.RulesPath)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogStyle)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	defer logger.Sync()
	logging.ConfigureColor(cfg.LogStyle)

	sockets, err := transport.NewZMQSet(cfg.IP, cfg.PullPort, cfg.PubPort, cfg.Rhwm, cfg.Shwm)
	if err != nil {
		return fmt.Errorf("binding sockets: %w", err)
	}
	defer sockets.Close()

	store := rulestore.New(cfg.RulesPath, logger)
	ledger, err := audit.Open(cfg.AckStore)
	if err != nil {
		return fmt.Errorf("opening ack store: %w", err)
	}
	defer ledger.Close()

	reg := metrics.New()

	sup := supervisor.New(sockets, store, ledger, reg, cfg.RulesPath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := reg.Serve(ctx, cfg.MetricsAddr); err != nil {
			logger.Warn("metrics server exited", zap.Error(err))
		}
	}()

	logger.Info("changer starting",
		zap.String("ip", cfg.IP),
		zap.Int("pull_port", cfg.PullPort),
		zap.Int("pub_port", cfg.PubPort),
	)

	return sup.Start(ctx)
}
