package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregtusar/futures-cli/internal/config"
	"github.com/gregtusar/futures-cli/internal/dispatcher"
	"github.com/gregtusar/futures-cli/internal/logging"
	"github.com/gregtusar/futures-cli/internal/shell"
	"github.com/gregtusar/futures-cli/pkg/binance"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a, os.Stdin).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfgFile string

	cfg        *config.Config
	logger     *logrus.Logger
	logCloser  io.Closer
	client     *binance.FuturesClient
	dispatcher *dispatcher.Dispatcher
}

func newRootCmd(a *app, stdin io.Reader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "futures-cli",
		Short: "Binance USDⓈ-M futures trading from the command line",
		Long: `Place and cancel futures orders and query balances and prices,
either interactively or one command at a time. Runs against the testnet
unless --mainnet is given.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd, stdin)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.String("api-key", "", "Binance API key")
	flags.String("api-secret", "", "Binance API secret")
	flags.Bool("testnet", true, "use the futures testnet")
	flags.Bool("mainnet", false, "use the live exchange instead of the testnet")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "log sink file, \"stdout\" or \"stderr\" (default is trading_bot_YYYYMMDD.log)")
	rootCmd.MarkFlagsMutuallyExclusive("testnet", "mainnet")

	for _, c := range dispatcher.Commands() {
		rootCmd.AddCommand(newDispatchCmd(a, c))
	}

	return rootCmd
}

// newDispatchCmd exposes one shell command as a one-shot subcommand.
func newDispatchCmd(a *app, c dispatcher.Command) *cobra.Command {
	return &cobra.Command{
		Use:     c.Name + " " + c.Usage(),
		Aliases: c.Aliases,
		Short:   c.Summary,
		Args:    cobra.RangeArgs(c.RequiredArgs(), len(c.Params)),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.dispatcher.Dispatch(cmd.Context(), c.Name, args, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			res.Render(cmd.OutOrStdout())
			return nil
		},
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	client := binance.NewFuturesClient(binance.Config{
		APIKey:            cfg.Exchange.APIKey,
		APISecret:         cfg.Exchange.APISecret,
		Testnet:           cfg.Exchange.Testnet,
		BaseURL:           cfg.Exchange.BaseURL,
		StreamURL:         cfg.Exchange.StreamURL,
		Timeout:           cfg.Exchange.Timeout,
		RecvWindow:        cfg.Exchange.RecvWindow,
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		AlignQuantity:     cfg.Exchange.AlignQuantity,
	}, logger)

	logger.WithFields(logrus.Fields{
		"environment": cfg.Environment(),
		"endpoint":    client.BaseURL(),
	}).Info("Client initialized")

	a.cfg = cfg
	a.logger = logger
	a.logCloser = closer
	a.client = client
	a.dispatcher = dispatcher.New(client, logger, cfg.Shell.WatchCount)
	return nil
}

func (a *app) runShell(cmd *cobra.Command, stdin io.Reader) error {
	ctx := cmd.Context()

	if err := a.client.Verify(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to start")
		return fmt.Errorf("failed to start: %w", err)
	}

	sh := shell.New(a.dispatcher, stdin, cmd.OutOrStdout(), a.logger)
	sh.Prompt = a.cfg.Shell.Prompt
	sh.Banner = a.cfg.Shell.Banner
	sh.Environment = a.cfg.Environment()

	return sh.Run(ctx)
}

// close releases the log sink. It is safe to call when setup never ran.
func (a *app) close() {
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", err)
		}
	}
}
