package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kelsos/chainbot/internal/backup"
	"github.com/kelsos/chainbot/internal/bot"
	"github.com/kelsos/chainbot/internal/chain"
	"github.com/kelsos/chainbot/internal/config"
	"github.com/kelsos/chainbot/internal/logger"
	"github.com/kelsos/chainbot/internal/server"
	"github.com/kelsos/chainbot/internal/slack"
	"github.com/kelsos/chainbot/internal/store"
	"github.com/kelsos/chainbot/internal/tui"
)

type flags struct {
	configFile  string
	clientPath  string
	storeType   string
	storeConn   string
	timeout     time.Duration
	metricsAddr string
	maxInFlight int
}

// loadConfig applies defaults, the optional YAML file, the environment and
// finally the flags set on the command line
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.NewConfig()

	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.LoadFromEnvironment()

	changed := cmd.Flags().Changed
	if changed("client-path") {
		cfg.ClientPath = f.clientPath
	}
	if changed("store-type") {
		cfg.StoreType = f.storeType
	}
	if changed("store-conn") {
		cfg.StoreConn = f.storeConn
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
	if changed("max-in-flight") {
		cfg.MaxInFlight = f.maxInFlight
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openApp loads the configuration and opens the store behind it
func openApp(ctx context.Context, cmd *cobra.Command, f *flags) (*app, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}

func runSlackBot(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.close()

	r, err := a.router()
	if err != nil {
		return err
	}

	transport := slack.New(cfg.SlackToken)
	b := bot.New(transport, r, cfg.MaxInFlight).WithObserver(a.metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		srv := server.New(cfg.MetricsAddr, a.registry,
			server.Check{Name: "store", Pinger: a.store},
			server.Check{Name: "endpoint", Pinger: chain.NewEndpointProbe(cfg.Endpoint)},
		)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	return g.Wait()
}

func main() {
	config.LoadDotEnv()
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// commands return their errors so deferred cleanup runs before the exit
	err := newRootCmd(ctx).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("%v", err)
		logger.Close()
		os.Exit(1)
	}
}

func newRootCmd(ctx context.Context) *cobra.Command {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "chainbot",
		Short: "A Slack bot that hands out tokens",
		Long: `chainbot listens on Slack, creates a chain account for everyone it meets and
answers balance and transfer commands through the chain client binary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			if err := cfg.ValidateSlack(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := runSlackBot(ctx, cfg); err != nil {
				return fmt.Errorf("bot stopped: %w", err)
			}
			logger.Info("Bot stopped")
			return nil
		},
	}

	// Add a console command
	var consoleUser string
	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Talk to the bot from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath, err := logger.InitFileOnly("logs")
			if err != nil {
				return fmt.Errorf("failed to initialize file logger: %w", err)
			}
			defer logger.Close()

			a, err := openApp(ctx, cmd, &f)
			if err != nil {
				return err
			}
			defer a.close()

			r, err := a.router()
			if err != nil {
				return fmt.Errorf("failed to build router: %w", err)
			}

			console := tui.NewConsole(consoleUser, logPath, tea.WithAltScreen())
			if err := bot.New(console, r, a.cfg.MaxInFlight).WithObserver(console).Run(ctx); err != nil {
				logger.Error("Console stopped: %v", err)
			}
			return nil
		},
	}
	consoleCmd.Flags().StringVarP(&consoleUser, "user", "u", defaultConsoleUser(), "Username to chat as")

	// Add a backup command
	var backupDir string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of all stored accounts",
		Long:  `Create a zip archive holding every stored account, private keys included.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(ctx, cmd, &f)
			if err != nil {
				return err
			}
			defer a.close()

			lister, ok := a.store.(store.Lister)
			if !ok {
				return fmt.Errorf("the %s store cannot list accounts", a.cfg.StoreType)
			}

			backupFile, err := backup.CreateBackup(ctx, lister, backupDir)
			if err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}
			logger.Info("Backup created successfully: %s", backupFile)
			return nil
		},
	}
	backupCmd.Flags().StringVarP(&backupDir, "backup-dir", "", "", "Directory where the backup will be stored (default: $XDG_DATA_HOME/chainbot/backups)")

	restoreCmd := &cobra.Command{
		Use:   "restore <backup.zip>",
		Short: "Restore accounts missing from the store out of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(ctx, cmd, &f)
			if err != nil {
				return err
			}
			defer a.close()

			restored, err := backup.Restore(ctx, a.store, args[0])
			if err != nil {
				return fmt.Errorf("failed to restore backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d accounts\n", restored)
			return nil
		},
	}

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair with the chain client",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(ctx, cmd, &f)
			if err != nil {
				return err
			}
			defer a.close()

			pair, err := a.keys.Generate(ctx)
			if err != nil {
				return fmt.Errorf("failed to generate keys: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address:    %s\npublic key: %s\n", pair.Address, pair.PublicKey)
			return nil
		},
	}

	accountCmd := &cobra.Command{
		Use:   "account <username>",
		Short: "Show the account and balance of a user, creating the account if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(ctx, cmd, &f)
			if err != nil {
				return err
			}
			defer a.close()

			acc, err := a.provisioner.Resolve(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve account: %w", err)
			}

			balance, err := a.chain.Balance(ctx, acc)
			if err != nil {
				return fmt.Errorf("failed to fetch balance: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "username:   %s\naddress:    %s\npublic key: %s\nbalance:    %d\n",
				acc.Username, acc.Address, acc.PublicKey, balance)
			return nil
		},
	}

	// Add flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "Path to a YAML configuration file")
	pf.StringVarP(&f.clientPath, "client-path", "b", "", "Path to the chain client binary (default: bin/orbs-json-client)")
	pf.StringVarP(&f.storeType, "store-type", "s", "", "Account store: redis, badger or mongodb")
	pf.StringVarP(&f.storeConn, "store-conn", "", "", "Store connection string or badger directory")
	pf.DurationVarP(&f.timeout, "timeout", "t", 0, "Timeout of every chain client call (default: 2s)")
	pf.StringVarP(&f.metricsAddr, "metrics-addr", "m", "", "Address serving /metrics and /healthz, disabled when empty")
	pf.IntVarP(&f.maxInFlight, "max-in-flight", "", 0, "Messages handled concurrently (default: 8)")

	// Add subcommands
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(accountCmd)

	return rootCmd
}

func defaultConsoleUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "console"
}
