package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/sentinel/internal/bot"
	"github.com/nao1215/sentinel/internal/config"
	"github.com/nao1215/sentinel/internal/database"
	logging "github.com/nao1215/sentinel/internal/log"
	"github.com/nao1215/sentinel/internal/metrics"
	"github.com/nao1215/sentinel/internal/netutil"
	"github.com/nao1215/sentinel/internal/scanner"
)

const (
	// pollTimeout is the Telegram long polling timeout in seconds.
	pollTimeout = 60

	// pruneInterval is how often stale cached sources are deleted.
	pruneInterval = time.Hour

	// shutdownTimeout bounds the metrics server shutdown.
	shutdownTimeout = 5 * time.Second
)

// NewBotCmd creates the bot command.
func NewBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Bot serves the scanner over Telegram using long polling.

Commands: /start, /help, /about, /scan <address> [chain],
/score <address> [chain] and /last.

The token is read from --token, TELEGRAM_BOT_TOKEN (also from .env) or the
bot section of the configuration file.

Examples:
  TELEGRAM_BOT_TOKEN=123456:ABC... sentinel bot
  sentinel bot --metrics-addr :9090 --workers 16`,
		Args: cobra.NoArgs,
		RunE: runBotCmd,
	}

	cmd.Flags().String("token", "", "Telegram bot token (prefer TELEGRAM_BOT_TOKEN)")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Int("workers", config.DefaultBotWorkers, "Number of updates handled concurrently")
	cmd.Flags().Bool("no-db", false, "Do not store scans or cache sources in the database")
	addNetworkFlags(cmd)

	return cmd
}

// runBotCmd executes the bot command.
func runBotCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildBotConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := logging.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runBot(ctx, cfg, logger)
}

// buildBotConfig creates the bot Config from the file, the environment and flags.
func buildBotConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		if cfg.BotToken, err = flags.GetString("token"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("metrics-addr") {
		if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.BotWorkers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cache-ttl") {
		if cfg.SourceCacheTTL, err = flags.GetDuration("cache-ttl"); err != nil {
			return nil, err
		}
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	if noDB {
		cfg.SaveToDB = false
	}

	// The bot never writes report files.
	cfg.SaveReport = false
	return cfg, nil
}

// runBot connects to Telegram and handles updates until ctx is cancelled.
func runBot(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := tgbotapi.SetLogger(botLogger{logger: logger}); err != nil {
		return err
	}

	db, err := openDB(cfg, logger)
	if err != nil {
		return err
	}

	scanOpts := []scanner.Option{scanner.WithLogger(logger)}
	var store bot.LastScanStore = bot.NewMemoryStore()
	if db != nil {
		defer db.Close()
		scanOpts = append(scanOpts, scanner.WithStore(db))
		store = db
	}

	svc, err := scanner.New(cfg, scanOpts...)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Long polling holds the request open for pollTimeout seconds.
	netClient, err := netutil.NewClient(
		netutil.WithProxy(cfg.ProxyAddress),
		netutil.WithTimeout(cfg.Timeout+pollTimeout*time.Second),
		netutil.WithUserAgent(cfg.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	if err := svc.CheckProxy(ctx); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, netClient.NewHTTPClient())
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", logging.RedactError(err))
	}
	logger.Info("authorized on Telegram", "bot", api.Self.UserName)

	if _, err := api.Request(tgbotapi.NewSetMyCommands(bot.Commands()...)); err != nil {
		logger.Warn("failed to register bot commands", "error", err)
	}

	b := bot.New(api, svc,
		bot.WithStore(store),
		bot.WithRateLimit(rate.Limit(cfg.BotRate), cfg.BotBurst),
		bot.WithWorkers(cfg.BotWorkers),
		bot.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		eg.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if db != nil && cfg.SourceCacheTTL > 0 {
		eg.Go(func() error {
			pruneSources(ctx, db, cfg.SourceCacheTTL, logger)
			return nil
		})
	}

	eg.Go(func() error {
		defer cancel()

		u := tgbotapi.NewUpdate(0)
		u.Timeout = pollTimeout
		updates := api.GetUpdatesChan(u)
		go func() {
			<-ctx.Done()
			api.StopReceivingUpdates()
		}()

		logger.Info("bot started", "workers", cfg.BotWorkers)
		err := b.Run(ctx, updates)
		logger.Info("bot stopped")
		return err
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pruneSources deletes stale cached sources every pruneInterval until ctx is done.
func pruneSources(ctx context.Context, db *database.ScanDB, maxAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := db.PruneSources(ctx, maxAge)
		if err != nil && ctx.Err() == nil {
			logger.Warn("failed to prune source cache", "error", err)
		} else if n > 0 {
			logger.Debug("pruned source cache", "deleted", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// botLogger routes the Telegram library's log output through slog, so the
// secure handler redacts the token from request URLs.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...any) {
	l.logger.Warn(fmt.Sprint(v...))
}

func (l botLogger) Printf(format string, v ...any) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}
