package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/sentinel/internal/database"
	"github.com/nao1215/sentinel/internal/metrics"
	"github.com/nao1215/sentinel/internal/model"
	"github.com/nao1215/sentinel/internal/scanner"
)

// DefaultWorkers bounds concurrently handled updates.
const DefaultWorkers = 8

// DefaultCommandTimeout bounds the work done for one command.
const DefaultCommandTimeout = 2 * time.Minute

// Command names.
const (
	CommandStart = "start"
	CommandHelp  = "help"
	CommandAbout = "about"
	CommandScan  = "scan"
	CommandScore = "score"
	CommandLast  = "last"
)

// Command results recorded in metrics.
const (
	resultSuccess     = "success"
	resultError       = "error"
	resultUsage       = "usage"
	resultRateLimited = "rate_limited"
)

// Commands lists the bot commands for the Telegram command menu.
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: CommandScan, Description: "Full static + on-chain analysis"},
		{Command: CommandScore, Description: "Quick risk score only"},
		{Command: CommandLast, Description: "Show your most recent scan"},
		{Command: CommandHelp, Description: "Display the help message"},
		{Command: CommandAbout, Description: "Learn about this project"},
	}
}

// Messenger sends messages to Telegram. *tgbotapi.BotAPI implements it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Scanner runs contract scans. *scanner.Service implements it.
type Scanner interface {
	Scan(ctx context.Context, address model.Address, chain model.Chain) (*scanner.Result, error)
	Score(ctx context.Context, address model.Address, chain model.Chain) (*scanner.Result, error)
}

// Bot dispatches Telegram commands to the scanner.
type Bot struct {
	api     Messenger
	scanner Scanner
	store   LastScanStore
	limiter *UserLimiter
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithStore sets where /scan results are remembered for /last.
func WithStore(store LastScanStore) Option {
	return func(b *Bot) {
		if store != nil {
			b.store = store
		}
	}
}

// WithRateLimit sets the per-user command budget.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(b *Bot) {
		b.limiter = NewUserLimiter(limit, burst)
	}
}

// WithWorkers bounds concurrently handled updates.
func WithWorkers(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithCommandTimeout bounds the work done for one command.
func WithCommandTimeout(d time.Duration) Option {
	return func(b *Bot) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Bot. Without WithStore, /last is kept in memory.
func New(api Messenger, sc Scanner, opts ...Option) *Bot {
	b := &Bot{
		api:     api,
		scanner: sc,
		store:   NewMemoryStore(),
		limiter: NewUserLimiter(0, 1),
		workers: DefaultWorkers,
		timeout: DefaultCommandTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run handles updates until ctx is cancelled or updates is closed, then
// waits for in-flight commands.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	b.logger.Info("bot started", "workers", b.workers)
	defer b.logger.Info("bot stopped")

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.HandleUpdate(gctx, update)
				return nil
			})
		}
	}
}

// HandleUpdate answers one update. Non-command messages are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	command := msg.Command()
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	logger := b.logger.With("command", command, "user_id", userID)

	switch command {
	case CommandStart, CommandHelp:
		b.reply(msg, welcomeMessage, true)
		metrics.RecordBotCommand(command, resultSuccess)
		return
	case CommandAbout:
		b.reply(msg, aboutMessage, true)
		metrics.RecordBotCommand(command, resultSuccess)
		return
	case CommandScan, CommandScore, CommandLast:
	default:
		logger.Debug("ignoring unknown command")
		return
	}

	if !b.limiter.Allow(userID) {
		logger.Info("command rate limited")
		b.reply(msg, rateLimited, false)
		metrics.RecordBotCommand(command, resultRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var result string
	switch command {
	case CommandScan:
		result = b.handleScan(ctx, msg, userID, logger)
	case CommandScore:
		result = b.handleScore(ctx, msg, logger)
	case CommandLast:
		result = b.handleLast(ctx, msg, userID, logger)
	}
	metrics.RecordBotCommand(command, result)
}

// parseArgs reads "<address> [chain]". The chain defaults to ethereum.
// An empty address means the usage message should be shown.
func parseArgs(arguments string) (address string, chain model.Chain, err error) {
	fields := strings.Fields(arguments)
	if len(fields) == 0 {
		return "", "", nil
	}
	chain = model.ChainEthereum
	if len(fields) > 1 {
		chain, err = model.ParseChain(fields[1])
		if err != nil {
			return fields[0], "", err
		}
	}
	return fields[0], chain, nil
}

func (b *Bot) handleScan(ctx context.Context, msg *tgbotapi.Message, userID int64, logger *slog.Logger) string {
	raw, chain, err := parseArgs(msg.CommandArguments())
	switch {
	case raw == "":
		b.reply(msg, scanUsage, false)
		return resultUsage
	case err != nil:
		b.reply(msg, unsupportedChain, false)
		return resultUsage
	}

	b.reply(msg, scanningMessage(raw, chain), false)

	address, err := model.ParseAddress(raw)
	if err != nil {
		b.reply(msg, scanFailedMessage(err), false)
		return resultError
	}

	res, err := b.scanner.Scan(ctx, address, chain)
	if err != nil {
		logger.Warn("scan failed", "address", address.String(), "chain", chain, "error", err)
		b.reply(msg, scanFailedMessage(err), false)
		return resultError
	}

	reply := scanReply(res.Report)
	last := database.LastScan{
		Address:   address,
		Chain:     chain,
		Summary:   reply,
		Timestamp: res.Report.DateScanned,
	}
	if err := b.store.SaveLastScan(ctx, userID, last); err != nil {
		logger.Warn("failed to remember last scan", "error", err)
	}

	b.reply(msg, reply, true)
	return resultSuccess
}

func (b *Bot) handleScore(ctx context.Context, msg *tgbotapi.Message, logger *slog.Logger) string {
	raw, chain, err := parseArgs(msg.CommandArguments())
	switch {
	case raw == "":
		b.reply(msg, scoreUsage, false)
		return resultUsage
	case err != nil:
		b.reply(msg, unsupportedChain, false)
		return resultUsage
	}

	b.reply(msg, scoringMessage(raw, chain), false)

	address, err := model.ParseAddress(raw)
	if err != nil {
		b.reply(msg, scoreFailedMessage(err), false)
		return resultError
	}

	res, err := b.scanner.Score(ctx, address, chain)
	if err != nil {
		logger.Warn("score failed", "address", address.String(), "chain", chain, "error", err)
		b.reply(msg, scoreFailedMessage(err), false)
		return resultError
	}

	b.reply(msg, scoreReply(res.Report), false)
	return resultSuccess
}

func (b *Bot) handleLast(ctx context.Context, msg *tgbotapi.Message, userID int64, logger *slog.Logger) string {
	last, err := b.store.GetLastScan(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		b.reply(msg, noLastScan, false)
		return resultSuccess
	}
	if err != nil {
		logger.Warn("failed to load last scan", "error", err)
		b.reply(msg, noLastScan, false)
		return resultError
	}

	b.reply(msg, lastReply(last.Address.String(), last.Chain, last.Summary), true)
	return resultSuccess
}

// reply sends text to the chat of msg. Send failures are logged only.
func (b *Bot) reply(msg *tgbotapi.Message, text string, markdown bool) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	if markdown {
		out.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := b.api.Send(out); err != nil {
		b.logger.Warn("failed to send message", "chat_id", msg.Chat.ID, "error", err)
	}
}
