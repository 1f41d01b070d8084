package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"

	"github.com/nao1215/sentinel/internal/database"
	"github.com/nao1215/sentinel/internal/model"
	"github.com/nao1215/sentinel/internal/scanner"
)

const (
	wethHex = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdtHex = "0x55d398326f99059fF775485246999027B3197955"
)

type sentMessage struct {
	ChatID    int64
	Text      string
	ParseMode string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentMessage{ChatID: msg.ChatID, Text: msg.Text, ParseMode: msg.ParseMode})
	}
	return tgbotapi.Message{}, f.err
}

func (f *fakeMessenger) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type scanCall struct {
	Mode    scanner.Mode
	Address model.Address
	Chain   model.Chain
}

type fakeScanner struct {
	mu     sync.Mutex
	calls  []scanCall
	report *model.ContractReport
	err    error
}

func (f *fakeScanner) run(mode scanner.Mode, address model.Address, chain model.Chain) (*scanner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scanCall{Mode: mode, Address: address, Chain: chain})
	if f.err != nil {
		return nil, f.err
	}
	rep := *f.report
	rep.Address = address
	rep.Chain = chain
	return &scanner.Result{Report: &rep}, nil
}

func (f *fakeScanner) Scan(_ context.Context, address model.Address, chain model.Chain) (*scanner.Result, error) {
	return f.run(scanner.ModeFull, address, chain)
}

func (f *fakeScanner) Score(_ context.Context, address model.Address, chain model.Chain) (*scanner.Result, error) {
	return f.run(scanner.ModeScore, address, chain)
}

func analyzedReport() *model.ContractReport {
	rep := model.NewContractReport(model.Address{}, model.ChainEthereum)
	rep.DateScanned = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rep.Verified = true
	rep.Analyzed = true
	rep.RiskScore = 80
	rep.RiskLevel = model.RiskLevelLow
	rep.IssuesFound = 1
	rep.OnChain = &model.OnChainResult{
		Name:            "Wrapped Ether",
		Symbol:          "WETH",
		TransferPresent: true,
	}
	return rep
}

// command builds an update the way Telegram delivers a bot command.
func command(userID int64, text string) tgbotapi.Update {
	length := strings.IndexByte(text, ' ')
	if length < 0 {
		length = len(text)
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: userID},
		From:     &tgbotapi.User{ID: userID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func newTestBot(api *fakeMessenger, sc *fakeScanner, opts ...Option) *Bot {
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return New(api, sc, opts...)
}

func TestStaticCommands(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		text string
		want string
	}{
		{"/start", welcomeMessage},
		{"/help", welcomeMessage},
		{"/help@sentinel_bot", welcomeMessage},
		{"/about", aboutMessage},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()

			api := &fakeMessenger{}
			b := newTestBot(api, &fakeScanner{})
			b.HandleUpdate(context.Background(), command(1, tc.text))

			if len(api.sent) != 1 {
				t.Fatalf("expected 1 message, got %d", len(api.sent))
			}
			if api.sent[0].Text != tc.want {
				t.Errorf("text = %q", api.sent[0].Text)
			}
			if api.sent[0].ParseMode != tgbotapi.ModeMarkdown {
				t.Errorf("parse mode = %q", api.sent[0].ParseMode)
			}
		})
	}
}

func TestIgnoredUpdates(t *testing.T) {
	t.Parallel()

	api := &fakeMessenger{}
	b := newTestBot(api, &fakeScanner{})

	b.HandleUpdate(context.Background(), tgbotapi.Update{})
	b.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hello", Chat: &tgbotapi.Chat{ID: 1},
	}})
	b.HandleUpdate(context.Background(), command(1, "/unknown"))

	if len(api.sent) != 0 {
		t.Errorf("expected no replies, got %v", api.texts())
	}
}

func TestScanCommand(t *testing.T) {
	t.Parallel()

	api := &fakeMessenger{}
	sc := &fakeScanner{report: analyzedReport()}
	b := newTestBot(api, sc)

	b.HandleUpdate(context.Background(), command(7, "/scan "+usdtHex+" BNB"))

	want := []string{
		"🔍 Scanning " + usdtHex + " on Bsc...",
		"✅ *Static Analysis:*\n" +
			"Verified: ✅ | Issues Found: 1 | Overall Risk: 80/100 (🟢 Low Risk)\n\n" +
			"🔗 *On-Chain Checks (Bsc):*\n" +
			"• token: Wrapped Ether (WETH)\n" +
			"• owner: ⚠️ Owner() not found (may use custom access control).\n" +
			"• transfer\\_test: ✅ Transfer function exists\n" +
			"• honeypot\\_risk: 🟢 Transfer function present\n",
	}
	if diff := cmp.Diff(want, api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}

	wantCalls := []scanCall{{Mode: scanner.ModeFull, Address: model.MustParseAddress(usdtHex), Chain: model.ChainBSC}}
	if diff := cmp.Diff(wantCalls, sc.calls); diff != "" {
		t.Errorf("scanner calls mismatch (-want +got):\n%s", diff)
	}

	// /last replays the stored reply.
	b.HandleUpdate(context.Background(), command(7, "/last"))
	texts := api.texts()
	last := texts[len(texts)-1]
	wantPrefix := "📝 *Last Scan Summary*\nContract: `" + usdtHex + "`\nChain: Bsc\n\n✅ *Static Analysis:*"
	if !strings.HasPrefix(last, wantPrefix) {
		t.Errorf("last = %q", last)
	}

	// Another user has no history.
	b.HandleUpdate(context.Background(), command(8, "/last"))
	texts = api.texts()
	if texts[len(texts)-1] != noLastScan {
		t.Errorf("other user last = %q", texts[len(texts)-1])
	}
}

func TestScanCommandErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		text      string
		scanErr   error
		want      []string
		wantCalls int
	}{
		{
			name: "missing address",
			text: "/scan",
			want: []string{scanUsage},
		},
		{
			name: "unsupported chain",
			text: "/scan " + wethHex + " fantom",
			want: []string{unsupportedChain},
		},
		{
			name: "invalid address",
			text: "/scan 0x1234",
			want: []string{
				"🔍 Scanning 0x1234 on Ethereum...",
				"❌ Scan failed: " + mustParseErr("0x1234").Error(),
			},
		},
		{
			name:    "scanner error",
			text:    "/scan " + wethHex,
			scanErr: errors.New("explorer unreachable"),
			want: []string{
				"🔍 Scanning " + wethHex + " on Ethereum...",
				"❌ Scan failed: explorer unreachable",
			},
			wantCalls: 1,
		},
		{
			name: "score missing address",
			text: "/score",
			want: []string{scoreUsage},
		},
		{
			name: "score unsupported chain",
			text: "/score " + wethHex + " solana",
			want: []string{unsupportedChain},
		},
		{
			name:    "score scanner error",
			text:    "/score " + wethHex + " eth",
			scanErr: errors.New("timeout"),
			want: []string{
				"📊 Calculating risk score for " + wethHex + " on Ethereum...",
				"❌ Failed to get score: timeout",
			},
			wantCalls: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeMessenger{}
			sc := &fakeScanner{report: analyzedReport(), err: tc.scanErr}
			b := newTestBot(api, sc)

			b.HandleUpdate(context.Background(), command(1, tc.text))

			if diff := cmp.Diff(tc.want, api.texts()); diff != "" {
				t.Errorf("replies mismatch (-want +got):\n%s", diff)
			}
			if len(sc.calls) != tc.wantCalls {
				t.Errorf("scanner calls = %d, expected %d", len(sc.calls), tc.wantCalls)
			}
		})
	}
}

func mustParseErr(s string) error {
	_, err := model.ParseAddress(s)
	return err
}

func TestScoreCommand(t *testing.T) {
	t.Parallel()

	api := &fakeMessenger{}
	sc := &fakeScanner{report: analyzedReport()}
	b := newTestBot(api, sc)

	b.HandleUpdate(context.Background(), command(1, "/score "+wethHex))

	want := []string{
		"📊 Calculating risk score for " + wethHex + " on Ethereum...",
		"✅ Verified: ✅ | Issues Found: 1 | Overall Risk: 80/100 (🟢 Low Risk)",
	}
	if diff := cmp.Diff(want, api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
	if sc.calls[0].Mode != scanner.ModeScore {
		t.Errorf("mode = %s", sc.calls[0].Mode)
	}

	// /score does not replace the /last history.
	b.HandleUpdate(context.Background(), command(1, "/last"))
	texts := api.texts()
	if texts[len(texts)-1] != noLastScan {
		t.Errorf("last = %q", texts[len(texts)-1])
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	api := &fakeMessenger{}
	sc := &fakeScanner{report: analyzedReport()}
	b := newTestBot(api, sc, WithRateLimit(rate.Every(time.Hour), 1))

	b.HandleUpdate(context.Background(), command(1, "/score "+wethHex))
	b.HandleUpdate(context.Background(), command(1, "/score "+wethHex))
	b.HandleUpdate(context.Background(), command(2, "/score "+wethHex))
	// Help is never limited.
	b.HandleUpdate(context.Background(), command(1, "/help"))

	if len(sc.calls) != 2 {
		t.Errorf("scanner calls = %d, expected 2", len(sc.calls))
	}
	texts := api.texts()
	if texts[2] != rateLimited {
		t.Errorf("third reply = %q, expected rate limit message", texts[2])
	}
	if texts[len(texts)-1] != welcomeMessage {
		t.Errorf("help reply = %q", texts[len(texts)-1])
	}
}

func TestLastUsesStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	err := store.SaveLastScan(context.Background(), 5, database.LastScan{
		Address: model.MustParseAddress(wethHex),
		Chain:   model.ChainPolygon,
		Summary: "stored summary",
	})
	if err != nil {
		t.Fatalf("SaveLastScan: %v", err)
	}

	api := &fakeMessenger{}
	b := newTestBot(api, &fakeScanner{}, WithStore(store))
	b.HandleUpdate(context.Background(), command(5, "/last"))

	want := "📝 *Last Scan Summary*\nContract: `" + wethHex + "`\nChain: Polygon\n\nstored summary"
	if diff := cmp.Diff([]string{want}, api.texts()); diff != "" {
		t.Errorf("replies mismatch (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	api := &fakeMessenger{}
	sc := &fakeScanner{report: analyzedReport()}
	b := newTestBot(api, sc, WithWorkers(2))

	updates := make(chan tgbotapi.Update, 4)
	updates <- command(1, "/score "+wethHex)
	updates <- command(2, "/score "+usdtHex+" bsc")
	updates <- command(3, "/help")
	close(updates)

	if err := b.Run(context.Background(), updates); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(api.texts()); n != 5 {
		t.Errorf("replies = %d, expected 5", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	b := newTestBot(&fakeMessenger{}, &fakeScanner{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Run(ctx, make(chan tgbotapi.Update))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
