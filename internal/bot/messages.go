package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nao1215/sentinel/internal/model"
)

const welcomeMessage = "🛡️ *Smart Contract Sentinel Bot*\n" +
	"Welcome! I can analyze verified token contracts on *Ethereum*, *BNB Chain* and *Polygon*.\n\n" +
	"📘 *Commands:*\n" +
	"`/scan <address> <chain>` – Full static + on-chain analysis\n" +
	"`/score <address> <chain>` – Quick risk score only\n" +
	"`/last` – Show your most recent scan\n" +
	"`/help` – Display this help message\n" +
	"`/about` – Learn about this project\n\n" +
	"💡 Example:\n" +
	"`/scan 0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2 eth`\n" +
	"`/scan 0x55d398326f99059fF775485246999027B3197955 bsc`"

const aboutMessage = "🧠 *About Smart Contract Sentinel*\n" +
	"Detects potential *rug pulls*, *honeypots*, and risky Solidity code.\n\n" +
	"✅ Supports Ethereum, BNB Chain & Polygon\n" +
	"⚙️ Built with Go and the Telegram Bot API.\n\n" +
	"Developed by *L1GHT* — powered by @ashon\\_chain."

const (
	scanUsage        = "⚠️ Usage: /scan <contract_address> <chain>"
	scoreUsage       = "⚠️ Usage: /score <contract_address> <chain>"
	unsupportedChain = "⚠️ Unsupported chain. Use 'eth', 'bsc' or 'polygon'."
	noLastScan       = "📭 No previous scan found. Use /scan first."
	rateLimited      = "⏳ Too many requests. Please wait a moment and try again."
)

func scanningMessage(address string, chain model.Chain) string {
	return fmt.Sprintf("🔍 Scanning %s on %s...", address, chain.Title())
}

func scoringMessage(address string, chain model.Chain) string {
	return fmt.Sprintf("📊 Calculating risk score for %s on %s...", address, chain.Title())
}

func scanFailedMessage(err error) string {
	return fmt.Sprintf("❌ Scan failed: %v", err)
}

func scoreFailedMessage(err error) string {
	return fmt.Sprintf("❌ Failed to get score: %v", err)
}

// escape quotes a dynamic value for legacy Markdown.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// scanReply renders the /scan answer: the static summary followed by the
// on-chain lines.
func scanReply(rep *model.ContractReport) string {
	var sb strings.Builder
	sb.WriteString("✅ *Static Analysis:*\n")
	sb.WriteString(escape(rep.Summary()))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "🔗 *On-Chain Checks (%s):*\n", rep.Chain.Title())
	if rep.OnChain != nil {
		for _, kv := range rep.OnChain.Fields() {
			fmt.Fprintf(&sb, "• %s: %s\n", escape(kv.Key), escape(kv.Value))
		}
	}
	return sb.String()
}

func scoreReply(rep *model.ContractReport) string {
	return "✅ " + rep.Summary()
}

func lastReply(address string, chain model.Chain, summary string) string {
	return fmt.Sprintf("📝 *Last Scan Summary*\nContract: `%s`\nChain: %s\n\n%s",
		address, chain.Title(), summary)
}
