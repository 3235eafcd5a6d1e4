package tracker

import (
	"fmt"
	"strings"
)

const lamportsPerSOL = 1e9

// FormatAlert renders one novel-activity notification as Telegram Markdown.
func FormatAlert(a Alert) string {
	sig := a.Record.Signature
	txID := truncateRunes(sig, 12) + "..."
	category := displayCategory(a.Record.Category)

	timeStr := "Just now"
	if !a.Record.Timestamp.IsZero() {
		timeStr = a.Record.Timestamp.Format("15:04:05")
	}

	amountInfo := ""
	if a.Record.Lamports > 0 {
		sol := float64(a.Record.Lamports) / lamportsPerSOL
		amountInfo = fmt.Sprintf("💰 *Amount:* %.4f SOL\n", sol)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *New Activity*\n\n", categoryEmoji(a.Record.Category))
	fmt.Fprintf(&b, "📛 *Wallet:* %s\n", a.WalletName)
	fmt.Fprintf(&b, "📝 *TX:* `%s`\n", txID)
	fmt.Fprintf(&b, "📊 *Type:* %s\n", category)
	fmt.Fprintf(&b, "⏰ *Time:* %s\n", timeStr)
	b.WriteString(amountInfo)
	fmt.Fprintf(&b, "🔗 [View on Solscan](https://solscan.io/tx/%s)\n\n", sig)
	fmt.Fprintf(&b, "📍 `%s...`", truncateRunes(a.Address, 10))
	return b.String()
}

// FormatSummary renders the "+N more" overflow notification.
func FormatSummary(extra int) string {
	return fmt.Sprintf("📨 +%d more transactions...", extra)
}

func categoryEmoji(category string) string {
	c := strings.ToUpper(category)
	switch {
	case strings.Contains(c, "SWAP"):
		return "🔀"
	case strings.Contains(c, "NFT"):
		return "🖼️"
	case strings.Contains(c, "TRANSFER"):
		return "💸"
	default:
		return "🔍"
	}
}

// displayCategory turns "NFT_SALE" into "Nft Sale"; unknown categories
// fall back to "Transaction".
func displayCategory(category string) string {
	if strings.TrimSpace(category) == "" {
		category = "TRANSACTION"
	}
	words := strings.Fields(strings.ReplaceAll(category, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
