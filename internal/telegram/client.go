// Package telegram delivers portfolio digests via the Telegram Bot API and
// answers chat commands from the latest stored dashboard result.
//
// Messages use MarkdownV2; every piece of dynamic text is escaped before it
// is embedded.
package telegram

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/polyfolio/internal/dashboard"
	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/models"
	"github.com/rewired-gh/polyfolio/internal/ranking"
)

// digestLeaders is the number of gainers and losers listed in a digest.
const digestLeaders = 5

// botAPI is the subset of *tgbotapi.BotAPI the client uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client handles Telegram notifications
type Client struct {
	bot            botAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot botAPI, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendDigest sends the summary figures and leaders of result
func (c *Client) SendDigest(result *dashboard.Result) error {
	return c.send(formatDigest(result))
}

// SendError reports a failed refresh cycle
func (c *Client) SendError(err error) error {
	message := "⚠️ *Refresh failed*\n\n" + escapeMarkdownV2(err.Error())
	return c.send(message)
}

// SendRecovery reports that refreshes succeed again after failures
func (c *Client) SendRecovery(failures int) error {
	message := fmt.Sprintf("✅ *Refresh recovered* after %d failed %s",
		failures, plural(failures, "cycle", "cycles"))
	return c.send(message)
}

// ListenForCommands answers /summary, /leaders and /help from the configured
// chat until ctx is done. latest returns the most recent dashboard result.
func (c *Client) ListenForCommands(ctx context.Context, latest func() (*dashboard.Result, bool)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat == nil || update.Message.Chat.ID != c.chatID {
				logger.Debug("Ignoring command from chat %v", update.Message.Chat)
				continue
			}

			reply := c.handleCommand(update.Message.Command(), latest)
			if err := c.send(reply); err != nil {
				logger.Warn("Failed to answer /%s: %v", update.Message.Command(), err)
			}
		}
	}
}

func (c *Client) handleCommand(command string, latest func() (*dashboard.Result, bool)) string {
	switch command {
	case "summary", "leaders":
		result, ok := latest()
		if !ok {
			return escapeMarkdownV2("No dashboard result yet. The first refresh has not completed.")
		}
		if command == "summary" {
			return formatSummary(result)
		}
		return formatLeaders(result, ranking.DefaultTopN)
	default:
		return escapeMarkdownV2("Commands: /summary shows PnL totals, /leaders shows top gainers and losers.")
	}
}

// send sends a MarkdownV2 message with retry
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatDigest formats a refresh result into a Telegram message
func formatDigest(result *dashboard.Result) string {
	var b strings.Builder

	b.WriteString("📊 *Portfolio Digest*\n")
	dateStr := escapeMarkdownV2(result.ComputedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString(fmt.Sprintf("📅 %s · window %s\n\n", dateStr, escapeMarkdownV2(formatHours(result.Hours))))

	b.WriteString(formatSummaryLines(result.Summary))

	if len(result.Holdings) == 0 {
		b.WriteString("\n" + escapeMarkdownV2("No open positions.") + "\n")
	} else {
		b.WriteString("\n")
		b.WriteString(formatLeaderBlock("🟢 *Top Gainers*", result.Gainers, result.Metric, digestLeaders))
		b.WriteString(formatLeaderBlock("🔴 *Top Losers*", result.Losers, result.Metric, digestLeaders))
	}

	if n := len(result.Warnings); n > 0 {
		b.WriteString(fmt.Sprintf("\n⚠️ %d fetch %s ignored\n", n, plural(n, "failure", "failures")))
	}
	return b.String()
}

func formatSummary(result *dashboard.Result) string {
	header := fmt.Sprintf("📊 *Summary* \\(%s, %d %s\\)\n\n",
		escapeMarkdownV2(formatHours(result.Hours)), len(result.Holdings), plural(len(result.Holdings), "position", "positions"))
	return header + formatSummaryLines(result.Summary)
}

func formatLeaders(result *dashboard.Result, n int) string {
	if len(result.Holdings) == 0 {
		return escapeMarkdownV2("No open positions.")
	}
	return formatLeaderBlock("🟢 *Top Gainers*", result.Gainers, result.Metric, n) +
		formatLeaderBlock("🔴 *Top Losers*", result.Losers, result.Metric, n)
}

func formatSummaryLines(s dashboard.Summary) string {
	cash := escapeMarkdownV2(formatMoney(s.CashBalance, false))
	if s.CashIsPlaceholder {
		cash += " _\\(placeholder\\)_"
	}
	return fmt.Sprintf("Realized PnL: *%s*\nUnrealized PnL: *%s*\nTotal PnL: *%s*\nCash: %s\n",
		escapeMarkdownV2(formatMoney(s.RealizedPnl, true)),
		escapeMarkdownV2(formatMoney(s.UnrealizedPnl, true)),
		escapeMarkdownV2(formatMoney(s.TotalPnl, true)),
		cash)
}

func formatLeaderBlock(title string, holdings []models.EnrichedHolding, metric ranking.Metric, n int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s \\(%s\\)\n", title, escapeMarkdownV2(metric.Label())))
	if len(holdings) > n {
		holdings = holdings[:n]
	}
	for i, h := range holdings {
		titleText := escapeMarkdownV2(h.Title)
		if h.MarketLink != "" {
			// URL part of a MarkdownV2 link only needs ) and \ escaped
			link := strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(h.MarketLink)
			titleText = fmt.Sprintf("[%s](%s)", titleText, link)
		}
		b.WriteString(fmt.Sprintf("%d\\. %s *%s*\n", i+1, titleText, escapeMarkdownV2(formatMetric(metric, h))))
	}
	b.WriteString("\n")
	return b.String()
}

func formatMetric(metric ranking.Metric, h models.EnrichedHolding) string {
	v := metric.Value(h)
	if metric.IsPercent() {
		return fmt.Sprintf("%+.2f%%", v)
	}
	return formatMoney(v, true)
}

// formatMoney renders v as dollars rounded to cents, e.g. -$1,234.50.
// signed adds + to positive values.
func formatMoney(v float64, signed bool) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	cents := decimal.NewFromFloat(v).Round(2).Shift(2).IntPart()
	m := money.New(cents, money.USD)
	if signed && m.IsPositive() {
		return "+" + m.Display()
	}
	return m.Display()
}

func formatHours(h int) string {
	if h%24 == 0 && h >= 24 {
		return fmt.Sprintf("%dd", h/24)
	}
	return fmt.Sprintf("%dh", h)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! \
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
