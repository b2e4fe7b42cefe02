// Package notify delivers fired alerts to their owners.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"pricewatch/internal/price"
	"pricewatch/internal/types"

	"github.com/codeGROOVE-dev/retry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrNoChat is returned when an owner has no Telegram chat and no default is set
var ErrNoChat = errors.New("no telegram chat for owner")

// Sender sends one Telegram message. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alerts as Telegram messages
type TelegramNotifier struct {
	sender        Sender
	logger        types.Logger
	defaultChatID int64
	chats         map[string]int64
	attempts      uint
	delay         time.Duration
}

// NewTelegramBot authorizes token against the Bot API
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	bot.Debug = false
	return bot, nil
}

// NewTelegramNotifier creates a notifier. chats maps owner IDs to chat IDs;
// owners without an entry go to defaultChatID when it is non-zero.
func NewTelegramNotifier(sender Sender, defaultChatID int64, chats map[string]int64, logger types.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:        sender,
		logger:        logger,
		defaultChatID: defaultChatID,
		chats:         chats,
		attempts:      3,
		delay:         time.Second,
	}
}

// Notify formats the alert and sends it, retrying transient failures
func (n *TelegramNotifier) Notify(ctx context.Context, ownerID, itemID string, alertType types.AlertType, payload types.AlertPayload) error {
	chatID, ok := n.chats[ownerID]
	if !ok {
		chatID = n.defaultChatID
	}
	if chatID == 0 {
		return fmt.Errorf("%w %s", ErrNoChat, ownerID)
	}

	msg := tgbotapi.NewMessage(chatID, FormatMessage(alertType, payload))
	msg.ParseMode = tgbotapi.ModeHTML

	err := retry.Do(
		func() error {
			_, err := n.sender.Send(msg)
			return err
		},
		retry.Attempts(n.attempts),
		retry.Delay(n.delay),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.MaxJitter(n.delay),
		retry.OnRetry(func(attempt uint, err error) {
			n.logger.Warnf("Telegram send for item %s failed (attempt %d): %v", itemID, attempt+1, err)
		}),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return fmt.Errorf("failed to send %s alert for item %s: %w", alertType, itemID, err)
	}

	n.logger.Debugf("Sent %s alert for item %s to chat %d", alertType, itemID, chatID)
	return nil
}

// retryable rejects client errors other than rate limiting
func retryable(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

// FormatMessage renders an alert as Telegram HTML
func FormatMessage(alertType types.AlertType, p types.AlertPayload) string {
	var b strings.Builder

	switch alertType {
	case types.AlertDeal:
		b.WriteString("<b>Price alert</b>\n")
	case types.AlertRestock:
		b.WriteString("<b>Back in stock</b>\n")
	default:
		fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(string(alertType)))
	}

	b.WriteString(html.EscapeString(p.Title))
	if p.Variant != "" {
		fmt.Fprintf(&b, " (%s)", html.EscapeString(p.Variant))
	}
	b.WriteString("\n")

	if p.Price > 0 {
		fmt.Fprintf(&b, "Price: %s", price.Format(p.Price))
		if p.PreviousPrice != nil && *p.PreviousPrice != p.Price {
			fmt.Fprintf(&b, " (was %s)", price.Format(*p.PreviousPrice))
		}
		if p.TargetPrice != nil {
			fmt.Fprintf(&b, ", target %s", price.Format(*p.TargetPrice))
		}
		b.WriteString("\n")
	}

	if alertType == types.AlertRestock {
		if p.InStock {
			b.WriteString("Available now\n")
		} else {
			b.WriteString("Sold out\n")
		}
	}

	b.WriteString(html.EscapeString(p.URL))
	return b.String()
}

// LogNotifier only logs alerts. It is used when no delivery channel is configured.
type LogNotifier struct {
	logger types.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger types.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, ownerID, itemID string, alertType types.AlertType, payload types.AlertPayload) error {
	n.logger.Infof("[%s alert] owner=%s item=%s title=%q price=%s in_stock=%v channels=%s url=%s",
		alertType, ownerID, itemID, payload.Title, price.Format(payload.Price), payload.InStock,
		strings.Join(payload.Channels, ","), payload.URL)
	return nil
}

// Notifier is the delivery contract shared by all notifiers
type Notifier interface {
	Notify(ctx context.Context, ownerID, itemID string, alertType types.AlertType, payload types.AlertPayload) error
}

// Multi delivers to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ownerID, itemID string, alertType types.AlertType, payload types.AlertPayload) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ownerID, itemID, alertType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
