package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const notifierTimeout = 5 * time.Second

// slackMessage is the webhook payload body, matching the Slack
// incoming-webhook shape the original notifier posts.
type slackMessage struct {
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// OrderNotification describes a fill (or failure) worth notifying about.
type OrderNotification struct {
	Strategy  string
	OrderType string // BUY, SELL, ARBITRAGE
	TokenID   string
	YesToken  string
	NoToken   string
	Price     float64
	YesPrice  float64
	NoPrice   float64
	Size      float64
	OrderID   string
	Status    string // FILLED, "FAILED: <reason>"
	PnL       float64
	HasPnL    bool
	IsPaper   bool
}

// RiskAlert describes a risk-gate rejection worth notifying about.
type RiskAlert struct {
	AlertType    string // DAILY_LOSS, POSITION_LIMIT, NOTIONAL_LIMIT, EMERGENCY_STOP
	Message      string
	CurrentValue float64
	LimitValue   float64
}

// ErrorAlert describes a system error worth notifying about.
type ErrorAlert struct {
	Source    string
	ErrorType string
	Message   string
}

// Notifier posts human-formatted chat-webhook notifications, fire and
// forget. Grounded on original_source's SlackNotifier: same per-category
// mute flags and disabled-by-default-without-url stance, reimplemented
// over resty rather than a raw HTTP client to match the project's own
// HTTP-client convention.
type Notifier struct {
	http    *resty.Client
	webhook string
	enabled bool

	notifyOrders bool
	notifyRisk   bool
	notifyErrors bool

	logger *slog.Logger
}

// NotifierConfig configures a Notifier. WebhookURL empty disables it.
type NotifierConfig struct {
	WebhookURL   string
	NotifyOrders bool
	NotifyRisk   bool
	NotifyErrors bool
}

// NewNotifier builds a Notifier. When cfg.WebhookURL is empty, every
// notify call is a no-op.
func NewNotifier(cfg NotifierConfig, logger *slog.Logger) *Notifier {
	enabled := cfg.WebhookURL != ""
	logger = logger.With("component", "notifier")
	if enabled {
		logger.Info("notifications enabled", "orders", cfg.NotifyOrders, "risk", cfg.NotifyRisk, "errors", cfg.NotifyErrors)
	} else {
		logger.Info("notifications disabled (no webhook url configured)")
	}

	return &Notifier{
		http:         resty.New().SetTimeout(notifierTimeout),
		webhook:      cfg.WebhookURL,
		enabled:      enabled,
		notifyOrders: cfg.NotifyOrders,
		notifyRisk:   cfg.NotifyRisk,
		notifyErrors: cfg.NotifyErrors,
		logger:       logger,
	}
}

// IsEnabled reports whether a webhook URL is configured.
func (n *Notifier) IsEnabled() bool { return n.enabled }

// NotifyOrder posts an order fill/failure notification.
func (n *Notifier) NotifyOrder(order OrderNotification) {
	if !n.enabled || !n.notifyOrders {
		return
	}

	emoji := ":x:"
	if strings.HasPrefix(order.Status, "FILLED") {
		if order.IsPaper {
			emoji = ":memo:"
		} else {
			emoji = ":chart_with_upwards_trend:"
		}
	}
	paperTag := ""
	if order.IsPaper {
		paperTag = " [PAPER]"
	}

	var text string
	if order.OrderType == "ARBITRAGE" {
		pnlStr := ""
		if order.HasPnL {
			pnlStr = fmt.Sprintf(" | PnL: $%.2f", order.PnL)
		}
		text = fmt.Sprintf("%s *%s*%s ARB\nYES@$%.4f + NO@$%.4f x %.0f%s\nStatus: %s",
			emoji, order.Strategy, paperTag, order.YesPrice, order.NoPrice, order.Size, pnlStr, order.Status)
	} else {
		tokenShort := order.TokenID
		if len(tokenShort) > 8 {
			tokenShort = tokenShort[:8]
		}
		text = fmt.Sprintf("%s *%s*%s %s %s @ $%.4f x %.0f\nStatus: %s",
			emoji, order.Strategy, paperTag, order.OrderType, tokenShort, order.Price, order.Size, order.Status)
	}

	n.send(text)
}

// NotifyRisk posts a risk-violation alert.
func (n *Notifier) NotifyRisk(alert RiskAlert) {
	if !n.enabled || !n.notifyRisk {
		return
	}
	text := fmt.Sprintf(":warning: *RISK ALERT: %s*\n%s\nCurrent: %.2f | Limit: %.2f",
		alert.AlertType, alert.Message, alert.CurrentValue, alert.LimitValue)
	n.send(text)
}

// NotifyError posts a system error alert.
func (n *Notifier) NotifyError(alert ErrorAlert) {
	if !n.enabled || !n.notifyErrors {
		return
	}
	text := fmt.Sprintf(":x: *ERROR in %s*\nType: %s\n%s", alert.Source, alert.ErrorType, alert.Message)
	n.send(text)
}

// send posts text to the configured webhook on a detached goroutine so
// the caller never waits on network I/O.
func (n *Notifier) send(text string) {
	msg := slackMessage{Text: text, Username: "arbd", IconEmoji: ":robot_face:"}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifierTimeout)
		defer cancel()
		resp, err := n.http.R().SetContext(ctx).SetBody(msg).Post(n.webhook)
		if err != nil {
			n.logger.Warn("notification send failed", "error", err)
			return
		}
		if resp.IsError() {
			n.logger.Warn("notification non-success response", "status", resp.StatusCode())
		}
	}()
}
