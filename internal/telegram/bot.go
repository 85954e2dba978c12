package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 10 * time.Second

type Config struct {
	BotToken string
	Debug    bool
	// RequestTimeout bounds every Bot API HTTP call. Zero means 10s.
	RequestTimeout time.Duration
}

type botAPI interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client talks to the Bot API: it answers channel membership questions and
// delivers text notifications to users' private chats.
type Client struct {
	bot botAPI
}

func New(config Config) (*Client, error) {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	bot, err := tgbotapi.NewBotAPIWithClient(config.BotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = config.Debug

	return &Client{bot: bot}, nil
}

func newWithAPI(bot botAPI) *Client {
	return &Client{bot: bot}
}

// call runs fn until it returns or ctx is done. The Bot API client takes no
// context, so an abandoned call finishes in the background, bounded by the
// HTTP client timeout.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// IsMember reports whether userID currently belongs to channelID. channelID is
// either a numeric chat id or a public @username.
func (c *Client) IsMember(ctx context.Context, userID int64, channelID string) (bool, error) {
	chat, err := chatConfig(channelID, userID)
	if err != nil {
		return false, err
	}

	member, err := call(ctx, func() (tgbotapi.ChatMember, error) {
		return c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: chat})
	})
	if err != nil {
		return false, fmt.Errorf("get chat member %s: %w", channelID, err)
	}

	switch member.Status {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	default:
		return false, nil
	}
}

func chatConfig(channelID string, userID int64) (tgbotapi.ChatConfigWithUser, error) {
	channelID = strings.TrimSpace(channelID)
	channelID = strings.TrimPrefix(channelID, "https://t.me/")
	if channelID == "" {
		return tgbotapi.ChatConfigWithUser{}, fmt.Errorf("empty channel id")
	}

	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return tgbotapi.ChatConfigWithUser{ChatID: id, UserID: userID}, nil
	}

	if !strings.HasPrefix(channelID, "@") {
		channelID = "@" + channelID
	}

	return tgbotapi.ChatConfigWithUser{SuperGroupUsername: channelID, UserID: userID}, nil
}

// Notify sends a short text for the event to the user's private chat.
func (c *Client) Notify(ctx context.Context, event model.Event) error {
	text := eventText(event)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(event.UserID, text)
	_, err := call(ctx, func() (tgbotapi.Message, error) {
		return c.bot.Send(msg)
	})
	if err != nil {
		return fmt.Errorf("send %s to %d: %w", event.Type, event.UserID, err)
	}

	logger.Logger().Debug("telegram notification sent",
		zap.Int64("user_id", event.UserID),
		zap.String("type", string(event.Type)),
	)

	return nil
}

func eventText(event model.Event) string {
	p := event.Payload

	switch event.Type {
	case model.EventRewardGranted:
		return fmt.Sprintf("Task %q completed. You received %v.", p["task_title"], p["reward"])
	case model.EventAttemptSubmitted:
		return fmt.Sprintf("Task %q was sent for review.", p["task_title"])
	case model.EventAttemptRejected:
		if reason, ok := p["reason"].(string); ok && reason != "" {
			return fmt.Sprintf("Task %q was rejected: %s", p["task_title"], reason)
		}
		return fmt.Sprintf("Task %q was rejected.", p["task_title"])
	case model.EventRankPromoted:
		return fmt.Sprintf("Congratulations! Your rank is now %v.", p["rank"])
	case model.EventPlatinumActivated:
		return fmt.Sprintf("Platinum is active until %v.", p["expires_at"])
	case model.EventPlatinumExpired:
		return "Your platinum subscription has expired. Your rank is now gold."
	}

	return ""
}
