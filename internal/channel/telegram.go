// Package channel implements the Telegram transport: the long-poll update
// loop feeding the message bus, and the delivery sender with its own retry
// policy.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"alexbot/internal/domain"
	"alexbot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeoutSeconds = 30

// botAPI is the slice of tgbotapi.BotAPI the channel uses; fakes implement
// it in tests.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Telegram implements domain.Sender and runs the update polling loop.
type Telegram struct {
	token   string
	welcome string
	policy  domain.RetryPolicy
	logger  *slog.Logger

	bot    *tgbotapi.BotAPI
	api    botAPI
	handle string
	bus    domain.MessageBus
	sleep  func(ctx context.Context, d time.Duration) error
}

type TelegramConfig struct {
	Token   string
	Welcome string // reply to /start
	Policy  domain.RetryPolicy
	Logger  *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:   cfg.Token,
		welcome: cfg.Welcome,
		policy:  cfg.Policy,
		logger:  cfg.Logger,
		sleep:   sleepCtx,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is done.
// Each text message is published to the bus; replying happens elsewhere.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.api = bot
	t.handle = bot.Self.UserName
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}

	if msg.IsCommand() {
		t.handleCommand(ctx, msg)
		return
	}

	metrics.MessagesReceived.Inc()
	t.logger.Debug("telegram message received",
		"chat_id", msg.Chat.ID,
		"sender", msg.From.ID,
		"text_len", len(msg.Text),
	)

	t.bus.Publish(domain.InboundMessage{
		ChatID:     msg.Chat.ID,
		Kind:       chatKind(msg.Chat),
		Text:       msg.Text,
		SenderID:   msg.From.ID,
		MessageID:  msg.MessageID,
		ReplyToBot: t.isReplyToBot(msg),
		BotHandle:  t.handle,
		Timestamp:  time.Unix(int64(msg.Date), 0),
	})
}

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		if err := t.SendReply(ctx, msg.Chat.ID, t.welcome, 0); err != nil {
			t.logger.Error("welcome reply failed", "chat_id", msg.Chat.ID, "err", err)
		}
	default:
		// Unknown commands stay silent; Alex doesn't do menus.
	}
}

func chatKind(chat *tgbotapi.Chat) domain.ChatKind {
	if chat.IsPrivate() {
		return domain.ChatPrivate
	}
	return domain.ChatGroup
}

func (t *Telegram) isReplyToBot(msg *tgbotapi.Message) bool {
	return msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		msg.ReplyToMessage.From.UserName == t.handle
}

// SendTyping signals the "typing..." chat action. Best effort.
func (t *Telegram) SendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.api.Request(action); err != nil {
		t.logger.Debug("typing action failed", "chat_id", chatID, "err", err)
	}
}

// sendClass is the transport failure taxonomy for a single send attempt.
type sendClass int

const (
	sendTransient sendClass = iota // timeout, connectivity, 5xx
	sendWait                       // transport told us exactly how long to wait
	sendFatal                      // permission/validation error, retrying is pointless
)

// SendReply delivers text to a chat with bounded retry. The three failure
// classes behave differently:
//   - an explicit retry-after from Telegram is honored exactly and does not
//     consume an attempt (the transport knows its own limits better than
//     our exponential schedule);
//   - transient errors use the capped exponential backoff until attempts
//     run out, then the last error is returned;
//   - non-retryable errors return immediately.
func (t *Telegram) SendReply(ctx context.Context, chatID int64, text string, replyTo int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}

	var lastErr error
	attempt := 0
	for attempt < t.policy.MaxAttempts {
		_, err := t.api.Send(msg)
		if err == nil {
			return nil
		}

		class, wait := classifySendError(err)
		switch class {
		case sendWait:
			t.logger.Warn("telegram requested backoff",
				"chat_id", chatID, "retry_after", wait)
			if serr := t.sleep(ctx, wait); serr != nil {
				return serr
			}
			continue
		case sendFatal:
			return fmt.Errorf("telegram send rejected: %w", err)
		}

		lastErr = err
		attempt++
		if attempt == t.policy.MaxAttempts {
			break
		}

		backoff := t.policy.Backoff(attempt - 1)
		t.logger.Warn("telegram send error, retrying",
			"chat_id", chatID, "attempt", attempt, "backoff", backoff, "err", err)
		if serr := t.sleep(ctx, backoff); serr != nil {
			return serr
		}
	}

	return fmt.Errorf("telegram send failed after %d attempts: %w", t.policy.MaxAttempts, lastErr)
}

// classifySendError buckets a send failure and extracts the transport's
// requested wait, when present.
func classifySendError(err error) (sendClass, time.Duration) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		if tgErr.RetryAfter > 0 {
			return sendWait, time.Duration(tgErr.RetryAfter) * time.Second
		}
		switch {
		case tgErr.Code == 429:
			// Rate limited but no retry_after given; treat as transient.
			return sendTransient, 0
		case tgErr.Code >= 500:
			return sendTransient, 0
		case tgErr.Code >= 400:
			return sendFatal, 0
		}
	}

	if strings.Contains(err.Error(), "Too Many Requests") {
		return sendTransient, 0
	}
	// Anything without a Telegram error code is a network-level failure.
	return sendTransient, 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
