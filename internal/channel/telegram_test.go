package channel

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"alexbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeBot scripts one error per Send call; nil means success.
type fakeBot struct {
	errs     []error
	calls    int
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if mc, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, mc)
	}
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	if err != nil {
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{MessageID: 1}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func newTestTelegram(bot *fakeBot, policy domain.RetryPolicy, delays *[]time.Duration) *Telegram {
	tg := NewTelegram(TelegramConfig{
		Token:  "test-token",
		Policy: policy,
		Logger: slog.Default(),
	})
	tg.api = bot
	tg.handle = "Alex"
	tg.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return tg
}

func retryAfterErr(seconds int) error {
	return &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: seconds},
	}
}

func defaultPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second}
}

func TestSendReply_Success(t *testing.T) {
	bot := &fakeBot{}
	var delays []time.Duration
	tg := newTestTelegram(bot, defaultPolicy(), &delays)

	if err := tg.SendReply(context.Background(), 42, "hi there", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("expected exactly one outbound message, got %d", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.Text != "hi there" || msg.ReplyToMessageID != 7 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(delays) != 0 {
		t.Fatalf("success must not sleep, got %v", delays)
	}
}

func TestSendReply_NoThreadingWhenReplyToZero(t *testing.T) {
	bot := &fakeBot{}
	var delays []time.Duration
	tg := newTestTelegram(bot, defaultPolicy(), &delays)

	if err := tg.SendReply(context.Background(), 42, "hello", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bot.sent[0].ReplyToMessageID != 0 {
		t.Fatalf("expected no reply threading, got %d", bot.sent[0].ReplyToMessageID)
	}
}

func TestSendReply_HonorsExplicitRetryAfter(t *testing.T) {
	// Transport-requested waits are honored exactly and do not count
	// against the attempt budget, even with a single allowed attempt.
	bot := &fakeBot{errs: []error{retryAfterErr(7), retryAfterErr(3), nil}}
	var delays []time.Duration
	tg := newTestTelegram(bot, domain.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second, MaxDelay: time.Minute}, &delays)

	if err := tg.SendReply(context.Background(), 1, "x", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{7 * time.Second, 3 * time.Second}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Fatalf("expected waits %v, got %v", want, delays)
	}
	if bot.calls != 3 {
		t.Fatalf("expected 3 send calls, got %d", bot.calls)
	}
}

func TestSendReply_TransientRetriedWithBackoff(t *testing.T) {
	bot := &fakeBot{errs: []error{errors.New("dial tcp: i/o timeout"), nil}}
	var delays []time.Duration
	tg := newTestTelegram(bot, defaultPolicy(), &delays)

	if err := tg.SendReply(context.Background(), 1, "x", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delays) != 1 || delays[0] != time.Second {
		t.Fatalf("expected one 1s backoff, got %v", delays)
	}
}

func TestSendReply_TransientExhaustionSurfaces(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")
	bot := &fakeBot{errs: []error{netErr, netErr, netErr}}
	var delays []time.Duration
	tg := newTestTelegram(bot, defaultPolicy(), &delays)

	err := tg.SendReply(context.Background(), 1, "x", 0)
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if !errors.Is(err, netErr) {
		t.Fatalf("expected the last transport error wrapped, got %v", err)
	}
	if bot.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", bot.calls)
	}
	// Exponential schedule between attempts, none after the last.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) || delays[0] != want[0] || delays[1] != want[1] {
		t.Fatalf("expected backoffs %v, got %v", want, delays)
	}
}

func TestSendReply_FatalNotRetried(t *testing.T) {
	fatal := &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was kicked"}
	bot := &fakeBot{errs: []error{fatal}}
	var delays []time.Duration
	tg := newTestTelegram(bot, defaultPolicy(), &delays)

	err := tg.SendReply(context.Background(), 1, "x", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if bot.calls != 1 || len(delays) != 0 {
		t.Fatalf("fatal error must not retry: calls=%d sleeps=%v", bot.calls, delays)
	}
}

func TestClassifySendError_Buckets(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want sendClass
		wait time.Duration
	}{
		{"retry_after", retryAfterErr(5), sendWait, 5 * time.Second},
		{"429_without_wait", &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, sendTransient, 0},
		{"server_error", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, sendTransient, 0},
		{"bad_request", &tgbotapi.Error{Code: 400, Message: "Bad Request: message text is empty"}, sendFatal, 0},
		{"forbidden", &tgbotapi.Error{Code: 403, Message: "Forbidden"}, sendFatal, 0},
		{"network", errors.New("dial tcp: i/o timeout"), sendTransient, 0},
	}
	for _, tc := range cases {
		class, wait := classifySendError(tc.err)
		if class != tc.want || wait != tc.wait {
			t.Fatalf("%s: expected (%v, %v), got (%v, %v)", tc.name, tc.want, tc.wait, class, wait)
		}
	}
}

func TestSendTyping_BestEffort(t *testing.T) {
	bot := &fakeBot{}
	var delays []time.Duration
	tg := newTestTelegram(bot, defaultPolicy(), &delays)

	tg.SendTyping(42)
	if bot.requests != 1 {
		t.Fatalf("expected one chat action request, got %d", bot.requests)
	}
}
