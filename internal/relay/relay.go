// Package relay wires classifier, generation client, and delivery sender
// together: one goroutine per inbound message, every failure converted to a
// fixed user-facing reply before it can escape.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"alexbot/internal/classify"
	"alexbot/internal/domain"
	"alexbot/internal/metrics"
)

const defaultConcurrency = 3

// Limits are the transport size constants the relay enforces.
type Limits struct {
	MaxPromptLen int
	MaxReplyLen  int
	TruncateAt   int
	Ellipsis     string
}

// Fallbacks are the fixed user-visible strings for each failure class.
type Fallbacks struct {
	TooLong       string
	RateLimited   string
	NotConfigured string
	GenFailed     string
	Glitch        string
}

// Relay is the per-message orchestrator.
type Relay struct {
	gen         domain.Generator
	sender      domain.Sender
	bus         domain.MessageBus
	limits      Limits
	fallbacks   Fallbacks
	concurrency int
	logger      *slog.Logger
}

type Config struct {
	Generator   domain.Generator
	Sender      domain.Sender
	Bus         domain.MessageBus
	Limits      Limits
	Fallbacks   Fallbacks
	Concurrency int
	Logger      *slog.Logger
}

func New(cfg Config) *Relay {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		gen:         cfg.Generator,
		sender:      cfg.Sender,
		bus:         cfg.Bus,
		limits:      cfg.Limits,
		fallbacks:   cfg.Fallbacks,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Run consumes inbound messages until ctx is done or the bus closes,
// handling each in its own goroutine with bounded concurrency. A slow
// retry sequence for one message never blocks the others.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("relay started", "concurrency", r.concurrency)

	sem := make(chan struct{}, r.concurrency)
	inbound := r.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				r.logger.Info("inbound channel closed, relay stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				r.Handle(ctx, m)
			}(msg)
		}
	}
}

// Handle runs one message through classify → generate → truncate → deliver.
// Each classified message produces exactly one outbound reply; a panic
// anywhere in the respond path is caught here and converted into one last
// generic fallback attempt.
func (r *Relay) Handle(ctx context.Context, msg domain.InboundMessage) {
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling message",
				"chat_id", msg.ChatID, "message_id", msg.MessageID, "panic", rec)
			metrics.FallbackReplies.Inc()
			r.deliver(ctx, msg, r.fallbacks.Glitch)
		}
	}()

	res := classify.Classify(msg, r.limits.MaxPromptLen)
	switch res.Decision {
	case classify.Ignore:
		metrics.MessagesIgnored.Inc()
		return
	case classify.RespondTooLong:
		metrics.FallbackReplies.Inc()
		r.deliver(ctx, msg, r.fallbacks.TooLong)
		return
	}

	r.sender.SendTyping(msg.ChatID)

	start := time.Now()
	text, err := r.gen.Generate(ctx, res.Prompt)
	if err != nil {
		r.logger.Error("generation failed",
			"chat_id", msg.ChatID,
			"duration_ms", time.Since(start).Milliseconds(),
			"err", err)
		metrics.FallbackReplies.Inc()
		text = r.fallbackFor(err)
	}

	r.deliver(ctx, msg, r.truncate(text))
}

// fallbackFor maps a terminal generation error to its fixed reply. The
// error itself never reaches the user.
func (r *Relay) fallbackFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return r.fallbacks.NotConfigured
	case domain.IsRateLimited(err):
		return r.fallbacks.RateLimited
	default:
		return r.fallbacks.GenFailed
	}
}

// deliver sends the reply. A delivery failure is terminal: there is nowhere
// left to send a further fallback, so it is logged and counted only.
func (r *Relay) deliver(ctx context.Context, msg domain.InboundMessage, text string) {
	if err := r.sender.SendReply(ctx, msg.ChatID, text, msg.MessageID); err != nil {
		r.logger.Error("delivery failed",
			"chat_id", msg.ChatID, "message_id", msg.MessageID, "err", err)
		metrics.DeliveryFailures.Inc()
		return
	}
	metrics.RepliesSent.Inc()
}

// truncate cuts replies that exceed the transport ceiling at the configured
// point and appends the ellipsis marker. Rune-based so multi-byte text is
// never split mid-character.
func (r *Relay) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= r.limits.MaxReplyLen {
		return text
	}
	return string(runes[:r.limits.TruncateAt]) + r.limits.Ellipsis
}
