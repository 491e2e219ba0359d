// Package classify decides whether the bot should answer a message and
// normalizes the text to forward. Pure string logic, no side effects.
package classify

import (
	"strings"

	"alexbot/internal/domain"
)

// Decision is the classifier's verdict for one inbound message.
type Decision int

const (
	// Ignore means the message gets no reply at all.
	Ignore Decision = iota
	// Respond means Prompt should be forwarded to generation.
	Respond
	// RespondTooLong means the text exceeds the inbound limit; reply with
	// the fixed too-long notice, skipping generation entirely.
	RespondTooLong
)

// Result pairs the decision with the normalized prompt.
type Result struct {
	Decision Decision
	Prompt   string
}

// Classify applies the response rules:
//   - private chats always get a reply, text forwarded verbatim;
//   - group chats only when the message replies to the bot or mentions its
//     handle, with the mention stripped before forwarding;
//   - empty text after trimming is ignored, over-long text short-circuits
//     to the too-long reply.
func Classify(msg domain.InboundMessage, maxPromptLen int) Result {
	text := msg.Text

	if msg.Kind != domain.ChatPrivate {
		mention := "@" + msg.BotHandle
		mentioned := msg.BotHandle != "" && strings.Contains(text, mention)
		if !msg.ReplyToBot && !mentioned {
			return Result{Decision: Ignore}
		}
		if mentioned {
			text = strings.ReplaceAll(text, mention, "")
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Decision: Ignore}
	}
	if len([]rune(text)) > maxPromptLen {
		return Result{Decision: RespondTooLong}
	}

	return Result{Decision: Respond, Prompt: text}
}
