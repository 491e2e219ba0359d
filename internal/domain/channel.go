package domain

import "context"

// Sender delivers replies back to the chat transport.
type Sender interface {
	// SendReply sends text to a chat, threaded as a reply to a prior
	// message when replyTo is non-zero. Returns an error only after the
	// transport's own retry policy is exhausted or the transport rejects
	// the message outright.
	SendReply(ctx context.Context, chatID int64, text string, replyTo int) error

	// SendTyping signals a typing indicator. Best effort; failures are
	// ignored.
	SendTyping(chatID int64)
}
