package domain

import "time"

// ChatKind distinguishes one-on-one chats from group conversations.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// InboundMessage is one chat message as received from the transport.
// Built once on receipt, never mutated afterwards.
type InboundMessage struct {
	ChatID     int64
	Kind       ChatKind
	Text       string
	SenderID   int64
	MessageID  int
	ReplyToBot bool   // this message is a direct reply to one of ours
	BotHandle  string // the bot's own username, without the @ prefix
	Timestamp  time.Time
}
