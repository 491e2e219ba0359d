package domain

// MessageBus decouples the transport's polling loop from message handling.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	Close()
}
