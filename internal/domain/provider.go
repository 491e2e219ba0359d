package domain

import "context"

// Generator produces a reply for a user prompt. Implementations own their
// retry behavior; errors returned here are final for the message.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
