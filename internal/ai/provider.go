package ai

import "context"

// Provider turns a round's prompt into the answer the game passes off as
// a player submission. Implementations carry their model and system
// prompt from construction; callers only hand over the prompt text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
