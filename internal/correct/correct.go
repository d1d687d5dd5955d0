package correct

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Result is a checker's verdict on one answer. Corrected always holds a
// usable text, even when it equals the input.
type Result struct {
	HasChanges bool
	Corrected  string
}

// Checker proposes a cleaned-up version of an answer. Implementations
// must be safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, text string) (Result, error)
}

// CheckOrKeep runs the checker and falls back to the unchanged text when
// the checker is missing or fails. Suggestions are assistive only, so a
// broken checker must never block an answer.
func CheckOrKeep(ctx context.Context, c Checker, text string) Result {
	if c == nil {
		return Result{Corrected: text}
	}
	res, err := c.Check(ctx, text)
	if err != nil {
		log.Debug().Err(err).Msg("typo check failed")
		return Result{Corrected: text}
	}
	return res
}
