package llm

import (
	"context"
	"errors"
)

var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Provider turns a fully rendered prompt into answer text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
