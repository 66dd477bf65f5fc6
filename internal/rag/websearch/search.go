package websearch

import (
	"context"
	"fmt"

	"github.com/akolanti/FinBot/internal/rag/fallback"
)

// Provider answers a question from the live web, without retrieval context.
type Provider interface {
	Search(ctx context.Context, question string) ([]fallback.OutputItem, error)
}

// Instructions is the persona used for every web search call.
func Instructions(assistant string, organization string) string {
	return fmt.Sprintf("You are %s, %s's personal financial assistant and a financial calculator. "+
		"Help user with the financial questions and calculation if required. "+
		"Answer in concise bullets points", assistant, organization)
}
