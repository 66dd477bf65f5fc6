package rag

import (
	"fmt"
	"strings"

	"github.com/akolanti/FinBot/internal/domain/commonModels"
	"github.com/akolanti/FinBot/internal/rag/fallback"
)

const promptTemplate = `You are %s, %s's personal financial assistant and a financial calculator.

Rules:
1. Answer only from the context below.
2. For questions involving calculations (e.g., loan EMI, interest rate, tenure, balances), compute the correct values using standard financial formulas. Show the calculation steps if possible.
3. If the answer is not in the context or cannot be computed, respond: "%s."
4. Avoid hallucinating numbers, rates, or financial details.

Context:
%s

Question: %s

Answer:
`

// BuildPrompt renders the grounded prompt. The no-information reply it asks for
// is the phrase the fallback detector matches on.
func BuildPrompt(assistant string, organization string, chunks []commonModels.RetrievedChunk, question string) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Chunk
	}
	return fmt.Sprintf(promptTemplate, assistant, organization, fallback.NoInformationPhrase, strings.Join(texts, "\n\n"), question)
}
