package fallback

import (
	"strings"
)

type State string

const (
	StateRAGAnswered State = "RAG_ANSWERED"
	StateWebFallback State = "WEB_FALLBACK"
)

// NoInformationPhrase is the literal the grounded prompt asks the model to emit
// when its context does not cover the question.
const NoInformationPhrase = "I don't have that information"

// NoResultsAnswer replaces an empty web search result.
const NoResultsAnswer = "I couldn't find relevant info online."

// UnknownAnswerMarkers is the only list the detector consults.
// Curly apostrophe variants are included since models emit both.
var UnknownAnswerMarkers = []string{
	NoInformationPhrase,
	"I'm sorry",
	"I don’t have that information",
	"I’m sorry",
}

// NeedsWebSearch reports whether the grounded answer signals missing context.
func NeedsWebSearch(answer string) bool {
	for _, marker := range UnknownAnswerMarkers {
		if strings.Contains(answer, marker) {
			return true
		}
	}
	return false
}

func Decide(answer string) State {
	if NeedsWebSearch(answer) {
		return StateWebFallback
	}
	return StateRAGAnswered
}

const (
	ItemTypeMessage    = "message"
	PartTypeOutputText = "output_text"
)

// OutputItem is one entry of a web search response.
type OutputItem struct {
	Type    string
	Content []ContentPart
}

type ContentPart struct {
	Type string
	Text string
}

// ExtractText concatenates output_text parts of message items in order,
// each followed by a newline. Everything else is ignored.
func ExtractText(items []OutputItem) string {
	var sb strings.Builder
	for _, item := range items {
		if item.Type != ItemTypeMessage {
			continue
		}
		for _, part := range item.Content {
			if part.Type != PartTypeOutputText {
				continue
			}
			sb.WriteString(part.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
