package gemini

import (
	"bytes"
	"errors"
	"text/template"
)

// ErrEmptyTitle is returned when a generation request has no title.
var ErrEmptyTitle = errors.New("title cannot be empty")

// defaultPromptTemplate instructs the model to return a strict JSON card
// list. The response MIME type is also pinned to JSON on the API call.
const defaultPromptTemplate = `You are a flashcard author. Create a set of high-quality flashcards for the following deck.

Deck title: {{.Title}}
{{- if .Description}}
Deck description: {{.Description}}
{{- end}}
{{- if .Category}}
Category: {{.Category}}
{{- end}}

Respond with JSON only, in this exact shape:
{"cards": [{"front": "question text", "back": "answer text", "hint": "optional hint", "tags": ["optional", "tags"]}]}

Rules:
- Every card must have a non-empty front and back.
- Write 8 to 15 cards unless the deck clearly calls for fewer.
- Keep each side concise; one fact per card.`

// parsePromptTemplate parses the built-in prompt template once at engine
// construction.
func parsePromptTemplate() (*template.Template, error) {
	return template.New("flashcards").Parse(defaultPromptTemplate)
}

// renderPrompt executes the template with the request's deck description.
func renderPrompt(tmpl *template.Template, title, description, category string) (string, error) {
	if title == "" {
		return "", ErrEmptyTitle
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, promptData{
		Title:       title,
		Description: description,
		Category:    category,
	}); err != nil {
		return "", err
	}

	return buf.String(), nil
}
