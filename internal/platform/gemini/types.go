// Package gemini implements the generation.Engine interface using Google's
// Gemini API.
package gemini

// promptData represents the data passed to the prompt template
type promptData struct {
	Title       string
	Description string
	Category    string
}

// responseSchema represents the expected structure of the Gemini response
type responseSchema struct {
	// Cards is the array of flashcards generated for the request
	Cards []cardSchema `json:"cards"`
}

// cardSchema represents a single flashcard in the API response
type cardSchema struct {
	// Front is the question or prompt side of the flashcard
	Front string `json:"front"`

	// Back is the answer side of the flashcard
	Back string `json:"back"`

	// FrontImage is an optional image reference for the front side
	FrontImage string `json:"front_image,omitempty"`

	// BackImage is an optional image reference for the back side
	BackImage string `json:"back_image,omitempty"`

	// Hint is an optional hint to help the user recall the answer
	Hint string `json:"hint,omitempty"`

	// Tags are optional categories or labels for the flashcard
	Tags []string `json:"tags,omitempty"`
}
