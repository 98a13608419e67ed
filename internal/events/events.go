// Package events defines the wire-level message types exchanged over the
// realtime channel between the server and a connected client. Outbound
// frames carry generation lifecycle events; inbound frames carry client
// requests and delivery acknowledgements.
package events

import (
	"github.com/cardforge/cardforge-api/internal/domain"
)

// Outbound event names.
const (
	EventGenerationProgress = "generationProgress"
	EventCardGenerated      = "cardGenerated"
	EventGenerationComplete = "generationComplete"
	EventGenerationError    = "generationError"
	EventRequestAck         = "requestAck"
)

// Inbound message types.
const (
	MessageStartGeneration = "startGeneration"
	MessageAck             = "ack"
)

// OutboundFrame is the envelope for every server-to-client message. EventID
// is assigned per connection in send order; clients echo it back in an ack
// frame to confirm delivery.
type OutboundFrame struct {
	Type    string `json:"type"`
	EventID uint64 `json:"eventId,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// InboundFrame is the envelope for every client-to-server message. Only the
// fields relevant to the given Type are populated.
type InboundFrame struct {
	Type         string                  `json:"type"`
	EventID      uint64                  `json:"eventId,omitempty"`
	GenerationID string                  `json:"generationId,omitempty"`
	Start        *StartGenerationPayload `json:"payload,omitempty"`
}

// StartGenerationPayload carries the deck parameters for a new generation
// request.
type StartGenerationPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// RequestAckPayload is the immediate accept/reject response to an inbound
// startGeneration request. Error is empty when the request was admitted.
type RequestAckPayload struct {
	GenerationID string `json:"generationId"`
	Accepted     bool   `json:"accepted"`
	Error        string `json:"error,omitempty"`
}

// ProgressPayload reports generation progress as a percentage alongside a
// human-readable stage message.
type ProgressPayload struct {
	GenerationID string `json:"generationId"`
	Message      string `json:"message"`
	Progress     int    `json:"progress"`
	TotalCards   int    `json:"totalCards"`
	CurrentCard  int    `json:"currentCard,omitempty"`
}

// CardPayload delivers a single generated card together with the position
// it occupies in the stream.
type CardPayload struct {
	GenerationID string       `json:"generationId"`
	Card         *domain.Card `json:"card"`
	Progress     int          `json:"progress"`
	TotalCards   int          `json:"totalCards"`
	CurrentCard  int          `json:"currentCard"`
}

// CompletePayload marks the successful end of a generation.
type CompletePayload struct {
	GenerationID string `json:"generationId"`
	TotalCards   int    `json:"totalCards"`
	Stage        string `json:"stage"`
}

// ErrorPayload marks the unsuccessful end of a generation.
type ErrorPayload struct {
	GenerationID string `json:"generationId"`
	Error        string `json:"error"`
}
