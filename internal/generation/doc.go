// Package generation defines the boundary to the external content provider
// used to produce flashcards. It abstracts the provider integration so the
// orchestrator can drive batch generation without coupling to a specific
// service; the Gemini-backed implementation lives in
// internal/platform/gemini.
package generation
