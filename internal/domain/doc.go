// Package domain contains the core entities of the generation system: the
// generation session and its state machine, the flashcard, and the provider
// audit record. It is independent of any transport or storage concern.
package domain
