// Package main implements the entry point for the CardForge API server,
// which orchestrates AI flashcard generation sessions and streams results
// to clients over realtime connections.
package main

import (
	"log"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
