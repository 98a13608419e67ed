// Package mocks provides hand-written test doubles for the store
// interfaces. Each mock exposes a function field per method; tests override
// only the methods they exercise.
package mocks
