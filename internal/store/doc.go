// Package store defines the persistence interfaces for generation sessions
// and audit records, together with the shared error values all store
// implementations surface. Concrete implementations live under
// internal/platform.
package store
