// Package api contains the HTTP handlers for the read-side session API and
// service health. The realtime generation surface lives in the gateway
// package; these handlers only expose session records for history and
// reconnection.
package api
