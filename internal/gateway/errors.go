package gateway

import "errors"

var (
	// ErrNoConnection indicates the target user has no registered realtime
	// connection.
	ErrNoConnection = errors.New("no active connection for user")

	// ErrDeliveryTimeout indicates the client did not acknowledge an event
	// within the configured window.
	ErrDeliveryTimeout = errors.New("event delivery not acknowledged in time")

	// ErrConnectionClosed indicates the connection closed while a delivery
	// was waiting for acknowledgement.
	ErrConnectionClosed = errors.New("connection closed during delivery")
)
