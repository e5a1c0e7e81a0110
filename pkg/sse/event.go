// Package sse frames mission control activity streams as Server-Sent Events
// and parses them back on the client side.
//
// The server writes frames with Writer. The mc tail command reads them with
// TeeReader, which can also record the untouched byte stream to a file.
package sse

// Event is one parsed frame.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data holds every "data:" line of the frame joined with "\n".
	Data string

	// ID is the "id:" field, if any.
	ID string
}
