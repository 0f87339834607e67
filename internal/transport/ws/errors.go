package ws

import "errors"

var (
	// ErrConnectionClosed reports a write against an already closed connection.
	ErrConnectionClosed = errors.New("websocket connection closed")
	// ErrQueueFull reports a discarded message on a saturated outbound queue.
	ErrQueueFull = errors.New("websocket outbound queue full")
)
