package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// ReadWait bounds idle time between client frames; clients ping to stay connected.
	ReadWait = 5 * time.Minute
	// MaxMessageSize covers a code answer of the maximum accepted length plus its execution result.
	MaxMessageSize = 512 * 1024
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, requestID, code, errMsg string, fields map[string]string) error {
	return WriteTyped(conn, ErrorResponse{
		Event:     EventError,
		RequestID: requestID,
		Code:      code,
		Error:     errMsg,
		Fields:    fields,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(ReadWait))
	return conn.ReadJSON(v)
}
