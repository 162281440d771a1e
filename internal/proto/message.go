package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypePing  = "ping"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReady        = "ready"
	EventPong         = "pong"
	EventNotification = "notification"
	EventMessageRead  = "message_read"
)

// HelloData authenticates the connection. It must be the first frame.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ReadyData confirms a successful hello.
type ReadyData struct {
	UserID   int64 `json:"user_id"`
	Protocol int   `json:"protocol"`
}

// NotificationData carries a freshly created notification.
type NotificationData struct {
	ID        int64  `json:"id"`
	MessageID *int64 `json:"message_id,omitempty"`
	Detail    string `json:"detail"`
	TS        int64  `json:"ts"`
}

// MessageReadData tells a sender that the receiver read their message.
type MessageReadData struct {
	MessageID  int64 `json:"message_id"`
	ReceiverID int64 `json:"receiver_id"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Protocol error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeUnknownType        = "invalid_message"
)
