// Package protocol defines the client-facing message envelope, message
// types, error codes, and WebSocket close codes.
package protocol

import "encoding/json"

// Server→client message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeSubscribed            = "subscribed"
	TypeScoreUpdated          = "score_updated"
	TypeMatchStarted          = "match_started"
	TypeMatchCompleted        = "match_completed"
	TypeDisputeCreated        = "dispute_created"
	TypeMatchStateChanged     = "match_state_changed"
	TypeBracketUpdated        = "bracket_updated"
	TypeError                 = "error"
)

// Client→server message types. Ping, pong, and match_state_changed are
// shared with the server→client set.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Error codes carried in error messages.
const (
	CodeInvalidSchema     = "invalid_schema"
	CodeUnsupportedType   = "unsupported_message_type"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodePayloadTooLarge   = "payload_too_large"
)

// WebSocket close codes, one per rejection reason so clients can tell
// "retry later" from "do not retry".
const (
	CloseUnauthenticated  = 4001
	CloseHeartbeatTimeout = 4002
	CloseNotFound         = 4004
	CloseConnectionLimit  = 4008
	ClosePayloadTooLarge  = 4009
	CloseRateLimit        = 4029
)

// Envelope is the server→client message frame. Sequence is present
// only on coalesced deliveries from the broadcast coordinator.
type Envelope struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data,omitempty"`
	Sequence int64           `json:"sequence,omitempty"`
}

// Inbound is the client→server message frame. Type is required.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode marshals an envelope. data may be nil, a json.RawMessage, or
// any marshalable value. seq of zero omits the sequence field.
func Encode(msgType string, data any, seq int64) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: msgType, Data: raw, Sequence: seq})
}

// EncodeError builds an error message envelope.
func EncodeError(code, message string) ([]byte, error) {
	return Encode(TypeError, ErrorData{Code: code, Message: message}, 0)
}
