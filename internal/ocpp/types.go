package ocpp

import "encoding/json"

// MessageType is the first element of every OCPP frame.
type MessageType int

const (
	Call       MessageType = 2
	CallResult MessageType = 3
	CallError  MessageType = 4
)

// Version identifies the OCPP protocol version a station speaks.
type Version string

const (
	V16  Version = "1.6"
	V201 Version = "2.0.1"
)

// Subprotocol returns the WebSocket subprotocol name for the version.
func (v Version) Subprotocol() string {
	switch v {
	case V16:
		return "ocpp1.6"
	case V201:
		return "ocpp2.0.1"
	default:
		return ""
	}
}

// Direction distinguishes request and response payloads for schema lookup.
type Direction string

const (
	Request  Direction = "request"
	Response Direction = "response"
)

// Frame is a decoded OCPP message of any of the three types.
// Payload is left raw so handlers can unmarshal into typed structs.
type Frame struct {
	Type             MessageType
	ID               string
	Action           string // CALL only
	Payload          json.RawMessage
	ErrorCode        ErrorCode       // CALL_ERROR only
	ErrorDescription string          // CALL_ERROR only
	ErrorDetails     json.RawMessage // CALL_ERROR only
}

// IsCall reports whether the frame is a request that expects a response.
func (f *Frame) IsCall() bool { return f.Type == Call }
