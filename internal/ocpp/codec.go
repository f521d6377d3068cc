package ocpp

import (
	"encoding/json"
	"fmt"
)

// Marshal encodes a frame as the OCPP JSON array:
// [2, id, action, payload], [3, id, payload] or
// [4, id, code, description, details].
func Marshal(f *Frame) ([]byte, error) {
	var arr []interface{}
	switch f.Type {
	case Call:
		payload := f.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		arr = []interface{}{int(Call), f.ID, f.Action, payload}
	case CallResult:
		payload := f.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		arr = []interface{}{int(CallResult), f.ID, payload}
	case CallError:
		details := f.ErrorDetails
		if details == nil {
			details = json.RawMessage("{}")
		}
		arr = []interface{}{int(CallError), f.ID, string(f.ErrorCode), f.ErrorDescription, details}
	default:
		return nil, fmt.Errorf("unknown message type %d", f.Type)
	}
	return json.Marshal(arr)
}

// Unmarshal decodes an OCPP JSON array into a frame. The payload is kept
// raw; callers unmarshal it against the action's typed struct.
func Unmarshal(data []byte) (*Frame, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewError(ErrorFormationViolation, "message is not a JSON array")
	}
	if len(raw) < 3 {
		return nil, NewError(ErrorFormationViolation, "message array too short")
	}

	var msgType int
	if err := json.Unmarshal(raw[0], &msgType); err != nil {
		return nil, NewError(ErrorFormationViolation, "message type is not an integer")
	}
	f := &Frame{Type: MessageType(msgType)}

	if err := json.Unmarshal(raw[1], &f.ID); err != nil || f.ID == "" {
		return nil, NewError(ErrorFormationViolation, "message id is not a non-empty string")
	}

	switch f.Type {
	case Call:
		if len(raw) < 4 {
			return nil, NewError(ErrorFormationViolation, "CALL requires action and payload")
		}
		if err := json.Unmarshal(raw[2], &f.Action); err != nil || f.Action == "" {
			return nil, NewError(ErrorFormationViolation, "action is not a non-empty string")
		}
		f.Payload = raw[3]
	case CallResult:
		f.Payload = raw[2]
	case CallError:
		var code string
		if err := json.Unmarshal(raw[2], &code); err != nil {
			return nil, NewError(ErrorFormationViolation, "error code is not a string")
		}
		f.ErrorCode = ErrorCode(code)
		if len(raw) > 3 {
			json.Unmarshal(raw[3], &f.ErrorDescription)
		}
		if len(raw) > 4 {
			f.ErrorDetails = raw[4]
		}
	default:
		return nil, NewError(ErrorMessageTypeNotSupported, fmt.Sprintf("message type %d", msgType))
	}
	return f, nil
}

// MarshalCall builds a CALL frame around a typed payload.
func MarshalCall(id, action string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", action, err)
	}
	return Marshal(&Frame{Type: Call, ID: id, Action: action, Payload: raw})
}

// MarshalResult builds a CALL_RESULT frame around a typed payload.
func MarshalResult(id string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal result payload: %w", err)
	}
	return Marshal(&Frame{Type: CallResult, ID: id, Payload: raw})
}

// MarshalError builds a CALL_ERROR frame from an OCPP error.
func MarshalError(id string, oe *Error) ([]byte, error) {
	return Marshal(&Frame{
		Type:             CallError,
		ID:               id,
		ErrorCode:        oe.Code,
		ErrorDescription: oe.Description,
		ErrorDetails:     oe.Details,
	})
}
