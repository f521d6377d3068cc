package uiserver

import (
	"encoding/json"
	"fmt"
)

// Supported control-plane subprotocol versions.
const (
	ProtocolV1 = "ui0.0.1"
	ProtocolV2 = "ui0.0.2"
)

// Procedure names accepted over both transports.
const (
	ProcStartChargingStation = "startChargingStation"
	ProcStopChargingStation  = "stopChargingStation"
	ProcOpenConnection       = "openConnection"
	ProcCloseConnection      = "closeConnection"
	ProcStartTransaction     = "startTransaction"
	ProcStopTransaction      = "stopTransaction"
	ProcStartATG             = "startAutomaticTransactionGenerator"
	ProcStopATG              = "stopAutomaticTransactionGenerator"
	ProcStatusNotification   = "statusNotification"
	ProcListStations         = "listStations"
)

// requestPayload is the union of every procedure's parameters.
type requestPayload struct {
	HashIds       []string `json:"hashIds,omitempty"`
	ConnectorId   int      `json:"connectorId,omitempty"`
	ConnectorIds  []int    `json:"connectorIds,omitempty"`
	IdTag         string   `json:"idTag,omitempty"`
	TransactionId string   `json:"transactionId,omitempty"`
}

// requestFrame is the wire shape [id, procedure, payload].
type requestFrame struct {
	ID        string
	Procedure string
	Payload   json.RawMessage
}

func parseRequestFrame(data []byte) (*requestFrame, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("uiserver: frame is not a JSON array: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("uiserver: frame needs [id, procedure, payload]")
	}
	f := &requestFrame{Payload: json.RawMessage("{}")}
	if err := json.Unmarshal(raw[0], &f.ID); err != nil {
		return nil, fmt.Errorf("uiserver: frame id must be a string: %w", err)
	}
	if err := json.Unmarshal(raw[1], &f.Procedure); err != nil {
		return nil, fmt.Errorf("uiserver: procedure must be a string: %w", err)
	}
	if len(raw) > 2 {
		f.Payload = raw[2]
	}
	return f, nil
}

// marshalResponseFrame builds the [id, result] reply.
func marshalResponseFrame(id string, result any) ([]byte, error) {
	return json.Marshal([]any{id, result})
}

// marshalBroadcastFrame pushes a station event as [id, eventName, payload].
func marshalBroadcastFrame(id, event string, payload any) ([]byte, error) {
	return json.Marshal([]any{id, event, payload})
}
