// Package domain holds the persisted shapes shared between the station
// runtime, the configuration store and the control plane.
package domain

import "time"

// ConfigurationKey is one OCPP 1.6 configuration entry. Order matters: keys
// are reported to the CSMS in insertion order.
type ConfigurationKey struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Readonly bool   `json:"readonly"`
	Visible  bool   `json:"visible"`
	Reboot   bool   `json:"reboot"`
}

// VariableAttributeRecord is the persisted form of one OCPP 2.0.1 attribute.
type VariableAttributeRecord struct {
	Component         string `json:"component"`
	ComponentInstance string `json:"componentInstance,omitempty"`
	EvseId            *int   `json:"evseId,omitempty"`
	Variable          string `json:"variable"`
	VariableInstance  string `json:"variableInstance,omitempty"`
	Type              string `json:"type"` // Actual, Target, MinSet, MaxSet
	Value             string `json:"value"`
	Persistent        bool   `json:"persistent"`
}

// ConnectorStatusRecord snapshots one connector for persistence and the UI.
type ConnectorStatusRecord struct {
	ConnectorId    int    `json:"connectorId"`
	EvseId         int    `json:"evseId,omitempty"`
	Availability   string `json:"availability"`
	Status         string `json:"status"`
	EnergyWh       float64 `json:"energyActiveImportRegister"`
	TransactionId  string `json:"transactionId,omitempty"`
	IdTag          string `json:"idTag,omitempty"`
	ReservationId  *int   `json:"reservationId,omitempty"`
}

// ATGStatusRecord snapshots the transaction generator counters.
type ATGStatusRecord struct {
	ConnectorId               int       `json:"connectorId"`
	Start                     bool      `json:"start"`
	StartedTransactions       uint64    `json:"startedTransactions"`
	StoppedTransactions       uint64    `json:"stoppedTransactions"`
	SkippedTransactions       uint64    `json:"skippedTransactions"`
	RejectedAuthorizeRequests uint64    `json:"rejectedAuthorizeRequests"`
	AcceptedAuthorizeRequests uint64    `json:"acceptedAuthorizeRequests"`
	StartDate                 time.Time `json:"startDate,omitempty"`
	StopDate                  time.Time `json:"stopDate,omitempty"`
}

// StationInfo is the persisted identity of a simulated station.
type StationInfo struct {
	HashId                  string   `json:"hashId"`
	Name                    string   `json:"chargingStationId"`
	Model                   string   `json:"chargePointModel"`
	Vendor                  string   `json:"chargePointVendor"`
	FirmwareVersion         string   `json:"firmwareVersion,omitempty"`
	SerialNumber            string   `json:"chargePointSerialNumber,omitempty"`
	SupervisionURLs         []string `json:"supervisionUrls"`
	OCPPVersion             string   `json:"ocppVersion"`
	MaximumPower            float64  `json:"maximumPower"`
	PowerDivider            int      `json:"powerDivider"`
	VoltageOut              float64  `json:"voltageOut"`
	NumberOfPhases          int      `json:"numberOfPhases"`
	TemplateHash            string   `json:"templateHash"`
	TemplateIndex           int      `json:"templateIndex"`
}

// StationConfiguration is the per-station persisted file: identity plus the
// resolved configuration and the last known runtime snapshot.
type StationConfiguration struct {
	StationInfo        StationInfo               `json:"stationInfo"`
	ConfigurationKeys  []ConfigurationKey        `json:"configurationKey,omitempty"`
	VariableAttributes []VariableAttributeRecord `json:"variableAttributes,omitempty"`
	ConnectorsStatus   []ConnectorStatusRecord   `json:"connectorsStatus,omitempty"`
	EvsesStatus        []ConnectorStatusRecord   `json:"evsesStatus,omitempty"`
	ATGStatus          []ATGStatusRecord         `json:"automaticTransactionGeneratorStatuses,omitempty"`
	ConfigurationHash  string                    `json:"configurationHash,omitempty"`
}
