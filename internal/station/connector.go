package station

import (
	"time"

	v16 "github.com/voltbench/ocpp-sim/internal/ocpp/v16"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
)

// ConnectorStatus is the version-neutral connector state; the wire mapping
// differs between 1.6 and 2.0.1.
type ConnectorStatus string

const (
	StatusAvailable   ConnectorStatus = "Available"
	StatusPreparing   ConnectorStatus = "Preparing"
	StatusCharging    ConnectorStatus = "Charging"
	StatusSuspendedEV ConnectorStatus = "SuspendedEV"
	StatusFinishing   ConnectorStatus = "Finishing"
	StatusReserved    ConnectorStatus = "Reserved"
	StatusUnavailable ConnectorStatus = "Unavailable"
	StatusFaulted     ConnectorStatus = "Faulted"
)

// To16 maps onto the 1.6 ChargePointStatus, which carries the full set.
func (s ConnectorStatus) To16() v16.ChargePointStatus {
	return v16.ChargePointStatus(s)
}

// To201 maps onto the coarser 2.0.1 ConnectorStatusEnum.
func (s ConnectorStatus) To201() v201.ConnectorStatus {
	switch s {
	case StatusAvailable:
		return v201.ConnectorAvailable
	case StatusReserved:
		return v201.ConnectorReserved
	case StatusUnavailable:
		return v201.ConnectorUnavailable
	case StatusFaulted:
		return v201.ConnectorFaulted
	default:
		return v201.ConnectorOccupied
	}
}

// Reservation pins a connector for one identifier until its expiry.
type Reservation struct {
	ID          int
	IdTag       string
	ParentIdTag string
	ExpiresAt   time.Time
}

// Connector models one physical connector. In 2.0.1 topology each connector
// belongs to an EVSE; in 1.6 the EVSE id equals the connector id.
type Connector struct {
	ID     int
	EvseID int

	Status      ConnectorStatus
	Operational bool // false while administratively Unavailable

	// pendingInoperative defers an availability change past the running
	// transaction.
	pendingInoperative bool

	Transaction *Transaction
	Reservation *Reservation

	MeterWh float64
	SoC     float64
}

func (c *Connector) available() bool {
	return c.Operational && c.Status == StatusAvailable && c.Transaction == nil
}

// reservedFor reports whether a reservation blocks the given idTag.
func (c *Connector) reservedFor(idTag, parentIdTag string) bool {
	if c.Reservation == nil || time.Now().After(c.Reservation.ExpiresAt) {
		return false
	}
	if c.Reservation.IdTag == idTag {
		return false
	}
	return parentIdTag == "" || c.Reservation.ParentIdTag != parentIdTag
}
