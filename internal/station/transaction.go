package station

import (
	"time"

	"github.com/voltbench/ocpp-sim/internal/auth"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
)

// Transaction tracks one charging session on a connector. For 1.6 the ID is
// the server-assigned integer rendered as a string; for 2.0.1 it is a local
// UUID.
type Transaction struct {
	ID          string
	ConnectorID int
	EvseID      int

	Identifier auth.Identifier
	StartedAt  time.Time

	MeterStartWh float64

	ChargingState v201.ChargingState
	RemoteStarted bool
	RemoteStartID *int

	// StartedOffline marks transactions begun while disconnected; their
	// events are replayed with offline=true.
	StartedOffline bool

	// seqNo is the next TransactionEvent emission index, zero-based.
	// Started takes 0, every later event the next value, with no gaps.
	seqNo int
}

// NextSeqNo hands out the next emission index.
func (t *Transaction) NextSeqNo() int {
	n := t.seqNo
	t.seqNo++
	return n
}

// EnergyWh returns the energy delivered so far given the connector meter.
func (t *Transaction) EnergyWh(meterWh float64) float64 {
	return meterWh - t.MeterStartWh
}
