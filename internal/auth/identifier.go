// Package auth implements the unified authorization pipeline: one identifier
// model, version adapters, and a priority-ordered strategy chain.
package auth

import (
	"time"

	"github.com/voltbench/ocpp-sim/internal/ocpp"
)

// IdentifierType classifies the credential presented for authorization.
type IdentifierType string

const (
	TypeIdTag           IdentifierType = "ID_TAG"
	TypeCentral         IdentifierType = "CENTRAL"
	TypeLocal           IdentifierType = "LOCAL"
	TypeISO14443        IdentifierType = "ISO14443"
	TypeISO15693        IdentifierType = "ISO15693"
	TypeKeyCode         IdentifierType = "KEY_CODE"
	TypeEMAID           IdentifierType = "E_MAID"
	TypeMacAddress      IdentifierType = "MAC_ADDRESS"
	TypeNoAuthorization IdentifierType = "NO_AUTHORIZATION"
)

// Identifier is the version-independent form of an idTag / idToken.
type Identifier struct {
	Type           IdentifierType
	Value          string
	ParentId       string
	AdditionalInfo map[string]string
	Version        ocpp.Version
}

const (
	maxLen16  = 20
	maxLen201 = 36
)

// IsValidIdentifier enforces the per-version length caps: [1,20] for 1.6 and
// [1,36] for 2.0.1.
func IsValidIdentifier(id Identifier) bool {
	n := len(id.Value)
	if n == 0 {
		return false
	}
	switch id.Version {
	case ocpp.V16:
		return n <= maxLen16
	case ocpp.V201:
		return n <= maxLen201
	default:
		return n <= maxLen16
	}
}

// Status is the unified authorization outcome.
type Status string

const (
	StatusAccepted           Status = "ACCEPTED"
	StatusBlocked            Status = "BLOCKED"
	StatusExpired            Status = "EXPIRED"
	StatusInvalid            Status = "INVALID"
	StatusConcurrentTx       Status = "CONCURRENT_TX"
	StatusNoCredit           Status = "NO_CREDIT"
	StatusNotAllowedTypeEVSE Status = "NOT_ALLOWED_TYPE_EVSE"
	StatusNotAtThisLocation  Status = "NOT_AT_THIS_LOCATION"
	StatusNotAtThisTime      Status = "NOT_AT_THIS_TIME"
	StatusUnknown            Status = "UNKNOWN"
)

// Result is the outcome of one authorization attempt.
type Result struct {
	Status    Status
	Method    string
	Timestamp time.Time
	ExpiresAt time.Time
	ParentId  string
	CacheTTL  time.Duration
	IsOffline bool
}

// Accepted reports whether the result allows a transaction.
func (r *Result) Accepted() bool {
	return r != nil && r.Status == StatusAccepted
}

// Request carries everything the strategies may need to decide.
type Request struct {
	Identifier  Identifier
	ConnectorId int
	EvseId      int
	Certificate string
}
