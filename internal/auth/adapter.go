package auth

import (
	"time"

	v16 "github.com/voltbench/ocpp-sim/internal/ocpp/v16"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
)

// Version adapters: unified identifier and status types translated to and
// from the wire representations of each OCPP version.

// ToIdToken201 maps a unified identifier onto the 2.0.1 IdToken.
func ToIdToken201(id Identifier) v201.IdToken {
	return v201.IdToken{IdToken: id.Value, Type: tokenType201(id.Type)}
}

func tokenType201(t IdentifierType) v201.IdTokenType {
	switch t {
	case TypeCentral:
		return v201.IdTokenCentral
	case TypeEMAID:
		return v201.IdTokenEMAID
	case TypeISO14443:
		return v201.IdTokenISO14443
	case TypeISO15693:
		return v201.IdTokenISO15693
	case TypeKeyCode:
		return v201.IdTokenKeyCode
	case TypeMacAddress:
		return v201.IdTokenMacAddress
	case TypeNoAuthorization:
		return v201.IdTokenNoAuthorization
	case TypeLocal, TypeIdTag:
		return v201.IdTokenLocal
	default:
		return v201.IdTokenLocal
	}
}

// FromIdToken201 maps a wire IdToken back onto the unified identifier.
func FromIdToken201(tok v201.IdToken) Identifier {
	var t IdentifierType
	switch tok.Type {
	case v201.IdTokenCentral:
		t = TypeCentral
	case v201.IdTokenEMAID:
		t = TypeEMAID
	case v201.IdTokenISO14443:
		t = TypeISO14443
	case v201.IdTokenISO15693:
		t = TypeISO15693
	case v201.IdTokenKeyCode:
		t = TypeKeyCode
	case v201.IdTokenMacAddress:
		t = TypeMacAddress
	case v201.IdTokenNoAuthorization:
		t = TypeNoAuthorization
	default:
		t = TypeLocal
	}
	return Identifier{Type: t, Value: tok.IdToken, Version: "2.0.1"}
}

// FromIdTagInfo16 maps a 1.6 IdTagInfo onto a unified result.
func FromIdTagInfo16(info v16.IdTagInfo) *Result {
	res := &Result{
		Status:    fromStatus16(info.Status),
		ParentId:  info.ParentIdTag,
		Timestamp: time.Now(),
	}
	if info.ExpiryDate != "" {
		if t, err := time.Parse(time.RFC3339, info.ExpiryDate); err == nil {
			res.ExpiresAt = t
		}
	}
	return res
}

func fromStatus16(s v16.AuthorizationStatus) Status {
	switch s {
	case v16.AuthorizationAccepted:
		return StatusAccepted
	case v16.AuthorizationBlocked:
		return StatusBlocked
	case v16.AuthorizationExpired:
		return StatusExpired
	case v16.AuthorizationConcurrentTx:
		return StatusConcurrentTx
	default:
		return StatusInvalid
	}
}

// ToStatus16 maps a unified status onto the 1.6 enum. Statuses 1.6 cannot
// express degrade to Invalid.
func ToStatus16(s Status) v16.AuthorizationStatus {
	switch s {
	case StatusAccepted:
		return v16.AuthorizationAccepted
	case StatusBlocked:
		return v16.AuthorizationBlocked
	case StatusExpired:
		return v16.AuthorizationExpired
	case StatusConcurrentTx:
		return v16.AuthorizationConcurrentTx
	default:
		return v16.AuthorizationInvalid
	}
}

// FromIdTokenInfo201 maps a 2.0.1 IdTokenInfo onto a unified result.
func FromIdTokenInfo201(info v201.IdTokenInfo) *Result {
	res := &Result{
		Status:    fromStatus201(info.Status),
		Timestamp: time.Now(),
	}
	if info.GroupIdToken != nil {
		res.ParentId = info.GroupIdToken.IdToken
	}
	if info.CacheExpiryDateTime != "" {
		if t, err := time.Parse(time.RFC3339, info.CacheExpiryDateTime); err == nil {
			res.ExpiresAt = t
			res.CacheTTL = time.Until(t)
		}
	}
	return res
}

func fromStatus201(s v201.AuthorizationStatus) Status {
	switch s {
	case v201.AuthorizationAccepted:
		return StatusAccepted
	case v201.AuthorizationBlocked:
		return StatusBlocked
	case v201.AuthorizationConcurrentTx:
		return StatusConcurrentTx
	case v201.AuthorizationExpired:
		return StatusExpired
	case v201.AuthorizationNoCredit:
		return StatusNoCredit
	case v201.AuthorizationNotAllowedTypeEVSE:
		return StatusNotAllowedTypeEVSE
	case v201.AuthorizationNotAtThisLocation:
		return StatusNotAtThisLocation
	case v201.AuthorizationNotAtThisTime:
		return StatusNotAtThisTime
	case v201.AuthorizationUnknown:
		return StatusUnknown
	default:
		return StatusInvalid
	}
}

// ToStatus201 maps a unified status onto the 2.0.1 enum.
func ToStatus201(s Status) v201.AuthorizationStatus {
	switch s {
	case StatusAccepted:
		return v201.AuthorizationAccepted
	case StatusBlocked:
		return v201.AuthorizationBlocked
	case StatusConcurrentTx:
		return v201.AuthorizationConcurrentTx
	case StatusExpired:
		return v201.AuthorizationExpired
	case StatusNoCredit:
		return v201.AuthorizationNoCredit
	case StatusNotAllowedTypeEVSE:
		return v201.AuthorizationNotAllowedTypeEVSE
	case StatusNotAtThisLocation:
		return v201.AuthorizationNotAtThisLocation
	case StatusNotAtThisTime:
		return v201.AuthorizationNotAtThisTime
	case StatusUnknown:
		return v201.AuthorizationUnknown
	default:
		return v201.AuthorizationInvalid
	}
}
