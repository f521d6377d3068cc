// Package v201 holds the OCPP 2.0.1 payload structs and enums used by the
// simulated charging stations.
package v201

// Actions a 2.0.1 station sends or accepts.
const (
	ActionAuthorize                  = "Authorize"
	ActionBootNotification           = "BootNotification"
	ActionCertificateSigned          = "CertificateSigned"
	ActionChangeAvailability         = "ChangeAvailability"
	ActionDeleteCertificate          = "DeleteCertificate"
	ActionGetVariables               = "GetVariables"
	ActionHeartbeat                  = "Heartbeat"
	ActionInstallCertificate         = "InstallCertificate"
	ActionMeterValues                = "MeterValues"
	ActionRequestStartTransaction    = "RequestStartTransaction"
	ActionRequestStopTransaction     = "RequestStopTransaction"
	ActionReset                      = "Reset"
	ActionSetVariables               = "SetVariables"
	ActionSignCertificate            = "SignCertificate"
	ActionStatusNotification         = "StatusNotification"
	ActionTransactionEvent           = "TransactionEvent"
	ActionTriggerMessage             = "TriggerMessage"
	ActionUnlockConnector            = "UnlockConnector"
	ActionFirmwareStatusNotification = "FirmwareStatusNotification"
)

type RegistrationStatus string

const (
	RegistrationAccepted RegistrationStatus = "Accepted"
	RegistrationPending  RegistrationStatus = "Pending"
	RegistrationRejected RegistrationStatus = "Rejected"
)

type BootReason string

const (
	BootReasonPowerUp       BootReason = "PowerUp"
	BootReasonRemoteReset   BootReason = "RemoteReset"
	BootReasonScheduledReset BootReason = "ScheduledReset"
	BootReasonTriggered     BootReason = "Triggered"
	BootReasonWatchdog      BootReason = "Watchdog"
)

type ConnectorStatus string

const (
	ConnectorAvailable   ConnectorStatus = "Available"
	ConnectorOccupied    ConnectorStatus = "Occupied"
	ConnectorReserved    ConnectorStatus = "Reserved"
	ConnectorUnavailable ConnectorStatus = "Unavailable"
	ConnectorFaulted     ConnectorStatus = "Faulted"
)

type AuthorizationStatus string

const (
	AuthorizationAccepted           AuthorizationStatus = "Accepted"
	AuthorizationBlocked            AuthorizationStatus = "Blocked"
	AuthorizationConcurrentTx       AuthorizationStatus = "ConcurrentTx"
	AuthorizationExpired            AuthorizationStatus = "Expired"
	AuthorizationInvalid            AuthorizationStatus = "Invalid"
	AuthorizationNoCredit           AuthorizationStatus = "NoCredit"
	AuthorizationNotAllowedTypeEVSE AuthorizationStatus = "NotAllowedTypeEVSE"
	AuthorizationNotAtThisLocation  AuthorizationStatus = "NotAtThisLocation"
	AuthorizationNotAtThisTime      AuthorizationStatus = "NotAtThisTime"
	AuthorizationUnknown            AuthorizationStatus = "Unknown"
)

type IdTokenType string

const (
	IdTokenCentral         IdTokenType = "Central"
	IdTokenEMAID           IdTokenType = "eMAID"
	IdTokenISO14443        IdTokenType = "ISO14443"
	IdTokenISO15693        IdTokenType = "ISO15693"
	IdTokenKeyCode         IdTokenType = "KeyCode"
	IdTokenLocal           IdTokenType = "Local"
	IdTokenMacAddress      IdTokenType = "MacAddress"
	IdTokenNoAuthorization IdTokenType = "NoAuthorization"
)

type TransactionEventType string

const (
	EventStarted TransactionEventType = "Started"
	EventUpdated TransactionEventType = "Updated"
	EventEnded   TransactionEventType = "Ended"
)

type TriggerReason string

const (
	TriggerAuthorized         TriggerReason = "Authorized"
	TriggerCablePluggedIn     TriggerReason = "CablePluggedIn"
	TriggerChargingStateChanged TriggerReason = "ChargingStateChanged"
	TriggerDeauthorized       TriggerReason = "Deauthorized"
	TriggerMeterValuePeriodic TriggerReason = "MeterValuePeriodic"
	TriggerRemoteStart        TriggerReason = "RemoteStart"
	TriggerRemoteStop         TriggerReason = "RemoteStop"
	TriggerStopAuthorized     TriggerReason = "StopAuthorized"
	TriggerTrigger            TriggerReason = "Trigger"
)

type ChargingState string

const (
	ChargingStateCharging      ChargingState = "Charging"
	ChargingStateEVConnected   ChargingState = "EVConnected"
	ChargingStateSuspendedEV   ChargingState = "SuspendedEV"
	ChargingStateSuspendedEVSE ChargingState = "SuspendedEVSE"
	ChargingStateIdle          ChargingState = "Idle"
)

type StopReason string

const (
	StopReasonDeAuthorized    StopReason = "DeAuthorized"
	StopReasonEVDisconnected  StopReason = "EVDisconnected"
	StopReasonImmediateReset  StopReason = "ImmediateReset"
	StopReasonLocal           StopReason = "Local"
	StopReasonOther           StopReason = "Other"
	StopReasonPowerLoss       StopReason = "PowerLoss"
	StopReasonReboot          StopReason = "Reboot"
	StopReasonRemote          StopReason = "Remote"
	StopReasonStoppedByEV     StopReason = "StoppedByEV"
	StopReasonUnlockCommand   StopReason = "UnlockCommand"
)

type ResetType string

const (
	ResetImmediate ResetType = "Immediate"
	ResetOnIdle    ResetType = "OnIdle"
)

type ResetStatus string

const (
	ResetAccepted  ResetStatus = "Accepted"
	ResetRejected  ResetStatus = "Rejected"
	ResetScheduled ResetStatus = "Scheduled"
)

type RequestStartStopStatus string

const (
	RequestStartStopAccepted RequestStartStopStatus = "Accepted"
	RequestStartStopRejected RequestStartStopStatus = "Rejected"
)

type UnlockStatus string

const (
	UnlockUnlocked                     UnlockStatus = "Unlocked"
	UnlockFailed                       UnlockStatus = "UnlockFailed"
	UnlockOngoingAuthorizedTransaction UnlockStatus = "OngoingAuthorizedTransaction"
	UnlockUnknownConnector             UnlockStatus = "UnknownConnector"
)

type OperationalStatus string

const (
	OperationalOperative   OperationalStatus = "Operative"
	OperationalInoperative OperationalStatus = "Inoperative"
)

type ChangeAvailabilityStatus string

const (
	ChangeAvailabilityAccepted  ChangeAvailabilityStatus = "Accepted"
	ChangeAvailabilityRejected  ChangeAvailabilityStatus = "Rejected"
	ChangeAvailabilityScheduled ChangeAvailabilityStatus = "Scheduled"
)

type GetVariableStatus string

const (
	GetVariableAccepted                  GetVariableStatus = "Accepted"
	GetVariableRejected                  GetVariableStatus = "Rejected"
	GetVariableUnknownComponent          GetVariableStatus = "UnknownComponent"
	GetVariableUnknownVariable           GetVariableStatus = "UnknownVariable"
	GetVariableNotSupportedAttributeType GetVariableStatus = "NotSupportedAttributeType"
)

type SetVariableStatus string

const (
	SetVariableAccepted                  SetVariableStatus = "Accepted"
	SetVariableRejected                  SetVariableStatus = "Rejected"
	SetVariableUnknownComponent          SetVariableStatus = "UnknownComponent"
	SetVariableUnknownVariable           SetVariableStatus = "UnknownVariable"
	SetVariableNotSupportedAttributeType SetVariableStatus = "NotSupportedAttributeType"
	SetVariableRebootRequired            SetVariableStatus = "RebootRequired"
)

type AttributeType string

const (
	AttributeActual AttributeType = "Actual"
	AttributeTarget AttributeType = "Target"
	AttributeMinSet AttributeType = "MinSet"
	AttributeMaxSet AttributeType = "MaxSet"
)

type MutabilityType string

const (
	MutabilityReadOnly  MutabilityType = "ReadOnly"
	MutabilityWriteOnly MutabilityType = "WriteOnly"
	MutabilityReadWrite MutabilityType = "ReadWrite"
)

type TriggerMessageStatus string

const (
	TriggerMessageAccepted       TriggerMessageStatus = "Accepted"
	TriggerMessageRejected       TriggerMessageStatus = "Rejected"
	TriggerMessageNotImplemented TriggerMessageStatus = "NotImplemented"
)

type CertificateSignedStatus string

const (
	CertificateSignedAccepted CertificateSignedStatus = "Accepted"
	CertificateSignedRejected CertificateSignedStatus = "Rejected"
)

type InstallCertificateStatus string

const (
	InstallCertificateAccepted InstallCertificateStatus = "Accepted"
	InstallCertificateRejected InstallCertificateStatus = "Rejected"
	InstallCertificateFailed   InstallCertificateStatus = "Failed"
)

type DeleteCertificateStatus string

const (
	DeleteCertificateAccepted DeleteCertificateStatus = "Accepted"
	DeleteCertificateFailed   DeleteCertificateStatus = "Failed"
	DeleteCertificateNotFound DeleteCertificateStatus = "NotFound"
)

type CertificateSigningUse string

const (
	CertificateUseChargingStation CertificateSigningUse = "ChargingStationCertificate"
	CertificateUseV2G             CertificateSigningUse = "V2GCertificate"
)

// Reason codes carried in StatusInfo.
const (
	ReasonCodeNoError              = "NoError"
	ReasonCodeChangeRequiresReboot = "ChangeRequiresReboot"
	ReasonCodeImmutableVariable    = "ImmutableVariable"
	ReasonCodeUnsupportedParam     = "UnsupportedParam"
	ReasonCodeReadOnly             = "ReadOnly"
	ReasonCodeWriteOnly            = "WriteOnly"
	ReasonCodeTooManyElements      = "TooManyElements"
	ReasonCodeTooLargeElement      = "TooLargeElement"
	ReasonCodeUnknownEvse          = "UnknownEvse"
	ReasonCodeUnsupportedRequest   = "UnsupportedRequest"
	ReasonCodePropertyConstraint   = "PropertyConstraintViolation"
)

// --- Shared structures ---

type StatusInfo struct {
	ReasonCode     string `json:"reasonCode"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

type EVSE struct {
	Id          int `json:"id"`
	ConnectorId int `json:"connectorId,omitempty"`
}

type IdToken struct {
	IdToken        string           `json:"idToken"`
	Type           IdTokenType      `json:"type"`
	AdditionalInfo []AdditionalInfo `json:"additionalInfo,omitempty"`
}

type AdditionalInfo struct {
	AdditionalIdToken string `json:"additionalIdToken"`
	Type              string `json:"type"`
}

type IdTokenInfo struct {
	Status              AuthorizationStatus `json:"status"`
	CacheExpiryDateTime string              `json:"cacheExpiryDateTime,omitempty"`
	GroupIdToken        *IdToken            `json:"groupIdToken,omitempty"`
}

type Component struct {
	Name     string `json:"name"`
	Instance string `json:"instance,omitempty"`
	Evse     *EVSE  `json:"evse,omitempty"`
}

type Variable struct {
	Name     string `json:"name"`
	Instance string `json:"instance,omitempty"`
}

type SampledValue struct {
	Value         float64        `json:"value"`
	Context       string         `json:"context,omitempty"`
	Measurand     string         `json:"measurand,omitempty"`
	Phase         string         `json:"phase,omitempty"`
	Location      string         `json:"location,omitempty"`
	UnitOfMeasure *UnitOfMeasure `json:"unitOfMeasure,omitempty"`
}

type UnitOfMeasure struct {
	Unit       string `json:"unit,omitempty"`
	Multiplier int    `json:"multiplier,omitempty"`
}

type MeterValue struct {
	Timestamp    string         `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// --- Station to CSMS ---

type ChargingStationType struct {
	Model           string `json:"model"`
	VendorName      string `json:"vendorName"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

type BootNotificationRequest struct {
	ChargingStation ChargingStationType `json:"chargingStation"`
	Reason          BootReason          `json:"reason"`
}

type BootNotificationResponse struct {
	CurrentTime string             `json:"currentTime"`
	Interval    int                `json:"interval"`
	Status      RegistrationStatus `json:"status"`
	StatusInfo  *StatusInfo        `json:"statusInfo,omitempty"`
}

type HeartbeatRequest struct{}

type HeartbeatResponse struct {
	CurrentTime string `json:"currentTime"`
}

type StatusNotificationRequest struct {
	Timestamp       string          `json:"timestamp"`
	ConnectorStatus ConnectorStatus `json:"connectorStatus"`
	EvseId          int             `json:"evseId"`
	ConnectorId     int             `json:"connectorId"`
}

type StatusNotificationResponse struct{}

type AuthorizeRequest struct {
	IdToken     IdToken `json:"idToken"`
	Certificate string  `json:"certificate,omitempty"`
}

type AuthorizeResponse struct {
	IdTokenInfo       IdTokenInfo `json:"idTokenInfo"`
	CertificateStatus string      `json:"certificateStatus,omitempty"`
}

type TransactionInfo struct {
	TransactionId     string        `json:"transactionId"`
	ChargingState     ChargingState `json:"chargingState,omitempty"`
	StoppedReason     StopReason    `json:"stoppedReason,omitempty"`
	RemoteStartId     *int          `json:"remoteStartId,omitempty"`
	TimeSpentCharging *int          `json:"timeSpentCharging,omitempty"`
}

type TransactionEventRequest struct {
	EventType       TransactionEventType `json:"eventType"`
	Timestamp       string               `json:"timestamp"`
	TriggerReason   TriggerReason        `json:"triggerReason"`
	SeqNo           int                  `json:"seqNo"`
	TransactionInfo TransactionInfo      `json:"transactionInfo"`
	Offline         bool                 `json:"offline,omitempty"`
	Evse            *EVSE                `json:"evse,omitempty"`
	IdToken         *IdToken             `json:"idToken,omitempty"`
	MeterValue      []MeterValue         `json:"meterValue,omitempty"`
}

type TransactionEventResponse struct {
	TotalCost   *float64     `json:"totalCost,omitempty"`
	IdTokenInfo *IdTokenInfo `json:"idTokenInfo,omitempty"`
}

type MeterValuesRequest struct {
	EvseId     int          `json:"evseId"`
	MeterValue []MeterValue `json:"meterValue"`
}

type MeterValuesResponse struct{}

type SignCertificateRequest struct {
	CSR             string                `json:"csr"`
	CertificateType CertificateSigningUse `json:"certificateType,omitempty"`
}

type SignCertificateResponse struct {
	Status     string      `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

type FirmwareStatusNotificationRequest struct {
	Status    string `json:"status"`
	RequestId *int   `json:"requestId,omitempty"`
}

type FirmwareStatusNotificationResponse struct{}

// --- CSMS to Station ---

type ResetRequest struct {
	Type   ResetType `json:"type"`
	EvseId *int      `json:"evseId,omitempty"`
}

type ResetResponse struct {
	Status     ResetStatus `json:"status"`
	StatusInfo *StatusInfo `json:"statusInfo,omitempty"`
}

type RequestStartTransactionRequest struct {
	IdToken       IdToken  `json:"idToken"`
	RemoteStartId int      `json:"remoteStartId"`
	EvseId        *int     `json:"evseId,omitempty"`
	GroupIdToken  *IdToken `json:"groupIdToken,omitempty"`
}

type RequestStartTransactionResponse struct {
	Status        RequestStartStopStatus `json:"status"`
	TransactionId string                 `json:"transactionId,omitempty"`
	StatusInfo    *StatusInfo            `json:"statusInfo,omitempty"`
}

type RequestStopTransactionRequest struct {
	TransactionId string `json:"transactionId"`
}

type RequestStopTransactionResponse struct {
	Status     RequestStartStopStatus `json:"status"`
	StatusInfo *StatusInfo            `json:"statusInfo,omitempty"`
}

type UnlockConnectorRequest struct {
	EvseId      int `json:"evseId"`
	ConnectorId int `json:"connectorId"`
}

type UnlockConnectorResponse struct {
	Status     UnlockStatus `json:"status"`
	StatusInfo *StatusInfo  `json:"statusInfo,omitempty"`
}

type ChangeAvailabilityRequest struct {
	OperationalStatus OperationalStatus `json:"operationalStatus"`
	Evse              *EVSE             `json:"evse,omitempty"`
}

type ChangeAvailabilityResponse struct {
	Status     ChangeAvailabilityStatus `json:"status"`
	StatusInfo *StatusInfo              `json:"statusInfo,omitempty"`
}

type GetVariableData struct {
	Component     Component     `json:"component"`
	Variable      Variable      `json:"variable"`
	AttributeType AttributeType `json:"attributeType,omitempty"`
}

type GetVariablesRequest struct {
	GetVariableData []GetVariableData `json:"getVariableData"`
}

type GetVariableResult struct {
	AttributeStatus GetVariableStatus `json:"attributeStatus"`
	AttributeType   AttributeType     `json:"attributeType,omitempty"`
	AttributeValue  *string           `json:"attributeValue,omitempty"`
	Component       Component         `json:"component"`
	Variable        Variable          `json:"variable"`
	StatusInfo      *StatusInfo       `json:"statusInfo,omitempty"`
}

type GetVariablesResponse struct {
	GetVariableResult []GetVariableResult `json:"getVariableResult"`
}

type SetVariableData struct {
	AttributeType  AttributeType `json:"attributeType,omitempty"`
	AttributeValue string        `json:"attributeValue"`
	Component      Component     `json:"component"`
	Variable       Variable      `json:"variable"`
}

type SetVariablesRequest struct {
	SetVariableData []SetVariableData `json:"setVariableData"`
}

type SetVariableResult struct {
	AttributeStatus SetVariableStatus `json:"attributeStatus"`
	AttributeType   AttributeType     `json:"attributeType,omitempty"`
	Component       Component         `json:"component"`
	Variable        Variable          `json:"variable"`
	StatusInfo      *StatusInfo       `json:"statusInfo,omitempty"`
}

type SetVariablesResponse struct {
	SetVariableResult []SetVariableResult `json:"setVariableResult"`
}

type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage"`
	Evse             *EVSE  `json:"evse,omitempty"`
}

type TriggerMessageResponse struct {
	Status     TriggerMessageStatus `json:"status"`
	StatusInfo *StatusInfo          `json:"statusInfo,omitempty"`
}

type CertificateSignedRequest struct {
	CertificateChain string                `json:"certificateChain"`
	CertificateType  CertificateSigningUse `json:"certificateType,omitempty"`
}

type CertificateSignedResponse struct {
	Status     CertificateSignedStatus `json:"status"`
	StatusInfo *StatusInfo             `json:"statusInfo,omitempty"`
}

type InstallCertificateRequest struct {
	CertificateType string `json:"certificateType"`
	Certificate     string `json:"certificate"`
}

type InstallCertificateResponse struct {
	Status     InstallCertificateStatus `json:"status"`
	StatusInfo *StatusInfo              `json:"statusInfo,omitempty"`
}

type CertificateHashData struct {
	HashAlgorithm  string `json:"hashAlgorithm"`
	IssuerNameHash string `json:"issuerNameHash"`
	IssuerKeyHash  string `json:"issuerKeyHash"`
	SerialNumber   string `json:"serialNumber"`
}

type DeleteCertificateRequest struct {
	CertificateHashData CertificateHashData `json:"certificateHashData"`
}

type DeleteCertificateResponse struct {
	Status     DeleteCertificateStatus `json:"status"`
	StatusInfo *StatusInfo             `json:"statusInfo,omitempty"`
}
