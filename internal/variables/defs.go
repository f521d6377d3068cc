package variables

import (
	"sync"

	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
)

// Well-known 2.0.1 component and variable names.
const (
	ComponentChargingStation = "ChargingStation"
	ComponentAuthCtrlr       = "AuthCtrlr"
	ComponentAuthCacheCtrlr  = "AuthCacheCtrlr"
	ComponentLocalAuthListCtrlr = "LocalAuthListCtrlr"
	ComponentClockCtrlr      = "ClockCtrlr"
	ComponentDeviceDataCtrlr = "DeviceDataCtrlr"
	ComponentOCPPCommCtrlr   = "OCPPCommCtrlr"
	ComponentSampledDataCtrlr = "SampledDataCtrlr"
	ComponentSecurityCtrlr   = "SecurityCtrlr"
	ComponentTxCtrlr         = "TxCtrlr"

	VarHeartbeatInterval     = "HeartbeatInterval"
	VarWebSocketPingInterval = "WebSocketPingInterval"
	VarMessageTimeout        = "MessageTimeout"
	VarAvailabilityState     = "AvailabilityState"
	VarDateTime              = "DateTime"
	VarItemsPerMessage       = "ItemsPerMessage"
	VarBytesPerMessage       = "BytesPerMessage"
	VarValueSize             = "ValueSize"
	VarConfigurationValueSize = "ConfigurationValueSize"
	VarAuthorizeRemoteStart  = "AuthorizeRemoteStart"
	VarLocalAuthListEnabled  = "Enabled"
	VarAuthCacheEnabled      = "Enabled"
	VarTxUpdatedInterval     = "TxUpdatedInterval"
	VarTxUpdatedMeasurands   = "TxUpdatedMeasurands"
	VarBasicAuthPassword     = "BasicAuthPassword"
	VarOrganizationName      = "OrganizationName"

	InstanceGetVariables = "GetVariables"
	InstanceSetVariables = "SetVariables"
)

// DataType constrains attribute values.
type DataType string

const (
	TypeString   DataType = "string"
	TypeDecimal  DataType = "decimal"
	TypeInteger  DataType = "integer"
	TypeBoolean  DataType = "boolean"
	TypeDateTime DataType = "dateTime"
)

// AttributeDef describes one attribute of a variable.
type AttributeDef struct {
	Mutability     v201.MutabilityType
	Persistent     bool
	RebootRequired bool
	Immutable      bool // rejects every write with ImmutableVariable
	Default        string
}

// VariableDef describes one variable of a component.
type VariableDef struct {
	Component        string
	Variable         string
	InstanceRequired bool // the variable only exists with an instance qualifier
	Instances        []string
	DataType         DataType
	MinLimit         *float64
	MaxLimit         *float64
	MaxLength        int
	Attributes       map[v201.AttributeType]AttributeDef
}

func (d *VariableDef) attribute(t v201.AttributeType) (AttributeDef, bool) {
	a, ok := d.Attributes[t]
	return a, ok
}

func f(v float64) *float64 { return &v }

func rw(def string, persistent, reboot bool) map[v201.AttributeType]AttributeDef {
	return map[v201.AttributeType]AttributeDef{
		v201.AttributeActual: {
			Mutability:     v201.MutabilityReadWrite,
			Persistent:     persistent,
			RebootRequired: reboot,
			Default:        def,
		},
	}
}

func ro(def string) map[v201.AttributeType]AttributeDef {
	return map[v201.AttributeType]AttributeDef{
		v201.AttributeActual: {Mutability: v201.MutabilityReadOnly, Persistent: true, Default: def},
	}
}

var (
	defsOnce sync.Once
	defs     map[string]map[string]*VariableDef
)

// Definitions returns the process-wide variable definition registry,
// read-mostly after initialization.
func Definitions() map[string]map[string]*VariableDef {
	defsOnce.Do(buildDefinitions)
	return defs
}

func register(d *VariableDef) {
	byVar, ok := defs[d.Component]
	if !ok {
		byVar = make(map[string]*VariableDef)
		defs[d.Component] = byVar
	}
	byVar[d.Variable] = d
}

func buildDefinitions() {
	defs = make(map[string]map[string]*VariableDef)

	register(&VariableDef{
		Component: ComponentChargingStation, Variable: VarHeartbeatInterval,
		DataType: TypeInteger, MinLimit: f(1),
		Attributes: rw("60", true, false),
	})
	register(&VariableDef{
		Component: ComponentChargingStation, Variable: VarWebSocketPingInterval,
		DataType: TypeInteger, MinLimit: f(0),
		Attributes: rw("30", true, false),
	})
	register(&VariableDef{
		Component: ComponentChargingStation, Variable: VarMessageTimeout,
		DataType: TypeInteger, MinLimit: f(1),
		Attributes: map[v201.AttributeType]AttributeDef{
			v201.AttributeActual: {
				Mutability:     v201.MutabilityReadWrite,
				Persistent:     true,
				RebootRequired: true,
				Default:        "30",
			},
		},
	})
	register(&VariableDef{
		Component: ComponentChargingStation, Variable: VarAvailabilityState,
		DataType:   TypeString,
		Attributes: ro("Available"),
	})

	register(&VariableDef{
		Component: ComponentClockCtrlr, Variable: VarDateTime,
		DataType: TypeDateTime,
		Attributes: map[v201.AttributeType]AttributeDef{
			v201.AttributeActual: {Mutability: v201.MutabilityReadOnly, Immutable: true},
		},
	})

	register(&VariableDef{
		Component: ComponentDeviceDataCtrlr, Variable: VarItemsPerMessage,
		InstanceRequired: true,
		Instances:        []string{InstanceGetVariables, InstanceSetVariables},
		DataType:         TypeInteger, MinLimit: f(1),
		Attributes: rw("32", true, false),
	})
	register(&VariableDef{
		Component: ComponentDeviceDataCtrlr, Variable: VarBytesPerMessage,
		InstanceRequired: true,
		Instances:        []string{InstanceGetVariables, InstanceSetVariables},
		DataType:         TypeInteger, MinLimit: f(1),
		Attributes: rw("8192", true, false),
	})
	register(&VariableDef{
		Component: ComponentDeviceDataCtrlr, Variable: VarValueSize,
		DataType: TypeInteger,
		Attributes: rw("2500", true, false),
	})
	register(&VariableDef{
		Component: ComponentDeviceDataCtrlr, Variable: VarConfigurationValueSize,
		DataType: TypeInteger,
		Attributes: rw("1000", true, false),
	})

	register(&VariableDef{
		Component: ComponentAuthCtrlr, Variable: VarAuthorizeRemoteStart,
		DataType:   TypeBoolean,
		Attributes: rw("true", true, false),
	})
	register(&VariableDef{
		Component: ComponentLocalAuthListCtrlr, Variable: VarLocalAuthListEnabled,
		DataType:   TypeBoolean,
		Attributes: rw("false", true, false),
	})
	register(&VariableDef{
		Component: ComponentAuthCacheCtrlr, Variable: VarAuthCacheEnabled,
		DataType:   TypeBoolean,
		Attributes: rw("true", true, false),
	})

	// TxUpdatedInterval is a runtime override: a SetVariables change holds
	// until ResetRuntimeOverrides, then reverts.
	register(&VariableDef{
		Component: ComponentTxCtrlr, Variable: VarTxUpdatedInterval,
		DataType: TypeInteger, MinLimit: f(0),
		Attributes: rw("30", false, false),
	})
	register(&VariableDef{
		Component: ComponentSampledDataCtrlr, Variable: VarTxUpdatedMeasurands,
		DataType:   TypeString,
		MaxLength:  1000,
		Attributes: rw("Energy.Active.Import.Register", true, false),
	})

	register(&VariableDef{
		Component: ComponentSecurityCtrlr, Variable: VarBasicAuthPassword,
		DataType:  TypeString,
		MaxLength: 40,
		Attributes: map[v201.AttributeType]AttributeDef{
			v201.AttributeActual: {Mutability: v201.MutabilityWriteOnly, Persistent: true},
		},
	})
	register(&VariableDef{
		Component: ComponentSecurityCtrlr, Variable: VarOrganizationName,
		DataType:   TypeString,
		MaxLength:  50,
		Attributes: rw("VoltBench", true, false),
	})
}
