package variables

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voltbench/ocpp-sim/internal/domain"
	v201 "github.com/voltbench/ocpp-sim/internal/ocpp/v201"
)

const absoluteDefaultValueSize = 2500

type attrKey struct {
	Component         string
	ComponentInstance string
	EvseId            int
	Variable          string
	VariableInstance  string
	Type              v201.AttributeType
}

// Manager is the OCPP 2.0.1 variable store of one station: the process-wide
// definitions plus this station's attribute values and runtime overrides.
type Manager struct {
	mu        sync.RWMutex
	defs      map[string]map[string]*VariableDef
	values    map[attrKey]string
	overrides map[attrKey]string // original values of non-persistent writes
	onChange  func(component, variable, instance, value string)
	log       *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	return &Manager{
		defs:      Definitions(),
		values:    make(map[attrKey]string),
		overrides: make(map[attrKey]string),
		log:       log,
	}
}

// Seed writes the Actual attribute of a known variable before first use,
// beating the self-healed definition default. Unknown variables are ignored.
func (m *Manager) Seed(component, variable, value string) {
	if m.lookup(component, variable) == nil {
		return
	}
	k := attrKey{Component: component, Variable: variable, Type: v201.AttributeActual}
	m.mu.Lock()
	m.values[k] = value
	m.mu.Unlock()
}

// SetOnChange registers a callback fired after an accepted value change.
func (m *Manager) SetOnChange(fn func(component, variable, instance, value string)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func keyOf(component v201.Component, variable v201.Variable, t v201.AttributeType) attrKey {
	k := attrKey{
		Component:         component.Name,
		ComponentInstance: component.Instance,
		Variable:          variable.Name,
		VariableInstance:  variable.Instance,
		Type:              t,
	}
	if component.Evse != nil {
		k.EvseId = component.Evse.Id
	}
	return k
}

// Value returns the Actual attribute of a variable, self-healing the default
// in when the variable is known but unset.
func (m *Manager) Value(component, variable string) (string, bool) {
	return m.ValueWithInstance(component, variable, "")
}

// ValueWithInstance is Value for instance-qualified variables.
func (m *Manager) ValueWithInstance(component, variable, instance string) (string, bool) {
	def := m.lookup(component, variable)
	if def == nil {
		return "", false
	}
	k := attrKey{Component: component, Variable: variable, VariableInstance: instance, Type: v201.AttributeActual}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[k]; ok {
		return v, true
	}
	// Self-heal: first read of a known variable inserts its default.
	attr, ok := def.attribute(v201.AttributeActual)
	if !ok {
		return "", false
	}
	m.values[k] = attr.Default
	return attr.Default, true
}

// IntValue returns a variable as int, or fallback.
func (m *Manager) IntValue(component, variable string, fallback int) int {
	return m.intInstance(component, variable, "", fallback)
}

func (m *Manager) intInstance(component, variable, instance string, fallback int) int {
	s, ok := m.ValueWithInstance(component, variable, instance)
	if !ok || s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// BoolValue returns a variable as bool, or fallback.
func (m *Manager) BoolValue(component, variable string, fallback bool) bool {
	s, ok := m.Value(component, variable)
	if !ok || s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func (m *Manager) lookup(component, variable string) *VariableDef {
	byVar, ok := m.defs[component]
	if !ok {
		return nil
	}
	return byVar[variable]
}

func (m *Manager) effectiveValueSize() int {
	vs := m.IntValue(ComponentDeviceDataCtrlr, VarValueSize, 0)
	cs := m.IntValue(ComponentDeviceDataCtrlr, VarConfigurationValueSize, 0)
	switch {
	case vs > 0 && cs > 0:
		if cs < vs {
			return cs
		}
		return vs
	case vs > 0:
		return vs
	case cs > 0:
		return cs
	default:
		return absoluteDefaultValueSize
	}
}

// GetVariables answers a GetVariables request. requestBytes is the size of
// the raw inbound payload, used for the per-message byte limit.
func (m *Manager) GetVariables(req *v201.GetVariablesRequest, requestBytes int) *v201.GetVariablesResponse {
	itemLimit := m.intInstance(ComponentDeviceDataCtrlr, VarItemsPerMessage, InstanceGetVariables, 32)
	byteLimit := m.intInstance(ComponentDeviceDataCtrlr, VarBytesPerMessage, InstanceGetVariables, 8192)

	if len(req.GetVariableData) > itemLimit {
		return &v201.GetVariablesResponse{
			GetVariableResult: m.blanketGet(req, v201.ReasonCodeTooManyElements),
		}
	}
	if requestBytes > byteLimit {
		return &v201.GetVariablesResponse{
			GetVariableResult: m.blanketGet(req, v201.ReasonCodeTooLargeElement),
		}
	}

	results := make([]v201.GetVariableResult, 0, len(req.GetVariableData))
	for _, gv := range req.GetVariableData {
		results = append(results, m.getOne(gv))
	}
	resp := &v201.GetVariablesResponse{GetVariableResult: results}

	// The response itself is bounded by the same byte limit.
	if data, err := json.Marshal(resp); err == nil && len(data) > byteLimit {
		resp.GetVariableResult = m.blanketGet(req, v201.ReasonCodeTooLargeElement)
	}
	return resp
}

func (m *Manager) blanketGet(req *v201.GetVariablesRequest, reason string) []v201.GetVariableResult {
	out := make([]v201.GetVariableResult, 0, len(req.GetVariableData))
	for _, gv := range req.GetVariableData {
		out = append(out, v201.GetVariableResult{
			AttributeStatus: v201.GetVariableRejected,
			AttributeType:   gv.AttributeType,
			Component:       gv.Component,
			Variable:        gv.Variable,
			StatusInfo:      &v201.StatusInfo{ReasonCode: reason},
		})
	}
	return out
}

func (m *Manager) getOne(gv v201.GetVariableData) v201.GetVariableResult {
	res := v201.GetVariableResult{
		AttributeType: gv.AttributeType,
		Component:     gv.Component,
		Variable:      gv.Variable,
	}
	attrType := gv.AttributeType
	if attrType == "" {
		attrType = v201.AttributeActual
	}

	if _, ok := m.defs[gv.Component.Name]; !ok {
		res.AttributeStatus = v201.GetVariableUnknownComponent
		return res
	}
	def := m.lookup(gv.Component.Name, gv.Variable.Name)
	if def == nil {
		res.AttributeStatus = v201.GetVariableUnknownVariable
		return res
	}
	attr, ok := def.attribute(attrType)
	if !ok {
		res.AttributeStatus = v201.GetVariableNotSupportedAttributeType
		return res
	}
	if attr.Mutability == v201.MutabilityWriteOnly {
		res.AttributeStatus = v201.GetVariableRejected
		res.StatusInfo = &v201.StatusInfo{ReasonCode: v201.ReasonCodeWriteOnly}
		return res
	}
	if status, ok := m.checkInstance(def, gv.Variable.Instance); !ok {
		res.AttributeStatus = status
		return res
	}

	k := keyOf(gv.Component, gv.Variable, attrType)
	m.mu.Lock()
	v, ok := m.values[k]
	if !ok {
		// Self-heal the default in on first read.
		v = attr.Default
		m.values[k] = v
	}
	m.mu.Unlock()

	res.AttributeStatus = v201.GetVariableAccepted
	res.AttributeValue = &v
	return res
}

func (m *Manager) checkInstance(def *VariableDef, instance string) (v201.GetVariableStatus, bool) {
	if def.InstanceRequired {
		if instance == "" {
			return v201.GetVariableUnknownVariable, false
		}
		for _, i := range def.Instances {
			if i == instance {
				return "", true
			}
		}
		return v201.GetVariableUnknownVariable, false
	}
	return "", true
}

// SetVariables answers a SetVariables request with one result per request
// entry, applying the blanket limit rules first.
func (m *Manager) SetVariables(req *v201.SetVariablesRequest, requestBytes int) *v201.SetVariablesResponse {
	itemLimit := m.intInstance(ComponentDeviceDataCtrlr, VarItemsPerMessage, InstanceSetVariables, 32)
	byteLimit := m.intInstance(ComponentDeviceDataCtrlr, VarBytesPerMessage, InstanceSetVariables, 8192)

	if len(req.SetVariableData) > itemLimit {
		return &v201.SetVariablesResponse{SetVariableResult: m.blanketSet(req, v201.ReasonCodeTooManyElements)}
	}
	if requestBytes > byteLimit {
		return &v201.SetVariablesResponse{SetVariableResult: m.blanketSet(req, v201.ReasonCodeTooLargeElement)}
	}

	results := make([]v201.SetVariableResult, 0, len(req.SetVariableData))
	for _, sv := range req.SetVariableData {
		results = append(results, m.setOne(sv))
	}
	return &v201.SetVariablesResponse{SetVariableResult: results}
}

func (m *Manager) blanketSet(req *v201.SetVariablesRequest, reason string) []v201.SetVariableResult {
	out := make([]v201.SetVariableResult, 0, len(req.SetVariableData))
	for _, sv := range req.SetVariableData {
		out = append(out, v201.SetVariableResult{
			AttributeStatus: v201.SetVariableRejected,
			AttributeType:   sv.AttributeType,
			Component:       sv.Component,
			Variable:        sv.Variable,
			StatusInfo:      &v201.StatusInfo{ReasonCode: reason},
		})
	}
	return out
}

func (m *Manager) setOne(sv v201.SetVariableData) v201.SetVariableResult {
	res := v201.SetVariableResult{
		AttributeType: sv.AttributeType,
		Component:     sv.Component,
		Variable:      sv.Variable,
	}
	attrType := sv.AttributeType
	if attrType == "" {
		attrType = v201.AttributeActual
	}

	if _, ok := m.defs[sv.Component.Name]; !ok {
		res.AttributeStatus = v201.SetVariableUnknownComponent
		return res
	}
	def := m.lookup(sv.Component.Name, sv.Variable.Name)
	if def == nil {
		res.AttributeStatus = v201.SetVariableUnknownVariable
		return res
	}
	attr, ok := def.attribute(attrType)
	if !ok {
		res.AttributeStatus = v201.SetVariableNotSupportedAttributeType
		res.StatusInfo = &v201.StatusInfo{ReasonCode: v201.ReasonCodeUnsupportedParam}
		return res
	}
	if attr.Immutable {
		res.AttributeStatus = v201.SetVariableRejected
		res.StatusInfo = &v201.StatusInfo{ReasonCode: v201.ReasonCodeImmutableVariable}
		return res
	}
	if attr.Mutability == v201.MutabilityReadOnly {
		res.AttributeStatus = v201.SetVariableRejected
		res.StatusInfo = &v201.StatusInfo{ReasonCode: v201.ReasonCodeReadOnly}
		return res
	}
	if status, ok := m.checkInstance(def, sv.Variable.Instance); !ok {
		res.AttributeStatus = v201.SetVariableStatus(status)
		return res
	}

	if len(sv.AttributeValue) > m.effectiveValueSize() ||
		(def.MaxLength > 0 && len(sv.AttributeValue) > def.MaxLength) {
		res.AttributeStatus = v201.SetVariableRejected
		res.StatusInfo = &v201.StatusInfo{ReasonCode: v201.ReasonCodeTooLargeElement}
		return res
	}
	if err := validateValue(def, sv.AttributeValue); err != nil {
		res.AttributeStatus = v201.SetVariableRejected
		res.StatusInfo = &v201.StatusInfo{
			ReasonCode:     v201.ReasonCodePropertyConstraint,
			AdditionalInfo: err.Error(),
		}
		return res
	}

	k := keyOf(sv.Component, sv.Variable, attrType)
	m.mu.Lock()
	current, had := m.values[k]
	if !had {
		current = attr.Default
	}
	if current == sv.AttributeValue {
		// No-op write: accepted with no persistence side effect.
		m.mu.Unlock()
		res.AttributeStatus = v201.SetVariableAccepted
		return res
	}
	if !attr.Persistent {
		if _, tracked := m.overrides[k]; !tracked {
			m.overrides[k] = current
		}
	}
	m.values[k] = sv.AttributeValue
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(sv.Component.Name, sv.Variable.Name, sv.Variable.Instance, sv.AttributeValue)
	}

	if attr.RebootRequired {
		res.AttributeStatus = v201.SetVariableRebootRequired
		res.StatusInfo = &v201.StatusInfo{ReasonCode: v201.ReasonCodeChangeRequiresReboot}
		return res
	}
	res.AttributeStatus = v201.SetVariableAccepted
	return res
}

func validateValue(def *VariableDef, value string) error {
	switch def.DataType {
	case TypeInteger:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not an integer", value)
		}
		return checkLimits(def, float64(n))
	case TypeDecimal:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%q is not a decimal", value)
		}
		return checkLimits(def, x)
	case TypeBoolean:
		switch strings.ToLower(value) {
		case "true", "false":
			return nil
		}
		return fmt.Errorf("%q is not a boolean", value)
	case TypeDateTime:
		if _, err := time.Parse(time.RFC3339, value); err != nil {
			return fmt.Errorf("%q is not an RFC3339 datetime", value)
		}
		return nil
	default:
		return nil
	}
}

func checkLimits(def *VariableDef, x float64) error {
	if def.MinLimit != nil && x < *def.MinLimit {
		return fmt.Errorf("value %v below minimum %v", x, *def.MinLimit)
	}
	if def.MaxLimit != nil && x > *def.MaxLimit {
		return fmt.Errorf("value %v above maximum %v", x, *def.MaxLimit)
	}
	return nil
}

// ResetRuntimeOverrides reverts every non-persistent write to the value it
// overwrote.
func (m *Manager) ResetRuntimeOverrides() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, original := range m.overrides {
		m.values[k] = original
	}
	m.overrides = make(map[attrKey]string)
}

// Export snapshots persistent attributes for the configuration store.
func (m *Manager) Export() []domain.VariableAttributeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.VariableAttributeRecord, 0, len(m.values))
	for k, v := range m.values {
		def := m.lookup(k.Component, k.Variable)
		if def == nil {
			continue
		}
		attr, ok := def.attribute(k.Type)
		if !ok || !attr.Persistent {
			continue
		}
		rec := domain.VariableAttributeRecord{
			Component:         k.Component,
			ComponentInstance: k.ComponentInstance,
			Variable:          k.Variable,
			VariableInstance:  k.VariableInstance,
			Type:              string(k.Type),
			Value:             v,
			Persistent:        true,
		}
		if k.EvseId != 0 {
			evse := k.EvseId
			rec.EvseId = &evse
		}
		out = append(out, rec)
	}
	return out
}

// Import loads persisted attribute records, ignoring ones no definition
// covers anymore.
func (m *Manager) Import(records []domain.VariableAttributeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if m.lookup(rec.Component, rec.Variable) == nil {
			if m.log != nil {
				m.log.Debug("dropping persisted attribute without definition",
					zap.String("component", rec.Component),
					zap.String("variable", rec.Variable),
				)
			}
			continue
		}
		k := attrKey{
			Component:         rec.Component,
			ComponentInstance: rec.ComponentInstance,
			Variable:          rec.Variable,
			VariableInstance:  rec.VariableInstance,
			Type:              v201.AttributeType(rec.Type),
		}
		if rec.EvseId != nil {
			k.EvseId = *rec.EvseId
		}
		m.values[k] = rec.Value
	}
}
