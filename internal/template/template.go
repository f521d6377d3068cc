// Package template defines the immutable station prototype loaded from JSON
// files and the derivation of per-station identities from it.
package template

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/voltbench/ocpp-sim/internal/ocpp"
)

// ConnectorTemplate describes one connector of the prototype.
type ConnectorTemplate struct {
	MeterValues []SampledValueTemplate `json:"meterValues,omitempty"`
}

// SampledValueTemplate selects a measurand to synthesize during sampling.
type SampledValueTemplate struct {
	Measurand string `json:"measurand,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Context   string `json:"context,omitempty"`
}

// EvseTemplate describes one EVSE (2.0.1) with its local connectors.
type EvseTemplate struct {
	Connectors map[int]ConnectorTemplate `json:"Connectors"`
}

// ATGConfig holds the automatic transaction generator parameters.
type ATGConfig struct {
	Enable                         bool    `json:"enable"`
	MinDelayBetweenTwoTransactions float64 `json:"minDelayBetweenTwoTransactions"`
	MaxDelayBetweenTwoTransactions float64 `json:"maxDelayBetweenTwoTransactions"`
	ProbabilityOfStart             float64 `json:"probabilityOfStart"`
	MinDuration                    float64 `json:"minDuration"`
	MaxDuration                    float64 `json:"maxDuration"`
	StopAfterHours                 float64 `json:"stopAfterHours"`
	StopAbsoluteDuration           bool    `json:"stopAbsoluteDuration"`
	StopOnConnectionFailure        bool    `json:"stopOnConnectionFailure"`
	RequireAuthorize               bool    `json:"requireAuthorize"`
	IdTagDistribution              string  `json:"idTagDistribution,omitempty"` // random | round-robin | connector-affinity
}

// Template is the immutable input describing a station prototype.
type Template struct {
	BaseName                      string                    `json:"baseName"`
	SupervisionURLs               []string                  `json:"supervisionUrls"`
	SupervisionUser               string                    `json:"supervisionUser,omitempty"`
	SupervisionPassword           string                    `json:"supervisionPassword,omitempty"`
	OCPPVersion                   ocpp.Version              `json:"ocppVersion"`
	ChargePointModel              string                    `json:"chargePointModel"`
	ChargePointVendor             string                    `json:"chargePointVendor"`
	FirmwareVersion               string                    `json:"firmwareVersion,omitempty"`
	ChargePointSerialNumberPrefix string                    `json:"chargePointSerialNumberPrefix,omitempty"`
	MaximumPower                  float64                   `json:"maximumPower"` // W
	PowerSharedByConnectors       bool                      `json:"powerSharedByConnectors,omitempty"`
	VoltageOut                    float64                   `json:"voltageOut,omitempty"`
	NumberOfPhases                int                       `json:"numberOfPhases,omitempty"`
	Connectors                    map[int]ConnectorTemplate `json:"Connectors,omitempty"`
	Evses                         map[int]EvseTemplate      `json:"Evses,omitempty"`
	AutomaticTransactionGenerator *ATGConfig                `json:"AutomaticTransactionGenerator,omitempty"`
	OCPPStrictCompliance          bool                      `json:"ocppStrictCompliance"`
	AuthorizeRemoteTxRequests     bool                      `json:"authorizeRemoteTxRequests"`
	LocalAuthListEnabled          bool                      `json:"localAuthListEnabled"`
	AuthCacheEnabled              bool                      `json:"authCacheEnabled"`
	AllowOffline                  bool                      `json:"allowOfflineTxForUnknownId"`
	MessageTimeout                float64                   `json:"messageTimeout,omitempty"` // seconds
	AutoReconnectMaxRetries       int                       `json:"autoReconnectMaxRetries,omitempty"`
	ReconnectExponentialDelay     bool                      `json:"reconnectExponentialDelay,omitempty"`
	HeartbeatInterval             int                       `json:"heartbeatInterval,omitempty"` // seconds, pre-boot default
	IdTags                        []string                  `json:"idTags,omitempty"`
	Commands                      map[string]bool           `json:"commandsSupport,omitempty"`
}

// Hash returns the SHA-256 content hash of the template, used as the LRU
// cache key and as the base of station hash ids.
func (t *Template) Hash() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("hash template: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashID derives a stable station identity from the template hash and the
// instance index. Two runs over the same template produce the same ids.
func HashID(templateHash string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", templateHash, index)))
	return hex.EncodeToString(sum[:16])
}

// StationName returns the display name of instance index of this template.
func (t *Template) StationName(index int) string {
	return fmt.Sprintf("%s-%06d", t.BaseName, index)
}

// ConnectorCount returns the number of chargeable connectors, regardless of
// whether the template is connector-shaped (1.6) or EVSE-shaped (2.0.1).
func (t *Template) ConnectorCount() int {
	if len(t.Evses) > 0 {
		n := 0
		for _, evse := range t.Evses {
			n += len(evse.Connectors)
		}
		return n
	}
	n := 0
	for id := range t.Connectors {
		if id > 0 {
			n++
		}
	}
	return n
}

// Validate rejects templates the core cannot run.
func (t *Template) Validate() error {
	if t.BaseName == "" {
		return fmt.Errorf("template: baseName is required")
	}
	if len(t.SupervisionURLs) == 0 {
		return fmt.Errorf("template %s: at least one supervision url is required", t.BaseName)
	}
	switch t.OCPPVersion {
	case ocpp.V16, ocpp.V201:
	default:
		return fmt.Errorf("template %s: unsupported ocpp version %q", t.BaseName, t.OCPPVersion)
	}
	if t.OCPPVersion == ocpp.V201 && len(t.Evses) == 0 {
		return fmt.Errorf("template %s: ocpp 2.0.1 requires Evses", t.BaseName)
	}
	if t.OCPPVersion == ocpp.V16 && len(t.Connectors) == 0 {
		return fmt.Errorf("template %s: ocpp 1.6 requires Connectors", t.BaseName)
	}
	if t.MaximumPower <= 0 {
		return fmt.Errorf("template %s: maximumPower must be positive", t.BaseName)
	}
	return nil
}

// Load reads and validates a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	applyDefaults(&t)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func applyDefaults(t *Template) {
	if t.VoltageOut == 0 {
		t.VoltageOut = 230
	}
	if t.NumberOfPhases == 0 {
		t.NumberOfPhases = 3
	}
	if t.MessageTimeout == 0 {
		t.MessageTimeout = 30
	}
	if t.HeartbeatInterval == 0 {
		t.HeartbeatInterval = 60
	}
	if t.AutoReconnectMaxRetries == 0 {
		t.AutoReconnectMaxRetries = -1
	}
}
