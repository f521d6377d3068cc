// Package ports defines the contracts between the simulator core and its
// external collaborators: persistence, template loading and certificate
// cryptography live outside the core.
package ports

import (
	"context"

	"github.com/voltbench/ocpp-sim/internal/domain"
	"github.com/voltbench/ocpp-sim/internal/template"
)

// ConfigurationStore persists per-station derived configuration.
type ConfigurationStore interface {
	// Load returns the stored configuration for a station, or nil when none
	// exists yet.
	Load(hashId string) (*domain.StationConfiguration, error)
	Save(hashId string, cfg *domain.StationConfiguration) error
}

// TemplateLoader resolves template files into validated prototypes.
type TemplateLoader interface {
	LoadTemplate(path string) (*template.Template, error)
}

// CertificateManager handles the certificate operations the 2.0.1 security
// profile delegates out of the core. Implementations own CSR generation and
// key storage.
type CertificateManager interface {
	// GenerateCSR returns a PEM CSR for the station identity.
	GenerateCSR(ctx context.Context, stationName string) (string, error)
	// InstallChain stores a signed certificate chain. Installing a
	// ChargingStationCertificate changes the station's TLS identity.
	InstallChain(ctx context.Context, certificateType string, chain string) error
	// Install stores a root or intermediate certificate.
	Install(ctx context.Context, certificateType string, certificate string) error
	// Delete removes a certificate by its hash data, reporting whether it
	// existed.
	Delete(ctx context.Context, hash domain.CertificateHash) (bool, error)
}

// IdTagProvider supplies the identifier pool the ATG draws from.
type IdTagProvider interface {
	IdTags() []string
}
