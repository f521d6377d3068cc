package auth

import "context"

// CertificateAuthProvider validates a presented contract certificate. The
// cryptography lives outside the core.
type CertificateAuthProvider interface {
	ValidateCertificate(ctx context.Context, pem string) (Status, error)
}

// CertificateStrategy authorizes via an injected certificate validator. It
// only engages when the request carries a certificate.
type CertificateStrategy struct {
	provider CertificateAuthProvider
}

func NewCertificateStrategy(provider CertificateAuthProvider) *CertificateStrategy {
	return &CertificateStrategy{provider: provider}
}

func (s *CertificateStrategy) Name() string  { return "certificate" }
func (s *CertificateStrategy) Priority() int { return PriorityCertificate }

func (s *CertificateStrategy) CanHandle(req *Request) bool {
	return s.provider != nil && req.Certificate != ""
}

func (s *CertificateStrategy) Authorize(ctx context.Context, req *Request) (*Result, error) {
	status, err := s.provider.ValidateCertificate(ctx, req.Certificate)
	if err != nil {
		return nil, err
	}
	return &Result{Status: status}, nil
}
