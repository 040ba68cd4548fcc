package domain

// CertificateRecord describes the keypair backing one TLS site.
type CertificateRecord struct {
	Domain   string
	KeyPath  string
	CertPath string
	Existed  bool
	Backend  string // empty when skipped
}
