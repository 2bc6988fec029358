package signature

import (
	"crypto/x509"
	"fmt"
	"os"
)

// LoadRoots reads PEM bundle files into a certificate pool. Every path
// must yield at least one certificate; a trust store that silently
// loads empty would accept nothing and reject everything.
func LoadRoots(paths []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, path := range paths {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read root bundle %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in root bundle %s", path)
		}
	}
	return pool, nil
}
