package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Trust describes the certificate authorities the verifier accepts:
// root certificate paths plus known revocation endpoints per authority.
type Trust struct {
	// RootPaths are PEM files containing trusted root and intermediate
	// certificates (the ICP-Brasil chain bundle in production).
	RootPaths []string `yaml:"roots"`

	// Authorities maps an authority key to its known endpoints. Keys are
	// normalized issuer names; aliases let a configured entry match
	// several issuer spellings.
	Authorities map[string]AuthorityTrust `yaml:"authorities"`

	// OCSPTimeoutSeconds bounds each live OCSP query. Zero means the
	// revocation fetch timeout applies.
	OCSPTimeoutSeconds int `yaml:"ocsp_timeout_seconds"`
}

// AuthorityTrust holds the configured endpoints for one authority.
type AuthorityTrust struct {
	CRLURLs []string `yaml:"crl_urls"`
	OCSPURL string   `yaml:"ocsp_url"`
	Aliases []string `yaml:"aliases"`
}

// LoadTrust reads and validates a YAML trust file.
func LoadTrust(path string) (Trust, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Trust{}, fmt.Errorf("read trust file: %w", err)
	}

	var t Trust
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Trust{}, fmt.Errorf("parse trust file: %w", err)
	}

	if len(t.RootPaths) == 0 {
		return Trust{}, fmt.Errorf("trust file %s lists no root certificates", path)
	}
	for key, auth := range t.Authorities {
		if len(auth.CRLURLs) == 0 && auth.OCSPURL == "" {
			return Trust{}, fmt.Errorf("authority %q has no CRL or OCSP endpoint", key)
		}
	}
	return t, nil
}
