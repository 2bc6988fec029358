package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTrustFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trust.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadTrust(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := writeTrustFile(t, `
roots:
  - /etc/peticao/icp-brasil-bundle.pem
authorities:
  ac-exemplo:
    crl_urls:
      - http://crl.example.test/ac-exemplo.crl
    ocsp_url: http://ocsp.example.test
    aliases:
      - AC Exemplo RFB
ocsp_timeout_seconds: 10
`)
		trust, err := LoadTrust(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"/etc/peticao/icp-brasil-bundle.pem"}, trust.RootPaths)
		assert.Len(t, trust.Authorities["ac-exemplo"].CRLURLs, 1)
		assert.Equal(t, 10, trust.OCSPTimeoutSeconds)
	})

	t.Run("missing roots rejected", func(t *testing.T) {
		path := writeTrustFile(t, `
authorities:
  ac-exemplo:
    crl_urls: [http://crl.example.test/a.crl]
`)
		_, err := LoadTrust(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no root certificates")
	})

	t.Run("authority without endpoints rejected", func(t *testing.T) {
		path := writeTrustFile(t, `
roots: [/tmp/bundle.pem]
authorities:
  ac-exemplo: {}
`)
		_, err := LoadTrust(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTrust(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
