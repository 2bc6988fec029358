package evidence

import (
	"bytes"
	"fmt"
	"text/template"
)

// certificateTemplate renders the custody certificate handed to the
// citizen: a human-readable account of the verification, anchored by
// the verification hash so it can be checked against the stored record.
var certificateTemplate = template.Must(template.New("custody").Parse(
	`CERTIFICADO DE CUSTÓDIA / CERTIFICATE OF CUSTODY
================================================

Submission:   {{.SubmissionID}}
Petition:     {{.PetitionID}}
Signer:       {{.Signer.DisplayName}}
Assurance:    {{.Signer.AssuranceLevel}}
Issuer:       {{.Signer.Issuer}}
Verdict:      {{.Verdict}}{{if .Reason}} ({{.Reason}}){{end}}
Issued at:    {{.CreatedAt.Format "2006-01-02 15:04:05 MST"}}

Verification steps:
{{- range .Steps}}
  [{{.Status}}] {{.Name}}{{if .Reason}} - {{.Reason}}{{end}}
{{- end}}

Chain of custody:
{{- range .Custody}}
  {{.At.Format "2006-01-02 15:04:05"}}  {{.Event}}  ({{.Actor}}){{if .Detail}} {{.Detail}}{{end}}
{{- end}}

Verification hash (SHA-256):
  {{.VerificationHash}}

This certificate can be re-verified at any time by comparing the hash
above against the stored evidence record.
`))

// RenderCertificate renders the custody certificate for a sealed record.
func RenderCertificate(r *Record) ([]byte, error) {
	if r.VerificationHash == "" {
		return nil, fmt.Errorf("record %s is not sealed", r.ID)
	}
	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render custody certificate: %w", err)
	}
	return buf.Bytes(), nil
}
