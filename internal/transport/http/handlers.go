// Package httptransport exposes the verifier over HTTP: submission
// intake, status lookup, the custody certificate download and the
// public evidence re-verification endpoint.
package httptransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"peticao/internal/evidence"
	"peticao/internal/submission/models"
	"peticao/internal/submission/service"
	id "peticao/pkg/domain"
	dErrors "peticao/pkg/domain-errors"
	"peticao/pkg/platform/httputil"
	"peticao/pkg/platform/sentinel"
)

// multipartMemory bounds how much of an upload is buffered in memory
// before spilling to disk.
const multipartMemory = 1 << 20

// Handler wires the verifier endpoints to the intake service and the
// evidence store.
type Handler struct {
	intake         *service.Service
	evidences      evidence.Store
	signingKey     []byte
	tokenTTL       time.Duration
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(intake *service.Service, evidences evidence.Store, signingKey []byte, maxUploadBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		intake:         intake,
		evidences:      evidences,
		signingKey:     signingKey,
		tokenTTL:       15 * time.Minute,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Register mounts the verifier endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signatures", h.handleSubmit)
	r.Get("/signatures/{id}", h.handleStatus)
	r.Get("/signatures/{id}/certificate", h.handleCertificate)
	r.Get("/verify-certificate/{id}", h.handleReverify)
}

type submissionResponse struct {
	SubmissionID string `json:"submission_id"`
	PetitionID   string `json:"petition_id"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	DisplayName  string `json:"display_name"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`

	// CertificateToken grants time-limited access to the custody
	// certificate; present only once the submission is approved.
	CertificateToken string `json:"certificate_token,omitempty"`
}

func toSubmissionResponse(sub *models.Submission) submissionResponse {
	return submissionResponse{
		SubmissionID: sub.ID.String(),
		PetitionID:   sub.PetitionID.String(),
		Status:       string(sub.Status),
		Reason:       sub.Reason,
		DisplayName:  sub.Claimed.DisplayName(),
		CreatedAt:    sub.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    sub.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleSubmit accepts a multipart upload: the signed document plus the
// claimed identity form fields.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Cap the whole request body; the service enforces the document
	// limit precisely, this guards against oversized form payloads.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed multipart upload"))
		return
	}

	petitionID, err := id.ParsePetitionID(r.FormValue("petition_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	file, _, err := r.FormFile("document")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document file is required"))
		return
	}
	defer file.Close()
	doc, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "document could not be read"))
		return
	}

	sub, err := h.intake.Accept(ctx, service.AcceptRequest{
		PetitionID: petitionID,
		Name:       r.FormValue("name"),
		CPF:        r.FormValue("cpf"),
		Email:      r.FormValue("email"),
		City:       r.FormValue("city"),
		State:      r.FormValue("state"),
		Document:   doc,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, toSubmissionResponse(sub))
}

// handleStatus returns the submission state; once approved, it includes
// a short-lived token for the custody certificate download.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.intake.Get(ctx, subID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := toSubmissionResponse(sub)
	if sub.Status == models.StatusApproved {
		token, terr := evidence.IssueDownloadToken(h.signingKey, sub.ID, h.tokenTTL)
		if terr != nil {
			h.logger.ErrorContext(ctx, "download token issue failed", slog.Any("error", terr))
		} else {
			resp.CertificateToken = token
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleCertificate serves the rendered custody certificate. Access is
// gated by the download token issued on the status endpoint.
func (h *Handler) handleCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tokenSub, err := evidence.VerifyDownloadToken(h.signingKey, r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, sentinel.ErrExpired) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "download token expired"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid download token"))
		return
	}
	if tokenSub != subID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token does not match submission"))
		return
	}

	rec, err := h.evidences.GetBySubmission(ctx, subID)
	if errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no evidence for submission"))
		return
	}
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "evidence lookup failed"))
		return
	}

	artifact, err := evidence.RenderCertificate(rec)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "certificate rendering failed"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="certificado-custodia.txt"`)
	_, _ = w.Write(artifact)
}

// handleReverify is the public tamper check: it recomputes the stored
// record's hash and reports whether it still matches.
func (h *Handler) handleReverify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subID, err := id.ParseSubmissionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.evidences.GetBySubmission(ctx, subID)
	if errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no evidence for submission"))
		return
	}
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "evidence lookup failed"))
		return
	}

	result, err := evidence.Reverify(rec)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "re-verification failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
