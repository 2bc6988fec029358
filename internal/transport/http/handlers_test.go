package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"peticao/internal/evidence"
	"peticao/internal/identity"
	"peticao/internal/submission/models"
	"peticao/internal/submission/service"
	petitionstore "peticao/internal/submission/store/petition"
	submissionstore "peticao/internal/submission/store/submission"
	id "peticao/pkg/domain"
)

const testCPF = "52998224725"

type HandlerSuite struct {
	suite.Suite
	ctx         context.Context
	submissions *submissionstore.MemoryStore
	petitions   *petitionstore.MemoryStore
	evidences   *evidence.MemoryStore
	petitionID  id.PetitionID
	signingKey  []byte
	router      http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.submissions = submissionstore.NewMemoryStore()
	s.petitions = petitionstore.NewMemoryStore()
	s.evidences = evidence.NewMemoryStore()
	s.petitionID = id.NewPetitionID()
	s.petitions.Put(&models.Petition{ID: s.petitionID, Title: "Teste"})
	s.signingKey = []byte("handler-test-key")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	intake := service.NewService(s.submissions, s.petitions, service.WithLogger(logger))
	handler := NewHandler(intake, s.evidences, s.signingKey, 10<<20, logger)
	s.router = NewRouter(handler, logger)
}

func (s *HandlerSuite) submitRequest(fields map[string]string, doc []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, value := range fields {
		s.Require().NoError(mw.WriteField(key, value))
	}
	if doc != nil {
		part, err := mw.CreateFormFile("document", "assinado.pdf")
		s.Require().NoError(err)
		_, err = part.Write(doc)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/signatures", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *HandlerSuite) validFields() map[string]string {
	return map[string]string{
		"petition_id": s.petitionID.String(),
		"name":        "Maria Silva",
		"cpf":         testCPF,
		"email":       "maria@example.com",
		"city":        "Recife",
		"state":       "PE",
	}
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v))
}

// approvedSubmission creates a submission and walks it to approved with
// a sealed evidence record.
func (s *HandlerSuite) approvedSubmission() *models.Submission {
	sub := &models.Submission{
		ID:         id.NewSubmissionID(),
		PetitionID: s.petitionID,
		Status:     models.StatusPending,
		Claimed: models.ClaimedIdentity{
			Name:    "Maria Silva",
			CPFHash: identity.HashCPF(testCPF),
		},
		Document:  []byte("%PDF-1.7"),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.submissions.Create(s.ctx, sub))
	s.Require().NoError(s.submissions.SetProcessing(s.ctx, sub.ID))
	s.Require().NoError(s.submissions.Approve(s.ctx, sub.ID))

	rec := &evidence.Record{
		ID:           id.NewEvidenceID(),
		SubmissionID: sub.ID,
		PetitionID:   sub.PetitionID,
		CreatedAt:    time.Now().UTC(),
		Verdict:      "approved",
		Steps:        []evidence.StepRecord{{Name: "document_validation", Status: "pass"}},
		Signer:       evidence.SignerRecord{DisplayName: "Maria S.", CPFHash: sub.Claimed.CPFHash},
	}
	rec.AppendCustody(time.Now(), evidence.EventApproved, "worker", "", "")
	s.Require().NoError(rec.Seal())
	s.Require().NoError(s.evidences.Save(s.ctx, rec))
	return sub
}

// ==============================
// Intake
// ==============================

func (s *HandlerSuite) TestSubmitAccepted() {
	rr := s.do(s.submitRequest(s.validFields(), []byte("%PDF-1.7 doc")))
	s.Require().Equal(http.StatusAccepted, rr.Code, rr.Body.String())

	var resp submissionResponse
	s.decode(rr, &resp)
	s.Equal("pending", resp.Status)
	s.Equal("Maria S.", resp.DisplayName)
	s.Empty(resp.CertificateToken)

	subID, err := id.ParseSubmissionID(resp.SubmissionID)
	s.Require().NoError(err)
	stored, err := s.submissions.Get(s.ctx, subID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
}

func (s *HandlerSuite) TestSubmitRejectsInvalidCPF() {
	fields := s.validFields()
	fields["cpf"] = "12345678900"
	rr := s.do(s.submitRequest(fields, []byte("%PDF-1.7")))
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestSubmitRequiresDocument() {
	rr := s.do(s.submitRequest(s.validFields(), nil))
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestSubmitUnknownPetition() {
	fields := s.validFields()
	fields["petition_id"] = id.NewPetitionID().String()
	rr := s.do(s.submitRequest(fields, []byte("%PDF-1.7")))
	s.Equal(http.StatusNotFound, rr.Code)
}

// ==============================
// Status
// ==============================

func (s *HandlerSuite) TestStatusPendingHasNoToken() {
	rr := s.do(s.submitRequest(s.validFields(), []byte("%PDF-1.7")))
	var created submissionResponse
	s.decode(rr, &created)

	rr = s.do(httptest.NewRequest(http.MethodGet, "/signatures/"+created.SubmissionID, nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp submissionResponse
	s.decode(rr, &resp)
	s.Equal("pending", resp.Status)
	s.Empty(resp.CertificateToken)
}

func (s *HandlerSuite) TestStatusApprovedIncludesToken() {
	sub := s.approvedSubmission()

	rr := s.do(httptest.NewRequest(http.MethodGet, "/signatures/"+sub.ID.String(), nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	var resp submissionResponse
	s.decode(rr, &resp)
	s.Equal("approved", resp.Status)
	s.NotEmpty(resp.CertificateToken)
}

func (s *HandlerSuite) TestStatusUnknownSubmission() {
	rr := s.do(httptest.NewRequest(http.MethodGet, "/signatures/"+id.NewSubmissionID().String(), nil))
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestStatusMalformedID() {
	rr := s.do(httptest.NewRequest(http.MethodGet, "/signatures/not-a-uuid", nil))
	s.Equal(http.StatusBadRequest, rr.Code)
}

// ==============================
// Custody certificate
// ==============================

func (s *HandlerSuite) TestCertificateDownload() {
	sub := s.approvedSubmission()
	token, err := evidence.IssueDownloadToken(s.signingKey, sub.ID, time.Minute)
	s.Require().NoError(err)

	rr := s.do(httptest.NewRequest(http.MethodGet,
		"/signatures/"+sub.ID.String()+"/certificate?token="+token, nil))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	s.Contains(rr.Header().Get("Content-Type"), "text/plain")
	s.Contains(rr.Body.String(), "CERTIFICADO DE CUSTÓDIA")
	s.Contains(rr.Body.String(), sub.ID.String())
}

func (s *HandlerSuite) TestCertificateRejectsMissingToken() {
	sub := s.approvedSubmission()
	rr := s.do(httptest.NewRequest(http.MethodGet,
		"/signatures/"+sub.ID.String()+"/certificate", nil))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *HandlerSuite) TestCertificateRejectsForeignToken() {
	sub := s.approvedSubmission()
	token, err := evidence.IssueDownloadToken(s.signingKey, id.NewSubmissionID(), time.Minute)
	s.Require().NoError(err)

	rr := s.do(httptest.NewRequest(http.MethodGet,
		"/signatures/"+sub.ID.String()+"/certificate?token="+token, nil))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *HandlerSuite) TestCertificateRejectsExpiredToken() {
	sub := s.approvedSubmission()
	token, err := evidence.IssueDownloadToken(s.signingKey, sub.ID, -time.Minute)
	s.Require().NoError(err)

	rr := s.do(httptest.NewRequest(http.MethodGet,
		"/signatures/"+sub.ID.String()+"/certificate?token="+token, nil))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

// ==============================
// Public re-verification
// ==============================

func (s *HandlerSuite) TestReverifyMatches() {
	sub := s.approvedSubmission()

	rr := s.do(httptest.NewRequest(http.MethodGet, "/verify-certificate/"+sub.ID.String(), nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	var result evidence.ReverifyResult
	s.decode(rr, &result)
	s.True(result.Match)
	s.Equal(result.Stored, result.Recomputed)
}

func (s *HandlerSuite) TestReverifyDetectsTamperedRecord() {
	sub := s.approvedSubmission()

	// Store a second record variant with a forged hash under another
	// submission to prove divergence is reported, not masked.
	rec := &evidence.Record{
		ID:           id.NewEvidenceID(),
		SubmissionID: id.NewSubmissionID(),
		PetitionID:   s.petitionID,
		CreatedAt:    time.Now().UTC(),
		Verdict:      "approved",
	}
	s.Require().NoError(rec.Seal())
	rec.Verdict = "rejected"
	s.Require().NoError(s.evidences.Save(s.ctx, rec))

	rr := s.do(httptest.NewRequest(http.MethodGet, "/verify-certificate/"+rec.SubmissionID.String(), nil))
	s.Require().Equal(http.StatusOK, rr.Code)

	var result evidence.ReverifyResult
	s.decode(rr, &result)
	s.False(result.Match)

	// The untouched record still verifies.
	rr = s.do(httptest.NewRequest(http.MethodGet, "/verify-certificate/"+sub.ID.String(), nil))
	var clean evidence.ReverifyResult
	s.decode(rr, &clean)
	s.True(clean.Match)
}

func (s *HandlerSuite) TestReverifyUnknownSubmission() {
	rr := s.do(httptest.NewRequest(http.MethodGet, "/verify-certificate/"+id.NewSubmissionID().String(), nil))
	s.Equal(http.StatusNotFound, rr.Code)
}

// ==============================
// Probes
// ==============================

func (s *HandlerSuite) TestHealthz() {
	rr := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestMetricsExposed() {
	rr := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rr.Code)
}
