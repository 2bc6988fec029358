package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"peticao/internal/identity"
	"peticao/internal/submission/models"
	petitionstore "peticao/internal/submission/store/petition"
	submissionstore "peticao/internal/submission/store/submission"
	id "peticao/pkg/domain"
	dErrors "peticao/pkg/domain-errors"
	"peticao/pkg/requestcontext"
)

const validCPF = "52998224725"

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	submissions *submissionstore.MemoryStore
	petitions   *petitionstore.MemoryStore
	service     *Service
	petitionID  id.PetitionID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.submissions = submissionstore.NewMemoryStore()
	s.petitions = petitionstore.NewMemoryStore()
	s.petitionID = id.NewPetitionID()
	s.petitions.Put(&models.Petition{ID: s.petitionID, Title: "Teste"})
	s.service = NewService(s.submissions, s.petitions, WithMaxUploadBytes(1024))
}

func (s *ServiceSuite) validRequest() AcceptRequest {
	return AcceptRequest{
		PetitionID: s.petitionID,
		Name:       "Maria Silva",
		CPF:        validCPF,
		Email:      "maria@example.com",
		City:       "Recife",
		State:      "pe",
		Document:   []byte("%PDF-1.7 fake"),
	}
}

// ==============================
// Accept
// ==============================

func (s *ServiceSuite) TestAcceptCreatesPendingSubmission() {
	sub, err := s.service.Accept(s.ctx, s.validRequest())
	s.Require().NoError(err)

	s.Equal(models.StatusPending, sub.Status)
	s.Equal("Maria Silva", sub.Claimed.Name)
	s.Equal("PE", sub.Claimed.State)
	s.Equal(identity.HashCPF(validCPF), sub.Claimed.CPFHash)

	stored, err := s.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, stored.ID)
}

func (s *ServiceSuite) TestAcceptNeverStoresRawCPF() {
	sub, err := s.service.Accept(s.ctx, s.validRequest())
	s.Require().NoError(err)
	s.NotContains(sub.Claimed.CPFHash, validCPF)
	s.Len(sub.Claimed.CPFHash, 64)
}

func (s *ServiceSuite) TestAcceptHashesClientIP() {
	ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.7", "")
	sub, err := s.service.Accept(ctx, s.validRequest())
	s.Require().NoError(err)
	s.Equal(models.HashIdentifier("203.0.113.7"), sub.IPHash)
	s.NotContains(sub.IPHash, "203.0.113.7")
}

func (s *ServiceSuite) TestAcceptSummarizesUserAgent() {
	const chrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	ctx := requestcontext.WithClientMetadata(s.ctx, "", chrome)
	sub, err := s.service.Accept(ctx, s.validRequest())
	s.Require().NoError(err)
	s.Contains(sub.UserAgentSummary, "Chrome")
	s.NotEqual(chrome, sub.UserAgentSummary)
}

// ==============================
// Validation
// ==============================

func (s *ServiceSuite) TestAcceptRejectsInvalidCPF() {
	for _, cpf := range []string{"", "123", "11111111111", "52998224726"} {
		s.Run(cpf, func() {
			req := s.validRequest()
			req.CPF = cpf
			_, err := s.service.Accept(s.ctx, req)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "cpf %q", cpf)
		})
	}
}

func (s *ServiceSuite) TestAcceptRejectsMissingName() {
	req := s.validRequest()
	req.Name = "   "
	_, err := s.service.Accept(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestAcceptRejectsEmptyDocument() {
	req := s.validRequest()
	req.Document = nil
	_, err := s.service.Accept(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestAcceptRejectsOversizedDocument() {
	req := s.validRequest()
	req.Document = make([]byte, 2048)
	_, err := s.service.Accept(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestAcceptRejectsUnknownPetition() {
	req := s.validRequest()
	req.PetitionID = id.NewPetitionID()
	_, err := s.service.Accept(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// ==============================
// Get
// ==============================

func (s *ServiceSuite) TestGetReturnsSubmission() {
	sub, err := s.service.Accept(s.ctx, s.validRequest())
	s.Require().NoError(err)

	got, err := s.service.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, got.ID)
}

func (s *ServiceSuite) TestGetUnknownSubmission() {
	_, err := s.service.Get(s.ctx, id.NewSubmissionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// ==============================
// User agent summaries
// ==============================

func (s *ServiceSuite) TestSummarizeUserAgent() {
	s.Empty(SummarizeUserAgent(""))
	s.Equal("unknown", SummarizeUserAgent("definitely-not-a-browser"))

	summary := SummarizeUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	s.Contains(summary, "Safari")
	s.Contains(summary, "(mobile)")
}
