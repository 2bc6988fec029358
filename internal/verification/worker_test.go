package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"peticao/internal/identity"
	"peticao/internal/submission/models"
	id "peticao/pkg/domain"
)

type WorkerSuite struct {
	suite.Suite
	ctx context.Context
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *WorkerSuite) orchestratorSuite() *OrchestratorSuite {
	os := &OrchestratorSuite{ctx: s.ctx}
	os.SetT(s.T())
	return os
}

func (s *WorkerSuite) TestSweepProcessesPendingBatch() {
	helper := s.orchestratorSuite()
	env := helper.newEnv()
	helper.seedSnapshot(env, nil)
	signed := helper.qualifiedSigner(env).SignPDF(s.T(), env.petition.ReferenceText)

	sub := newPendingSubmission(s, env, signed)

	worker := NewWorker(env.orch, env.submissions, WithConcurrency(2), WithBatchSize(10))
	worker.Sweep(s.ctx)

	stored, err := env.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
}

func (s *WorkerSuite) TestSweepSkipsAlreadyClaimed() {
	helper := s.orchestratorSuite()
	env := helper.newEnv()
	helper.seedSnapshot(env, nil)
	signed := helper.qualifiedSigner(env).SignPDF(s.T(), env.petition.ReferenceText)

	sub := newPendingSubmission(s, env, signed)
	// Another worker instance claims between list and claim.
	s.Require().NoError(env.submissions.SetProcessing(s.ctx, sub.ID))

	worker := NewWorker(env.orch, env.submissions)
	worker.Sweep(s.ctx)

	stored, err := env.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessing, stored.Status,
		"a claimed submission is left to its claimer")
}

func (s *WorkerSuite) TestFaultRequeuesWithAttemptCount() {
	helper := s.orchestratorSuite()
	env := helper.newEnv()
	signed := helper.qualifiedSigner(env).SignPDF(s.T(), env.petition.ReferenceText)

	sub := newPendingSubmission(s, env, signed)
	// Remove the petition so processing faults.
	env.petitions.Remove(env.petition.ID)

	worker := NewWorker(env.orch, env.submissions, WithMaxAttempts(3))
	worker.Sweep(s.ctx)

	stored, err := env.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)
	s.Equal(1, stored.Attempts)
}

func (s *WorkerSuite) TestFaultBudgetExhaustedGoesToManualReview() {
	helper := s.orchestratorSuite()
	env := helper.newEnv()
	signed := helper.qualifiedSigner(env).SignPDF(s.T(), env.petition.ReferenceText)

	sub := newPendingSubmission(s, env, signed)
	env.petitions.Remove(env.petition.ID)

	worker := NewWorker(env.orch, env.submissions, WithMaxAttempts(2))
	worker.Sweep(s.ctx) // attempt 1: requeued
	worker.Sweep(s.ctx) // attempt 2: budget spent

	stored, err := env.submissions.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusManualReview, stored.Status,
		"a fault never silently approves or rejects")
	s.Equal(ReasonProcessingFault, stored.Reason)
}

func (s *WorkerSuite) TestRunStopsOnContextCancel() {
	helper := s.orchestratorSuite()
	env := helper.newEnv()

	worker := NewWorker(env.orch, env.submissions, WithSweepInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(s.ctx)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("worker did not stop on context cancellation")
	}
}

func newPendingSubmission(s *WorkerSuite, env *pipelineEnv, doc []byte) *models.Submission {
	sub := &models.Submission{
		ID:         id.NewSubmissionID(),
		PetitionID: env.petition.ID,
		Status:     models.StatusPending,
		Claimed: models.ClaimedIdentity{
			Name:    signerName,
			CPFHash: identity.HashCPF(signerCPF),
		},
		Document:  doc,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(env.submissions.Create(s.ctx, sub))
	return sub
}
