// Package service implements submission intake: form validation,
// identifier hashing and creation of the pending submission the
// verification worker later picks up.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"peticao/internal/identity"
	"peticao/internal/submission/models"
	petitionstore "peticao/internal/submission/store/petition"
	submissionstore "peticao/internal/submission/store/submission"
	id "peticao/pkg/domain"
	dErrors "peticao/pkg/domain-errors"
	"peticao/pkg/platform/sentinel"
	"peticao/pkg/requestcontext"
)

// Service accepts uploads and exposes submission state to handlers.
type Service struct {
	submissions    submissionstore.Store
	petitions      petitionstore.Store
	maxUploadBytes int64
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxUploadBytes overrides the upload size ceiling.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) { s.maxUploadBytes = n }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the intake service.
func NewService(submissions submissionstore.Store, petitions petitionstore.Store, opts ...Option) *Service {
	s := &Service{
		submissions:    submissions,
		petitions:      petitions,
		maxUploadBytes: 10 << 20,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AcceptRequest is the upload form plus the document bytes.
type AcceptRequest struct {
	PetitionID id.PetitionID
	Name       string
	CPF        string
	Email      string
	City       string
	State      string
	Document   []byte
}

// Accept validates the form, hashes all personal identifiers and
// creates a pending submission. The raw CPF and client IP never leave
// this function.
func (s *Service) Accept(ctx context.Context, req AcceptRequest) (*models.Submission, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if !identity.ValidCPF(req.CPF) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid CPF")
	}
	if len(req.Document) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document is required")
	}
	if int64(len(req.Document)) > s.maxUploadBytes {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("document exceeds %d byte limit", s.maxUploadBytes))
	}

	if _, err := s.petitions.Get(ctx, req.PetitionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "petition not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "petition lookup failed")
	}

	now := s.now()
	sub := &models.Submission{
		ID:         id.NewSubmissionID(),
		PetitionID: req.PetitionID,
		Status:     models.StatusPending,
		Claimed: models.ClaimedIdentity{
			Name:    strings.TrimSpace(req.Name),
			CPFHash: identity.HashCPF(req.CPF),
			Email:   strings.TrimSpace(req.Email),
			City:    strings.TrimSpace(req.City),
			State:   strings.ToUpper(strings.TrimSpace(req.State)),
		},
		Document:         req.Document,
		UserAgentSummary: SummarizeUserAgent(requestcontext.UserAgent(ctx)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		sub.IPHash = models.HashIdentifier(ip)
	}

	if err := s.submissions.Create(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "submission already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "submission not stored")
	}

	s.logger.InfoContext(ctx, "submission accepted",
		slog.String("submission_id", sub.ID.String()),
		slog.String("petition_id", sub.PetitionID.String()),
		slog.Int("document_bytes", len(sub.Document)),
	)
	return sub, nil
}

// Get returns a submission by ID.
func (s *Service) Get(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	sub, err := s.submissions.Get(ctx, subID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "submission not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "submission lookup failed")
	}
	return sub, nil
}

// SummarizeUserAgent reduces a raw User-Agent header to a short
// browser/platform summary. The raw header is never stored.
func SummarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return "unknown"
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := ua.OS(); os != "" {
		summary += " on " + os
	}
	if ua.Mobile() {
		summary += " (mobile)"
	}
	return summary
}
