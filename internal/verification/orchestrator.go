// Package verification runs the pipeline that decides each submission:
// structural checks, content integrity, signature and trust chain,
// revocation, identity cross-validation and duplicate detection, in a
// fixed order with the first failure deciding the verdict.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"peticao/internal/document"
	"peticao/internal/document/pdf"
	"peticao/internal/events"
	"peticao/internal/evidence"
	"peticao/internal/identity"
	"peticao/internal/revocation"
	"peticao/internal/signature"
	"peticao/internal/submission/models"
	petitionstore "peticao/internal/submission/store/petition"
	submissionstore "peticao/internal/submission/store/submission"
	"peticao/internal/verification/metrics"
	id "peticao/pkg/domain"
	"peticao/pkg/platform/sentinel"
)

// Step names as they appear in evidence, in pipeline order.
const (
	StepDocumentValidation  = "document_validation"
	StepContentIntegrity    = "content_integrity"
	StepReferenceIdentifier = "reference_identifier"
	StepSignatureValidation = "signature_validation"
	StepRevocationCheck     = "revocation_check"
	StepIdentityExtraction  = "identity_extraction"
	StepCrossValidation     = "cross_validation"
	StepDuplicateDetection  = "duplicate_detection"
	StepStructuralRecheck   = "structural_recheck"
)

// Step statuses.
const (
	StatusPass   = "pass"
	StatusFail   = "fail"
	StatusReview = "review"
)

// Reason codes attached to rejected and manual-review verdicts.
const (
	ReasonInvalidFormat      = "invalid_format"
	ReasonTooLarge           = "too_large"
	ReasonCorruptStructure   = "corrupt_structure"
	ReasonContentAltered     = "content_altered"
	ReasonReferenceMismatch  = "reference_mismatch"
	ReasonNotSigned          = "not_signed"
	ReasonSignatureInvalid   = "signature_invalid"
	ReasonUntrustedIssuer    = "untrusted_issuer"
	ReasonLevelTooLow        = "signature_level_too_low"
	ReasonCompanyCertificate = "company_certificate_not_accepted"
	ReasonRevoked            = "certificate_revoked"
	ReasonRevocationUnknown  = "revocation_unknown"
	ReasonIdentityExtraction = "identity_extraction_failed"
	ReasonIdentityMismatch   = "identity_mismatch"
	ReasonNameMismatch       = "name_mismatch"
	ReasonDuplicate          = "duplicate_submission"
)

// Outcome is the verdict reached for one submission.
type Outcome struct {
	Verdict models.Status
	Reason  string
	Record  *evidence.Record
}

// Orchestrator runs the verification pipeline. It holds no
// cross-submission state; Process is safe to call concurrently for
// different submissions.
type Orchestrator struct {
	documents   *document.Validator
	signatures  *signature.Validator
	revocations *revocation.Checker
	submissions submissionstore.Store
	petitions   petitionstore.Store
	evidences   evidence.Store
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPublisher attaches an event publisher.
func WithPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator wires the pipeline components.
func NewOrchestrator(
	documents *document.Validator,
	signatures *signature.Validator,
	revocations *revocation.Checker,
	submissions submissionstore.Store,
	petitions petitionstore.Store,
	evidences evidence.Store,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		documents:   documents,
		signatures:  signatures,
		revocations: revocations,
		submissions: submissions,
		petitions:   petitions,
		evidences:   evidences,
		publisher:   events.NoopPublisher{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("peticao/verification"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the full pipeline on a submission already claimed into
// the processing state, persists the verdict and evidence, and emits
// the completion event.
//
// A returned error is a system fault: no verdict was reached and the
// submission should be requeued. Verdict decisions, including
// rejections, return a nil error.
func (o *Orchestrator) Process(ctx context.Context, sub *models.Submission) (*Outcome, error) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "verification.process",
		trace.WithAttributes(attribute.String("submission_id", sub.ID.String())))
	defer span.End()
	defer func() { o.metrics.ObservePipeline(o.now().Sub(start)) }()

	log := o.logger.With(slog.String("submission_id", sub.ID.String()))

	pet, err := o.petitions.Get(ctx, sub.PetitionID)
	if err != nil {
		return nil, fmt.Errorf("load petition %s: %w", sub.PetitionID, err)
	}

	rec := o.newRecord(sub)

	// 1. Structural admission.
	var doc *pdf.Document
	if status, reason := o.runStep(ctx, rec, StepDocumentValidation, func(context.Context) (string, string) {
		var verr error
		doc, verr = o.documents.Validate(sub.Document)
		if verr != nil {
			return StatusFail, validationReason(verr)
		}
		return StatusPass, ""
	}); status == StatusFail {
		return o.finalize(ctx, log, sub, rec, nil, models.StatusRejected, reason)
	}

	// 2. Content integrity against the reference petition.
	var report document.IntegrityReport
	if status, reason := o.runStep(ctx, rec, StepContentIntegrity, func(context.Context) (string, string) {
		var ierr error
		report, ierr = document.CheckIntegrity(doc, pet.ReferenceText, pet.ReferenceSHA256, pet.ID.String())
		rec.Integrity = &report
		if ierr != nil {
			return StatusFail, ReasonContentAltered
		}
		return StatusPass, ""
	}); status == StatusFail {
		return o.finalize(ctx, log, sub, rec, nil, models.StatusRejected, reason)
	}

	// 3. The petition identifier must appear in the document itself.
	if status, reason := o.runStep(ctx, rec, StepReferenceIdentifier, func(context.Context) (string, string) {
		if !report.IdentifierFound {
			return StatusFail, ReasonReferenceMismatch
		}
		return StatusPass, ""
	}); status == StatusFail {
		return o.finalize(ctx, log, sub, rec, nil, models.StatusRejected, reason)
	}

	// 4. Signature, trust chain, assurance level.
	var sigRes *signature.Result
	if status, reason := o.runStep(ctx, rec, StepSignatureValidation, func(context.Context) (string, string) {
		var serr error
		sigRes, serr = o.signatures.Verify(doc, start)
		if serr != nil {
			return StatusFail, signatureReason(serr)
		}
		return StatusPass, ""
	}); status == StatusFail {
		return o.finalize(ctx, log, sub, rec, nil, models.StatusRejected, reason)
	}
	rec.Signer = signerRecord(sub, sigRes)

	// 5. Revocation.
	var revOut revocation.Outcome
	if status, reason := o.runStep(ctx, rec, StepRevocationCheck, func(stepCtx context.Context) (string, string) {
		revOut = o.revocations.Check(stepCtx, sigRes.Certificate, sigRes.Issuer)
		rec.Revocation = &revOut
		o.metrics.IncrementRevocationMethod(revOut.Method)
		switch {
		case revOut.Status == revocation.StatusRevoked:
			return StatusFail, ReasonRevoked
		case !revOut.Allowed:
			return StatusFail, ReasonRevocationUnknown
		case revOut.Warning != "":
			log.Warn("revocation check passed with warning",
				slog.String("warning", revOut.Warning),
				slog.String("method", revOut.Method))
		}
		return StatusPass, ""
	}); status == StatusFail {
		return o.finalize(ctx, log, sub, rec, nil, models.StatusRejected, reason)
	}

	// 6. Identity extraction from the signer certificate.
	var extracted identity.Extracted
	if status, reason := o.runStep(ctx, rec, StepIdentityExtraction, func(context.Context) (string, string) {
		var xerr error
		extracted, xerr = identity.FromCertificate(sigRes.Certificate)
		if xerr != nil {
			return StatusReview, ReasonIdentityExtraction
		}
		rec.Signer.IdentityMethod = extracted.Method
		return StatusPass, ""
	}); status == StatusReview {
		return o.finalize(ctx, log, sub, rec, nil, models.StatusManualReview, reason)
	}

	// 7. Cross-validation of claimed vs certificate identity.
	switch status, reason := o.runStep(ctx, rec, StepCrossValidation, func(context.Context) (string, string) {
		if !identity.CPFMatches(sub.Claimed.CPFHash, extracted.CPF) {
			return StatusFail, ReasonIdentityMismatch
		}
		score, verdict := identity.EvaluateName(sub.Claimed.Name, extracted.Name)
		rec.Signer.NameScore = score
		switch verdict {
		case identity.NameMismatch:
			return StatusReview, ReasonNameMismatch
		case identity.NameWarn:
			log.Warn("name similarity below strong threshold",
				slog.Float64("score", score))
		}
		return StatusPass, ""
	}); status {
	case StatusFail:
		return o.finalize(ctx, log, sub, rec, sigRes, models.StatusRejected, reason)
	case StatusReview:
		return o.finalize(ctx, log, sub, rec, sigRes, models.StatusManualReview, reason)
	}

	// 8. Duplicate detection. A store error here is a fault, not a verdict.
	var dupErr error
	if status, reason := o.runStep(ctx, rec, StepDuplicateDetection, func(stepCtx context.Context) (string, string) {
		n, cerr := o.submissions.CountApproved(stepCtx, sub.PetitionID, sub.Claimed.CPFHash)
		if cerr != nil {
			dupErr = fmt.Errorf("count approved submissions: %w", cerr)
			return StatusFail, ""
		}
		if n > 0 {
			return StatusFail, ReasonDuplicate
		}
		return StatusPass, ""
	}); status == StatusFail {
		if dupErr != nil {
			return nil, dupErr
		}
		return o.finalize(ctx, log, sub, rec, sigRes, models.StatusRejected, reason)
	}

	// 9. Structural re-scan, guarding against mid-flight mutation.
	if status, reason := o.runStep(ctx, rec, StepStructuralRecheck, func(context.Context) (string, string) {
		if rerr := o.documents.Recheck(doc); rerr != nil {
			return StatusFail, ReasonCorruptStructure
		}
		return StatusPass, ""
	}); status == StatusFail {
		return o.finalize(ctx, log, sub, rec, sigRes, models.StatusRejected, reason)
	}

	return o.finalize(ctx, log, sub, rec, sigRes, models.StatusApproved, "")
}

// runStep times and traces one pipeline step and appends its outcome to
// the evidence record.
func (o *Orchestrator) runStep(ctx context.Context, rec *evidence.Record, name string, fn func(context.Context) (string, string)) (string, string) {
	stepCtx, span := o.tracer.Start(ctx, "verification."+name)
	start := o.now()
	status, reason := fn(stepCtx)
	o.metrics.ObserveStep(name, o.now().Sub(start))
	span.SetAttributes(
		attribute.String("status", status),
		attribute.String("reason", reason),
	)
	span.End()
	rec.Steps = append(rec.Steps, evidence.StepRecord{Name: name, Status: status, Reason: reason})
	return status, reason
}

func (o *Orchestrator) newRecord(sub *models.Submission) *evidence.Record {
	rec := &evidence.Record{
		ID:           id.NewEvidenceID(),
		SubmissionID: sub.ID,
		PetitionID:   sub.PetitionID,
		CreatedAt:    o.now(),
		Signer: evidence.SignerRecord{
			DisplayName: sub.Claimed.DisplayName(),
			CPFHash:     sub.Claimed.CPFHash,
		},
	}
	rec.AppendCustody(sub.CreatedAt, evidence.EventReceived, "intake", "", "")
	rec.AppendCustody(o.now(), evidence.EventProcessingStarted, "verification-worker", "", "")
	return rec
}

// finalize commits the verdict: store transition first (the approve
// transition is the race-safe duplicate guard), then the sealed
// evidence record, then the completion event.
func (o *Orchestrator) finalize(
	ctx context.Context,
	log *slog.Logger,
	sub *models.Submission,
	rec *evidence.Record,
	sigRes *signature.Result,
	verdict models.Status,
	reason string,
) (*Outcome, error) {
	now := o.now()

	if verdict == models.StatusApproved {
		err := o.submissions.Approve(ctx, sub.ID)
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race to another approved submission for the same
			// petition and CPF.
			log.Info("approval lost duplicate race, rejecting")
			verdict, reason = models.StatusRejected, ReasonDuplicate
			rec.Steps = append(rec.Steps, evidence.StepRecord{
				Name: StepDuplicateDetection, Status: StatusFail, Reason: ReasonDuplicate,
			})
			err = o.submissions.Reject(ctx, sub.ID, reason)
		}
		if err != nil {
			return nil, fmt.Errorf("commit verdict %s: %w", verdict, err)
		}
	} else {
		var err error
		switch verdict {
		case models.StatusRejected:
			err = o.submissions.Reject(ctx, sub.ID, reason)
		case models.StatusManualReview:
			err = o.submissions.MarkManualReview(ctx, sub.ID, reason)
		}
		if err != nil {
			return nil, fmt.Errorf("commit verdict %s: %w", verdict, err)
		}
	}

	rec.Verdict = string(verdict)
	rec.Reason = reason
	rec.AppendCustody(now, evidence.EventProcessingCompleted, "verification-worker", "", "")
	rec.AppendCustody(now, custodyEvent(verdict), "verification-worker", "", reason)
	if verdict == models.StatusApproved {
		// The custody certificate is rendered on demand from this sealed
		// record, so its generation is anchored here.
		rec.AppendCustody(now, evidence.EventCertificateGenerated, "evidence-builder", "", "")
	}
	if err := rec.Seal(); err != nil {
		return nil, fmt.Errorf("seal evidence record: %w", err)
	}
	if err := o.evidences.Save(ctx, rec); err != nil {
		// Verdict is already committed; losing the evidence write is a
		// loud error, not a requeue.
		log.Error("evidence record not persisted", slog.Any("error", err))
	}

	o.metrics.IncrementVerdict(string(verdict), reason)

	event := events.VerificationCompleted{
		SubmissionID: sub.ID,
		PetitionID:   sub.PetitionID,
		Verdict:      string(verdict),
		Reason:       reason,
		EvidenceID:   rec.ID,
		CompletedAt:  now,
	}
	if sigRes != nil {
		event.AssuranceLevel = sigRes.Assurance.String()
	}
	if err := o.publisher.PublishVerificationCompleted(ctx, event); err != nil {
		log.Warn("completion event not published", slog.Any("error", err))
	}

	log.Info("verification completed",
		slog.String("verdict", string(verdict)),
		slog.String("reason", reason),
	)
	return &Outcome{Verdict: verdict, Reason: reason, Record: rec}, nil
}

func custodyEvent(verdict models.Status) string {
	switch verdict {
	case models.StatusApproved:
		return evidence.EventApproved
	case models.StatusManualReview:
		return evidence.EventManualReview
	default:
		return evidence.EventRejected
	}
}

func signerRecord(sub *models.Submission, res *signature.Result) evidence.SignerRecord {
	return evidence.SignerRecord{
		DisplayName:    sub.Claimed.DisplayName(),
		CPFHash:        sub.Claimed.CPFHash,
		AssuranceLevel: res.Assurance.String(),
		Issuer:         res.Issuer.Subject.CommonName,
		SerialNumber:   res.Certificate.SerialNumber.String(),
		SigningTime:    res.SigningTime,
	}
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, document.ErrTooLarge):
		return ReasonTooLarge
	case errors.Is(err, document.ErrInvalidFormat):
		return ReasonInvalidFormat
	default:
		return ReasonCorruptStructure
	}
}

func signatureReason(err error) string {
	switch {
	case errors.Is(err, signature.ErrNotSigned):
		return ReasonNotSigned
	case errors.Is(err, signature.ErrUntrustedIssuer):
		return ReasonUntrustedIssuer
	case errors.Is(err, signature.ErrCompanyCertificate):
		return ReasonCompanyCertificate
	case errors.Is(err, signature.ErrLevelTooLow):
		return ReasonLevelTooLow
	default:
		return ReasonSignatureInvalid
	}
}
