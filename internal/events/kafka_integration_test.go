//go:build integration

package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "peticao/pkg/domain"
	"peticao/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	ctx       context.Context
	broker    string
	publisher *KafkaPublisher
}

func TestKafkaPublisherSuite(t *testing.T) {
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.ctx = context.Background()
	s.broker = containers.NewRedpandaContainer(s.T()).Broker

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher, err := NewKafkaPublisher(s.ctx, []string{s.broker}, "", logger)
	s.Require().NoError(err)
	s.publisher = publisher
}

func (s *KafkaPublisherSuite) TearDownSuite() {
	if s.publisher != nil {
		s.publisher.Close()
	}
}

func (s *KafkaPublisherSuite) TestPublishRoundTrip() {
	event := VerificationCompleted{
		SubmissionID:   id.NewSubmissionID(),
		PetitionID:     id.NewPetitionID(),
		Verdict:        "approved",
		AssuranceLevel: "qualified",
		EvidenceID:     id.NewEvidenceID(),
		CompletedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.publisher.PublishVerificationCompleted(s.ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(TopicVerificationCompleted),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())

	records := fetches.Records()
	s.Require().NotEmpty(records)
	record := records[len(records)-1]
	s.Equal(event.SubmissionID.String(), string(record.Key))

	var got VerificationCompleted
	s.Require().NoError(json.Unmarshal(record.Value, &got))
	s.Equal(event.SubmissionID, got.SubmissionID)
	s.Equal(event.Verdict, got.Verdict)
	s.Equal(event.AssuranceLevel, got.AssuranceLevel)
}

func (s *KafkaPublisherSuite) TestEnsureTopicIsIdempotent() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	second, err := NewKafkaPublisher(s.ctx, []string{s.broker}, "", logger)
	s.Require().NoError(err)
	second.Close()
}
