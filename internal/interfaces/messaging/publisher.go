package messaging

import (
	"context"

	"github.com/turtacn/FakeProfile-Intelligence/internal/application/detection"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// ResultPublisher emits profile.classified events for predictions made
// outside the worker, e.g. by the HTTP API.
type ResultPublisher struct {
	producer kafka.Publisher
	topic    string
	source   string
	logger   logging.Logger
}

var _ detection.ResultPublisher = (*ResultPublisher)(nil)

// NewResultPublisher publishes to topic. source names this service in the
// envelope.
func NewResultPublisher(producer kafka.Publisher, topic, source string, logger logging.Logger) (*ResultPublisher, error) {
	if producer == nil || topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "producer and topic are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResultPublisher{producer: producer, topic: topic, source: source, logger: logger.Named("result_publisher")}, nil
}

// PublishResult implements detection.ResultPublisher.
func (p *ResultPublisher) PublishResult(ctx context.Context, username string, res *detection.Result) error {
	if res == nil {
		return errors.New(errors.ErrCodeValidation, "result is required")
	}
	out := resultFromDetection(logging.RequestIDFromContext(ctx), username, ModeUsername, res)
	return p.publish(ctx, kafka.EventProfileClassified, username, out)
}

func (p *ResultPublisher) publish(ctx context.Context, eventType, key string, result *ClassificationResult) error {
	env, err := kafka.NewEventEnvelope(eventType, p.source, result)
	if err != nil {
		return err
	}
	env.RequestID = result.RequestID
	if key == "" {
		key = result.RequestID
	}
	msg, err := env.ToMessage(p.topic, key)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("Classification result published",
		logging.String("event_type", eventType),
		logging.String(logging.FieldRequestID, result.RequestID),
		logging.String("event_id", env.EventID))
	return nil
}

func resultFromDetection(requestID, username, mode string, res *detection.Result) *ClassificationResult {
	out := &ClassificationResult{
		RequestID:       requestID,
		Username:        username,
		Mode:            mode,
		FakeProbability: res.FakeProbability,
		IsFake:          res.IsFake,
		ModelVersion:    res.ModelVersion,
		ClassifiedAt:    res.ClassifiedAt,
	}
	if res.Profile != nil {
		info := res.Profile.Info()
		out.ProfileInfo = &info
		if out.Username == "" {
			out.Username = res.Profile.Username
		}
	}
	return out
}
