package messaging

import (
	"context"
	"time"

	"github.com/turtacn/FakeProfile-Intelligence/internal/application/detection"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// ClassificationHandler consumes classification requests and publishes one
// result event per request.
type ClassificationHandler struct {
	service   detection.Service
	publisher *ResultPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	now       func() time.Time
}

// NewClassificationHandler wires the handler. metrics may be nil.
func NewClassificationHandler(service detection.Service, publisher *ResultPublisher, metrics *prometheus.AppMetrics, logger logging.Logger) (*ClassificationHandler, error) {
	if service == nil || publisher == nil {
		return nil, errors.New(errors.ErrCodeValidation, "service and publisher are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ClassificationHandler{
		service:   service,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("classification_handler"),
		now:       time.Now,
	}, nil
}

// Handle implements kafka.MessageHandler. Requests that can never succeed
// (undecodable, invalid input, unknown profile) are answered with a failed
// result and nil so they are not retried. Every other error is returned for
// the consumer to retry and eventually dead-letter.
func (h *ClassificationHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	start := time.Now()
	if h.metrics != nil {
		active := h.metrics.ActiveWorkers.WithLabelValues(msg.Topic)
		active.Inc()
		defer active.Dec()
	}

	req, err := decodeRequest(msg)
	if req.RequestID != "" {
		ctx = logging.WithRequestID(ctx, req.RequestID)
	}
	log := h.logger.WithContext(ctx)
	if err != nil {
		log.WithError(err).Warn("Rejecting undecodable classification request",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset))
		return h.finish(ctx, msg.Topic, start, h.failed(req, "", err))
	}

	mode := req.Mode()
	var res *detection.Result
	switch mode {
	case ModeUsername:
		res, err = h.service.PredictFromUsername(ctx, req.Username)
	case ModeFeatures:
		res, err = h.service.PredictFromVector(ctx, req.Features)
	default:
		err = errors.InvalidInput("exactly one of username or features is required")
	}

	if err != nil {
		if !permanent(err) {
			prometheus.RecordMessage(h.metrics, msg.Topic, prometheus.OutcomeRetry, time.Since(start))
			return err
		}
		log.Info("Classification request rejected",
			logging.String(logging.FieldUsername, req.Username),
			logging.String("code", string(errors.GetCode(err))))
		return h.finish(ctx, msg.Topic, start, h.failed(req, mode, err))
	}

	out := resultFromDetection(req.RequestID, req.Username, mode, res)
	if err := h.publisher.publish(ctx, kafka.EventProfileClassified, req.Username, out); err != nil {
		prometheus.RecordMessage(h.metrics, msg.Topic, prometheus.OutcomeRetry, time.Since(start))
		return err
	}
	prometheus.RecordMessage(h.metrics, msg.Topic, prometheus.OutcomeSuccess, time.Since(start))
	return nil
}

func (h *ClassificationHandler) failed(req ClassificationRequest, mode string, cause error) *ClassificationResult {
	res := &ClassificationResult{
		RequestID:    req.RequestID,
		Username:     req.Username,
		Mode:         mode,
		ErrorCode:    string(errors.GetCode(cause)),
		Error:        cause.Error(),
		ClassifiedAt: h.now().UTC(),
	}
	var ae *errors.AppError
	if errors.As(cause, &ae) {
		res.Error = ae.Message
	}
	return res
}

func (h *ClassificationHandler) finish(ctx context.Context, topic string, start time.Time, res *ClassificationResult) error {
	if err := h.publisher.publish(ctx, kafka.EventClassificationFailed, res.Username, res); err != nil {
		prometheus.RecordMessage(h.metrics, topic, prometheus.OutcomeRetry, time.Since(start))
		return err
	}
	prometheus.RecordMessage(h.metrics, topic, prometheus.OutcomeFailed, time.Since(start))
	prometheus.RecordError(h.metrics, "worker", res.ErrorCode)
	return nil
}

func permanent(err error) bool {
	return errors.IsInvalidInput(err) || errors.IsProfileNotFound(err) ||
		errors.IsCode(err, errors.ErrCodeValidation) || errors.IsCode(err, errors.ErrCodeSerialization)
}

func decodeRequest(msg *kafka.Message) (ClassificationRequest, error) {
	var req ClassificationRequest
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		req.RequestID = msg.Header(kafka.HeaderRequestID)
		return req, err
	}
	if env.EventType != "" && env.EventType != kafka.EventClassificationRequested {
		req.RequestID = env.RequestID
		return req, errors.Newf(errors.ErrCodeValidation, "unexpected event type %q", env.EventType)
	}
	if err := env.DecodePayload(&req); err != nil {
		req.RequestID = env.RequestID
		return req, err
	}
	if req.RequestID == "" {
		req.RequestID = env.RequestID
	}
	return req, nil
}
