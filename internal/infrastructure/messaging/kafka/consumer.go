package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
)

// Dead-letter headers.
const (
	HeaderOriginalTopic = "original_topic"
	HeaderErrorMessage  = "error_message"
	HeaderAttempts      = "attempts"
)

// RetryConfig defines per-message retry behaviour.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	AutoOffsetReset   string
	CommitInterval    time.Duration
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxWait           time.Duration
	// Workers is the number of goroutines fetching and handling messages.
	Workers int
	// HandlerTimeout bounds one handler invocation. Zero means no bound.
	HandlerTimeout time.Duration
	RetryConfig    RetryConfig
}

// ConsumerMetrics is a point-in-time copy of the consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     int64
	MessagesProcessed    int64
	MessagesFailed       int64
	MessagesRetried      int64
	MessagesDeadLettered int64
	LastConsumedAt       time.Time
	Lag                  int64
}

type consumerCounters struct {
	messagesConsumed     atomic.Int64
	messagesProcessed    atomic.Int64
	messagesFailed       atomic.Int64
	messagesRetried      atomic.Int64
	messagesDeadLettered atomic.Int64
	lastConsumedAt       atomic.Value // time.Time
	lag                  atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.ReaderStats
}

// Consumer reads a consumer group and dispatches messages by topic.
type Consumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger

	handlers map[string]MessageHandler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	deadLetter Publisher
	metrics    *consumerCounters
	errBackoff time.Duration
}

// NewConsumer creates a Consumer. deadLetter may be nil, in which case
// messages that exhaust their retries are logged and dropped.
func NewConsumer(cfg ConsumerConfig, deadLetter Publisher, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	applyConsumerDefaults(&cfg)

	readerCfg := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		GroupTopics:       cfg.Topics,
		MaxWait:           cfg.MaxWait,
		CommitInterval:    cfg.CommitInterval,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       kafka.FirstOffset,
		Dialer:            &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	return &Consumer{
		reader:     kafka.NewReader(readerCfg),
		config:     cfg,
		logger:     logger,
		handlers:   make(map[string]MessageHandler),
		deadLetter: deadLetter,
		metrics:    &consumerCounters{},
		errBackoff: time.Second,
	}, nil
}

func applyConsumerDefaults(cfg *ConsumerConfig) {
	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 3 * time.Second
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RetryConfig.RetryBackoff == 0 {
		cfg.RetryConfig.RetryBackoff = time.Second
	}
	if cfg.RetryConfig.MaxRetryBackoff == 0 {
		cfg.RetryConfig.MaxRetryBackoff = 30 * time.Second
	}
}

// Subscribe registers handler for topic, replacing any previous handler.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" || handler == nil {
		return errors.New(errors.ErrCodeValidation, "topic and handler are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("Subscribed to topic", logging.String("topic", topic))
	return nil
}

// Start launches the configured number of workers and returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	workers := c.config.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.consumeLoop(ctx, i)
	}

	c.logger.Info("Kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.Strings("topics", c.config.Topics),
		logging.Int("workers", workers))
	return nil
}

// Wait blocks until every worker has exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) consumeLoop(ctx context.Context, worker int) {
	defer c.wg.Done()
	log := c.logger.With(logging.Int("worker", worker))

	for {
		if ctx.Err() != nil {
			return
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("FetchMessage failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.errBackoff):
			}
			continue
		}

		c.metrics.messagesConsumed.Add(1)
		c.metrics.lastConsumedAt.Store(time.Now())
		if m.HighWaterMark > 0 {
			c.metrics.lag.Store(m.HighWaterMark - m.Offset - 1)
		}

		msg := fromKafkaMessage(m)

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		switch {
		case !ok:
			log.Warn("No handler for topic", logging.String("topic", m.Topic))
		case c.processMessage(ctx, msg, handler) != nil:
			// Cancelled mid-message: leave the offset uncommitted.
			return
		default:
			c.metrics.messagesProcessed.Add(1)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.Error("CommitMessages failed", logging.Err(err))
		}
	}
}

// processMessage runs handler with retries. Exhausted messages are sent to the
// dead-letter topic and nil is returned so the offset moves on; only context
// cancellation is returned as an error.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler MessageHandler) error {
	rc := c.config.RetryConfig
	backoff := rc.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxBackoff := rc.MaxRetryBackoff
	if maxBackoff < backoff {
		maxBackoff = backoff
	}

	attempts := 0
	var err error
	for {
		attempts++
		err = c.invoke(ctx, msg, handler)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempts > rc.MaxRetries {
			break
		}

		c.metrics.messagesRetried.Add(1)
		c.logger.Warn("Handler failed, retrying",
			logging.String("topic", msg.Topic),
			logging.Int64("offset", msg.Offset),
			logging.Int("attempt", attempts),
			logging.Err(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	c.metrics.messagesFailed.Add(1)
	c.logger.Error("Message processing failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("attempts", attempts),
		logging.Err(err))

	c.sendToDeadLetter(ctx, msg, err, attempts)
	return nil
}

func (c *Consumer) invoke(ctx context.Context, msg *Message, handler MessageHandler) error {
	if c.config.HandlerTimeout <= 0 {
		return handler(ctx, msg)
	}
	hctx, cancel := context.WithTimeout(ctx, c.config.HandlerTimeout)
	defer cancel()
	return handler(hctx, msg)
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, msg *Message, cause error, attempts int) {
	topic := c.config.RetryConfig.DeadLetterTopic
	if c.deadLetter == nil || topic == "" {
		return
	}

	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderErrorMessage] = cause.Error()
	headers[HeaderAttempts] = strconv.Itoa(attempts)

	dl := &ProducerMessage{Topic: topic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := c.deadLetter.Publish(ctx, dl); err != nil {
		c.logger.Error("Failed to send to dead letter topic",
			logging.String("topic", topic), logging.Err(err))
		return
	}
	c.metrics.messagesDeadLettered.Add(1)
}

// GetMetrics returns a snapshot of the consumer counters.
func (c *Consumer) GetMetrics() ConsumerMetrics {
	m := ConsumerMetrics{
		MessagesConsumed:     c.metrics.messagesConsumed.Load(),
		MessagesProcessed:    c.metrics.messagesProcessed.Load(),
		MessagesFailed:       c.metrics.messagesFailed.Load(),
		MessagesRetried:      c.metrics.messagesRetried.Load(),
		MessagesDeadLettered: c.metrics.messagesDeadLettered.Load(),
		Lag:                  c.metrics.lag.Load(),
	}
	if v, ok := c.metrics.lastConsumedAt.Load().(time.Time); ok {
		m.LastConsumedAt = v
	}
	return m
}

// Running reports whether the workers are active.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

// Close stops the workers, waits for in-flight handlers and closes the reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.logger.Info("Kafka consumer closed",
		logging.Int64("consumed", c.metrics.messagesConsumed.Load()),
		logging.Int64("dead_lettered", c.metrics.messagesDeadLettered.Load()))
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// ValidateConsumerConfig checks the required consumer settings.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group id required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.New(errors.ErrCodeValidation, "auto offset reset must be earliest or latest")
	}
	if cfg.RetryConfig.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max retries must be >= 0")
	}
	return nil
}
