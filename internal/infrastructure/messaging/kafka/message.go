package kafka

import (
	"context"
	"time"
)

// Message is a record delivered to a MessageHandler.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Header returns the named header or "".
func (m *Message) Header(key string) string {
	if m == nil || m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// ProducerMessage is a record to publish.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message. A non-nil error triggers the
// consumer's retry and dead-letter handling.
type MessageHandler func(ctx context.Context, msg *Message) error

// Publisher is the producer surface other packages depend on.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}
