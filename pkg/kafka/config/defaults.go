package kafka_config

import "time"

const (
	DefaultKafkaBrokers = "localhost:9092"

	DefaultNotifyTopic = "interview.notifications"
	DefaultCancelTopic = "interview.cancellations"
	DefaultCancelGroup = "interviewdesk-reconciler"

	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = -1 // all replicas
	DefaultProducerCompression  = "snappy"

	DefaultConsumerStartOffset       = -2 // oldest: a new group must see queued cancellations
	DefaultConsumerMaxBytes          = 1 * 1024 * 1024
	DefaultConsumerMaxWait           = 500 * time.Millisecond
	DefaultConsumerHeartbeatInterval = 3 * time.Second
	DefaultConsumerSessionTimeout    = 10 * time.Second
	DefaultPollBatchSize             = 50
	DefaultPollIdleTimeout           = 2 * time.Second

	DefaultEnableMiddleware = true
)
