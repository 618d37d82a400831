package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "interviewdesk"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLedgerBackend = LedgerBackendFile
	DefaultLedgerFile    = "bookings.json"

	DefaultSlotTimezone   = "America/New_York"
	DefaultSlotTimeSuffix = "ET"
	DefaultBookingDays    = 5

	DefaultMeetingMode        = MeetingModeZoom
	DefaultMeetingAPIBaseURL  = "https://api.zoom.us/v2"
	DefaultMeetingTokenURL    = "https://zoom.us/oauth/token"
	DefaultMeetingUserID      = "me"
	DefaultMeetingTopic       = "IB Interview Prep Session"
	DefaultMeetingCallTimeout = 5 * time.Second

	DefaultInboxBackend      = InboxBackendIMAP
	DefaultIMAPAddr          = "imap.gmail.com:993"
	DefaultCancelSubject     = "CANCEL INTERVIEW"
	DefaultReconcileInterval = 30 * time.Second
	DefaultInboxFetchTimeout = 10 * time.Second

	DefaultNotifyBackend = NotifyBackendSMTP
	DefaultSMTPAddr      = "smtp.gmail.com:587"
	DefaultNotifyTimeout = 15 * time.Second
)

const (
	LedgerBackendFile  = "file"
	LedgerBackendMongo = "mongo"

	MeetingModeZoom = "zoom"
	MeetingModeStub = "stub"

	InboxBackendIMAP  = "imap"
	InboxBackendKafka = "kafka"
	InboxBackendNone  = "none"

	NotifyBackendSMTP  = "smtp"
	NotifyBackendKafka = "kafka"
	NotifyBackendLog   = "log"
)
