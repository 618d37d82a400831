package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLedgerBackend = "LEDGER_BACKEND"
	EnvLedgerFile    = "LEDGER_FILE"

	EnvSlotTimezone   = "SLOT_TIMEZONE"
	EnvSlotTimeSuffix = "SLOT_TIME_SUFFIX"
	EnvBookingDays    = "BOOKING_DAYS"

	EnvMeetingMode         = "MEETING_MODE"
	EnvMeetingAPIBaseURL   = "MEETING_API_BASE_URL"
	EnvMeetingTokenURL     = "MEETING_TOKEN_URL"
	EnvMeetingAccountID    = "MEETING_ACCOUNT_ID"
	EnvMeetingClientID     = "MEETING_CLIENT_ID"
	EnvMeetingClientSecret = "MEETING_CLIENT_SECRET"
	EnvMeetingUserID       = "MEETING_USER_ID"
	EnvMeetingTopic        = "MEETING_TOPIC"
	EnvMeetingCallTimeout  = "MEETING_CALL_TIMEOUT"

	EnvInboxBackend      = "INBOX_BACKEND"
	EnvIMAPAddr          = "IMAP_ADDR"
	EnvMailUsername      = "MAIL_USERNAME"
	EnvMailPassword      = "MAIL_PASSWORD"
	EnvCancelSubject     = "CANCEL_SUBJECT"
	EnvReconcileInterval = "RECONCILE_INTERVAL"
	EnvInboxFetchTimeout = "INBOX_FETCH_TIMEOUT"

	EnvNotifyBackend = "NOTIFY_BACKEND"
	EnvSMTPAddr      = "SMTP_ADDR"
	EnvMailFrom      = "MAIL_FROM"
	EnvNotifyTimeout = "NOTIFY_TIMEOUT"
)
