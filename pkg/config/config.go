package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"interviewdesk/pkg/client"
	kafka_config "interviewdesk/pkg/kafka/config"
	"interviewdesk/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LedgerBackend string
	LedgerFile    string

	SlotTimezone   string
	SlotTimeSuffix string
	BookingDays    int
	Location       *time.Location

	MeetingMode         string
	MeetingAPIBaseURL   string
	MeetingTokenURL     string
	MeetingAccountID    string
	MeetingClientID     string
	MeetingClientSecret string
	MeetingUserID       string
	MeetingTopic        string
	MeetingCallTimeout  time.Duration

	InboxBackend      string
	IMAPAddr          string
	MailUsername      string
	MailPassword      string
	CancelSubject     string
	ReconcileInterval time.Duration
	InboxFetchTimeout time.Duration

	NotifyBackend string
	SMTPAddr      string
	MailFrom      string
	NotifyTimeout time.Duration

	Kafka *kafka_config.Config

	Log    *logger.Logger
	Client *client.Client
}

// Load reads, validates and logs the service configuration. Invalid
// configuration is fatal.
func Load(serviceName string) *Config {
	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	if cfg.usesKafka() {
		kcfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal(err.Error())
		}
		cfg.Kafka = kcfg
		cfg.Kafka.LogConfiguration(cfg.Log)
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads every setting without validating it.
func FromEnv() *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LedgerBackend: getEnvStr(EnvLedgerBackend, DefaultLedgerBackend),
		LedgerFile:    getEnvStr(EnvLedgerFile, DefaultLedgerFile),

		SlotTimezone:   getEnvStr(EnvSlotTimezone, DefaultSlotTimezone),
		SlotTimeSuffix: getEnvStr(EnvSlotTimeSuffix, DefaultSlotTimeSuffix),
		BookingDays:    getEnvNum(EnvBookingDays, DefaultBookingDays),

		MeetingMode:         getEnvStr(EnvMeetingMode, DefaultMeetingMode),
		MeetingAPIBaseURL:   getEnvStr(EnvMeetingAPIBaseURL, DefaultMeetingAPIBaseURL),
		MeetingTokenURL:     getEnvStr(EnvMeetingTokenURL, DefaultMeetingTokenURL),
		MeetingAccountID:    getEnvStr(EnvMeetingAccountID, ""),
		MeetingClientID:     getEnvStr(EnvMeetingClientID, ""),
		MeetingClientSecret: getEnvStr(EnvMeetingClientSecret, ""),
		MeetingUserID:       getEnvStr(EnvMeetingUserID, DefaultMeetingUserID),
		MeetingTopic:        getEnvStr(EnvMeetingTopic, DefaultMeetingTopic),
		MeetingCallTimeout:  getEnvDuration(EnvMeetingCallTimeout, DefaultMeetingCallTimeout),

		InboxBackend:      getEnvStr(EnvInboxBackend, DefaultInboxBackend),
		IMAPAddr:          getEnvStr(EnvIMAPAddr, DefaultIMAPAddr),
		MailUsername:      getEnvStr(EnvMailUsername, ""),
		MailPassword:      getEnvStr(EnvMailPassword, ""),
		CancelSubject:     getEnvStr(EnvCancelSubject, DefaultCancelSubject),
		ReconcileInterval: getEnvDuration(EnvReconcileInterval, DefaultReconcileInterval),
		InboxFetchTimeout: getEnvDuration(EnvInboxFetchTimeout, DefaultInboxFetchTimeout),

		NotifyBackend: getEnvStr(EnvNotifyBackend, DefaultNotifyBackend),
		SMTPAddr:      getEnvStr(EnvSMTPAddr, DefaultSMTPAddr),
		NotifyTimeout: getEnvDuration(EnvNotifyTimeout, DefaultNotifyTimeout),
	}
	cfg.MailFrom = getEnvStr(EnvMailFrom, cfg.MailUsername)
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// Validate checks every setting and reports all problems at once. It also
// resolves Location from SlotTimezone.
func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.LedgerBackend {
	case LedgerBackendFile:
		if cfg.LedgerFile == "" {
			errors = append(errors, "LedgerFile cannot be empty when LedgerBackend is file")
		}
	case LedgerBackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	default:
		errors = append(errors, fmt.Sprintf("LedgerBackend must be one of [file, mongo], got: %s", cfg.LedgerBackend))
	}

	if loc, err := time.LoadLocation(cfg.SlotTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("SlotTimezone is not a known IANA zone: %s", cfg.SlotTimezone))
	} else {
		cfg.Location = loc
	}
	if cfg.SlotTimeSuffix == "" {
		errors = append(errors, "SlotTimeSuffix cannot be empty")
	}
	if cfg.BookingDays <= 0 {
		errors = append(errors, fmt.Sprintf("BookingDays must be positive, got: %d", cfg.BookingDays))
	}

	switch cfg.MeetingMode {
	case MeetingModeStub:
	case MeetingModeZoom:
		if cfg.MeetingAccountID == "" || cfg.MeetingClientID == "" || cfg.MeetingClientSecret == "" {
			errors = append(errors, "MeetingAccountID, MeetingClientID and MeetingClientSecret are required when MeetingMode is zoom")
		}
		if !regexp.MustCompile(`^https?://`).MatchString(cfg.MeetingAPIBaseURL) {
			errors = append(errors, fmt.Sprintf("MeetingAPIBaseURL must be an http(s) URL, got: %s", cfg.MeetingAPIBaseURL))
		}
		if !regexp.MustCompile(`^https?://`).MatchString(cfg.MeetingTokenURL) {
			errors = append(errors, fmt.Sprintf("MeetingTokenURL must be an http(s) URL, got: %s", cfg.MeetingTokenURL))
		}
	default:
		errors = append(errors, fmt.Sprintf("MeetingMode must be one of [zoom, stub], got: %s", cfg.MeetingMode))
	}
	if cfg.MeetingCallTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MeetingCallTimeout must be positive, got: %s", cfg.MeetingCallTimeout))
	}

	switch cfg.InboxBackend {
	case InboxBackendNone, InboxBackendKafka:
	case InboxBackendIMAP:
		if cfg.IMAPAddr == "" || cfg.MailUsername == "" || cfg.MailPassword == "" {
			errors = append(errors, "IMAPAddr, MailUsername and MailPassword are required when InboxBackend is imap")
		}
	default:
		errors = append(errors, fmt.Sprintf("InboxBackend must be one of [imap, kafka, none], got: %s", cfg.InboxBackend))
	}
	if cfg.CancelSubject == "" {
		errors = append(errors, "CancelSubject cannot be empty")
	}
	if cfg.ReconcileInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ReconcileInterval must be positive, got: %s", cfg.ReconcileInterval))
	}
	if cfg.InboxFetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("InboxFetchTimeout must be positive, got: %s", cfg.InboxFetchTimeout))
	} else if cfg.InboxFetchTimeout >= cfg.ReconcileInterval {
		errors = append(errors, fmt.Sprintf("InboxFetchTimeout (%s) must be shorter than ReconcileInterval (%s)", cfg.InboxFetchTimeout, cfg.ReconcileInterval))
	}

	switch cfg.NotifyBackend {
	case NotifyBackendLog, NotifyBackendKafka:
	case NotifyBackendSMTP:
		if cfg.SMTPAddr == "" || cfg.MailUsername == "" || cfg.MailPassword == "" {
			errors = append(errors, "SMTPAddr, MailUsername and MailPassword are required when NotifyBackend is smtp")
		}
		if cfg.MailFrom == "" {
			errors = append(errors, "MailFrom cannot be empty when NotifyBackend is smtp")
		}
	default:
		errors = append(errors, fmt.Sprintf("NotifyBackend must be one of [smtp, kafka, log], got: %s", cfg.NotifyBackend))
	}

	if cfg.NotifyTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyTimeout must be positive, got: %s", cfg.NotifyTimeout))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	} else if cfg.RequestTimeout <= cfg.MeetingCallTimeout {
		errors = append(errors, fmt.Sprintf("RequestTimeout (%s) must be longer than MeetingCallTimeout (%s)", cfg.RequestTimeout, cfg.MeetingCallTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"port", cfg.Port,
		"ledger_backend", cfg.LedgerBackend,
		"ledger_file", cfg.LedgerFile,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"slot_timezone", cfg.SlotTimezone,
		"slot_time_suffix", cfg.SlotTimeSuffix,
		"booking_days", cfg.BookingDays,
		"meeting_mode", cfg.MeetingMode,
		"meeting_api_base_url", cfg.MeetingAPIBaseURL,
		"meeting_user_id", cfg.MeetingUserID,
		"meeting_credentials_set", cfg.MeetingClientSecret != "",
		"meeting_call_timeout", cfg.MeetingCallTimeout,
		"inbox_backend", cfg.InboxBackend,
		"imap_addr", cfg.IMAPAddr,
		"mail_username", cfg.MailUsername,
		"mail_password_set", cfg.MailPassword != "",
		"cancel_subject", cfg.CancelSubject,
		"reconcile_interval", cfg.ReconcileInterval,
		"inbox_fetch_timeout", cfg.InboxFetchTimeout,
		"notify_backend", cfg.NotifyBackend,
		"smtp_addr", cfg.SMTPAddr,
		"mail_from", cfg.MailFrom,
		"notify_timeout", cfg.NotifyTimeout,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func (cfg *Config) usesKafka() bool {
	return cfg.InboxBackend == InboxBackendKafka || cfg.NotifyBackend == NotifyBackendKafka
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	if cfg.Client != nil {
		cfg.Client.GracefulShutdown()
	}
}
