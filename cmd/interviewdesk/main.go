package main

import (
	"context"
	_ "time/tzdata"

	"interviewdesk/internal/bookings/handler"
	"interviewdesk/internal/bookings/service"
	"interviewdesk/internal/bookings/validator"
	"interviewdesk/internal/cancellations"
	"interviewdesk/internal/inbox"
	"interviewdesk/internal/ledger/repository"
	"interviewdesk/internal/meeting"
	"interviewdesk/internal/notify"
	"interviewdesk/pkg/app"
	"interviewdesk/pkg/config"
	"interviewdesk/pkg/contracts"
	"interviewdesk/pkg/kafka"
	kafka_middleware "interviewdesk/pkg/kafka/middleware"
	"interviewdesk/pkg/model"
)

const ServiceName = "interviewdesk"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting interview booking service")

	serverApp := app.NewApplication(cfg)

	ledger := initLedger(cfg)
	serverApp.AddCloser("ledger", ledger)

	meetings := initMeetings(cfg)

	var metrics *kafka_middleware.Metrics
	sink := initSink(cfg, &metrics)
	notifier := notify.NewDispatcher(newFormatter(cfg), sink, cfg.NotifyTimeout, cfg.Log.Component("notify"))
	serverApp.AddCloser("notifier", contracts.CloserFunc(func(context.Context) error {
		return notifier.Close()
	}))

	bookingService := service.NewBookingService(ledger, meetings, validator.NewBookingValidator(cfg.Log), cfg)

	if source := initInbox(cfg); source != nil {
		reconciler := cancellations.NewReconciler(source, bookingService, notifier, cfg)
		serverApp.AddJob(cancellations.NewScheduler(reconciler, cfg.ReconcileInterval, cfg.Log))
		serverApp.AddCloser("inbox", contracts.CloserFunc(func(context.Context) error {
			return source.Close()
		}))
	} else {
		cfg.Log.Warn("Inbox disabled, cancellation requests will not be reconciled")
	}

	serverApp.SetApp(
		handler.NewHealthHandler(ledger, metrics, cfg.Log),
		handler.NewBookingHandler(bookingService, notifier, cfg.Log),
	)
	serverApp.Run()
}

func initLedger(cfg *config.Config) repository.LedgerRepository {
	var store repository.DocumentStore
	switch cfg.LedgerBackend {
	case config.LedgerBackendMongo:
		cfg.SetMongo()
		store = repository.NewMongoDocumentStore(cfg)
	default:
		store = repository.NewFileDocumentStore(cfg.LedgerFile, cfg.Log.Component("ledger"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReadTimeout)
	defer cancel()
	ledger, err := repository.NewLedgerRepository(ctx, store, cfg.Log.Component("ledger"))
	if err != nil {
		cfg.Log.Fatal("Failed to load booking ledger", "backend", cfg.LedgerBackend, "error", err)
	}
	return ledger
}

func initMeetings(cfg *config.Config) meeting.Client {
	if cfg.MeetingMode == config.MeetingModeStub {
		cfg.Log.Warn("Meeting provider in stub mode, rooms are not real")
		return meeting.NewStubClient("https://meet.invalid", cfg.Log.Component("meeting"))
	}
	return meeting.NewZoomClient(meeting.ZoomConfig{
		APIBaseURL:   cfg.MeetingAPIBaseURL,
		TokenURL:     cfg.MeetingTokenURL,
		AccountID:    cfg.MeetingAccountID,
		ClientID:     cfg.MeetingClientID,
		ClientSecret: cfg.MeetingClientSecret,
		UserID:       cfg.MeetingUserID,
		Topic:        cfg.MeetingTopic,
		Timezone:     cfg.SlotTimezone,
		Duration:     model.SlotDuration,
		CallTimeout:  cfg.MeetingCallTimeout,
	}, cfg.Log.Component("meeting"))
}

func newFormatter(cfg *config.Config) *notify.Formatter {
	return notify.NewFormatter(notify.FormatterConfig{
		Location:      cfg.Location,
		ZoneTag:       cfg.SlotTimeSuffix,
		Topic:         cfg.MeetingTopic,
		Duration:      model.SlotDuration,
		Mailbox:       cfg.MailFrom,
		CancelSubject: cfg.CancelSubject,
	})
}

func initSink(cfg *config.Config, metrics **kafka_middleware.Metrics) notify.Sink {
	switch cfg.NotifyBackend {
	case config.NotifyBackendSMTP:
		return notify.NewSMTPSink(notify.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MeetingTopic,
		}, cfg.Log.Component("smtp"))

	case config.NotifyBackendKafka:
		producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.NotifyTopic, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka producer", "topic", cfg.Kafka.NotifyTopic, "error", err)
		}
		if cfg.Kafka.EnableMiddleware {
			*metrics = kafka_middleware.NewMetrics()
			producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
			producer.Use(kafka_middleware.MetricsProducerMiddleware(*metrics))
		}
		return notify.NewKafkaSink(producer)

	default:
		return notify.NewLogSink(cfg.Log.Component("notify-log"))
	}
}

func initInbox(cfg *config.Config) inbox.Source {
	switch cfg.InboxBackend {
	case config.InboxBackendIMAP:
		return inbox.NewIMAPSource(inbox.IMAPConfig{
			Addr:     cfg.IMAPAddr,
			Username: cfg.MailUsername,
			Password: cfg.MailPassword,
			Timeout:  cfg.InboxFetchTimeout,
		}, cfg.Log.Component("imap"))

	case config.InboxBackendKafka:
		poller, err := kafka.NewPoller(cfg.Kafka, cfg.Kafka.CancelTopic, cfg.Kafka.CancelGroup, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create Kafka poller", "topic", cfg.Kafka.CancelTopic, "error", err)
		}
		return inbox.NewKafkaSource(poller, cfg.Log.Component("kafka-inbox"))

	default:
		return nil
	}
}
