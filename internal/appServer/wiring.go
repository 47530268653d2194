package appServer

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/interpreter-booking/config"
	"github.com/ds124wfegd/interpreter-booking/internal/audit"
	"github.com/ds124wfegd/interpreter-booking/internal/database/memory"
	repository "github.com/ds124wfegd/interpreter-booking/internal/database/postgres"
	redislock "github.com/ds124wfegd/interpreter-booking/internal/database/redis"
	"github.com/ds124wfegd/interpreter-booking/internal/eligibility"
	"github.com/ds124wfegd/interpreter-booking/internal/events"
	"github.com/ds124wfegd/interpreter-booking/internal/notification"
	"github.com/ds124wfegd/interpreter-booking/internal/service"
	"github.com/ds124wfegd/interpreter-booking/internal/transport"
	"github.com/ds124wfegd/interpreter-booking/internal/worker"
	"github.com/ds124wfegd/interpreter-booking/pkg/mailer"
	"github.com/ds124wfegd/interpreter-booking/pkg/mq"
	"github.com/ds124wfegd/interpreter-booking/pkg/onesignal"
	"github.com/ds124wfegd/interpreter-booking/pkg/postgres"
	"github.com/ds124wfegd/interpreter-booking/pkg/queue"
	"github.com/ds124wfegd/interpreter-booking/pkg/redis"
	"github.com/ds124wfegd/interpreter-booking/pkg/sms"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type repositories struct {
	bookings    repository.BookingRepository
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	languages   repository.LanguageRepository
}

type application struct {
	repos    *repositories
	bookings service.BookingService
	expiry   *worker.BookingExpiryWorker
	checks   map[string]transport.HealthCheck
	outbox   transport.Outbox
	closers  []func()
}

func (a *application) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of creation.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func build(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*application, error) {
	app := &application{checks: make(map[string]transport.HealthCheck)}
	built := false
	defer func() {
		if !built {
			app.close()
		}
	}()

	if err := app.openStorage(cfg, logger); err != nil {
		return nil, err
	}

	var (
		redisClient *goredis.Client
		err         error
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { redisClient.Close() })
		app.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	// Транспорт писем и SMS
	var (
		mailClient queue.MailSender
		smsClient  queue.TextSender
	)
	if cfg.Email.Enabled {
		mailClient = mailer.New(mailer.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
	} else {
		logrus.Warn("Email is disabled, correspondence will be reported as failed")
	}
	if cfg.SMS.Enabled {
		smsClient = sms.NewClient(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.Sender, cfg.SMS.Timeout)
	}

	var (
		mail  notification.Correspondence
		texts notification.SMSSender
	)
	if cfg.Queue.Enabled && redisClient != nil {
		outboxQueue := queue.NewRedisQueue(redisClient, &queue.RedisQueueConfig{
			Prefix:     cfg.Queue.Prefix,
			MaxRetries: cfg.Queue.MaxRetries,
			BaseDelay:  cfg.Queue.BaseDelay,
			EnableDLQ:  true,
		}, logger)
		app.checks["outbox"] = outboxQueue.HealthCheck
		app.outbox = outboxQueue

		handler := queue.NewTaskHandler(mailClient, smsClient, logger)
		if err := outboxQueue.Subscribe(ctx, handler.HandleTask); err != nil {
			return nil, fmt.Errorf("failed to start outbox consumer: %w", err)
		}
		app.onClose(func() { outboxQueue.Close() })

		outbox := notification.NewOutbox(outboxQueue)
		mail = outbox
		texts = outbox.Texts()
		logrus.Info("Correspondence goes through the redis outbox")
	} else {
		if c, ok := mailClient.(*mailer.Client); ok {
			mail = notification.NewDirectMail(c)
		}
		if smsClient != nil {
			texts = notification.NewDirectSMS(smsClient)
		}
	}

	var push notification.PushSender
	if cfg.Push.AppID != "" {
		push = notification.NewOneSignalSender(onesignal.NewClient(cfg.Push.AppID, cfg.Push.APIKey, cfg.Push.BaseURL, cfg.Push.Timeout))
	} else {
		logrus.Warn("Push app id not provided, push notifications disabled")
	}

	policy, err := nightPolicy(&cfg.Notification)
	if err != nil {
		return nil, err
	}
	dispatcher := notification.NewDispatcher(push, mail, policy, logger.WithField("component", "dispatcher"), notification.WithSMS(texts))

	var locker service.Locker
	if redisClient != nil {
		locker = redislock.NewBookingLocker(redisClient, cfg.Lock.TTL, cfg.Lock.RetryDelay, logger)
	}

	sink, err := audit.OpenFile(cfg.Audit.Path)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { sink.Close() })

	var publisher service.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		bus, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { bus.Close() })
		publisher = events.NewBusPublisher(bus)
		logrus.WithField("exchange", cfg.RabbitMQ.Exchange).Info("Booking events go to RabbitMQ")
	}

	app.bookings = service.NewBookingService(service.Dependencies{
		Bookings:    app.repos.bookings,
		Assignments: app.repos.assignments,
		Users:       app.repos.users,
		Languages:   app.repos.languages,
		Eligibility: eligibility.NewEngine(app.repos.users, app.repos.bookings, logger.WithField("component", "eligibility")),
		Dispatcher:  dispatcher,
		Locker:      locker,
		Audit:       sink,
		Events:      publisher,
		Logger:      logger,
	}, service.Options{
		Location:      policy.Location,
		ImmediateLead: cfg.Booking.ImmediateLead,
		CancelWindow:  cfg.Booking.CancelWindow,
		ReminderLead:  cfg.Notification.ReminderLead,
	})

	app.expiry = worker.NewBookingExpiryWorker(app.bookings, cfg.Worker.ExpiryInterval, cfg.Worker.BatchSize, logger)
	built = true
	return app, nil
}

func (a *application) openStorage(cfg *config.Config, logger logrus.FieldLogger) error {
	switch cfg.Storage.Driver {
	case "postgres":
		// Initialize database
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.onClose(func() { db.Close() })

		// Run database migrations
		if err := postgres.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.checks["postgres"] = db.PingContext

		a.repos = &repositories{
			bookings:    repository.NewBookingRepository(db),
			assignments: repository.NewAssignmentRepository(db),
			users:       repository.NewUserRepository(db),
			languages:   repository.NewLanguageRepository(db),
		}
	case "memory", "":
		store := memory.NewStore()
		a.repos = &repositories{
			bookings:    store.Bookings(),
			assignments: store.Assignments(),
			users:       store.Users(),
			languages:   store.Languages(),
		}
		logger.Warn("Using in-memory storage, data is lost on restart")
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return nil
}

func nightPolicy(cfg *config.NotificationConfig) (notification.NightPolicy, error) {
	policy := notification.DefaultNightPolicy()
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return policy, fmt.Errorf("invalid notification timezone %q: %w", cfg.Timezone, err)
		}
		policy.Location = loc
	}
	if cfg.NightStart != "" {
		start, err := notification.ParseClock(cfg.NightStart)
		if err != nil {
			return policy, fmt.Errorf("invalid night_start: %w", err)
		}
		policy.Start = start
	}
	if cfg.NightEnd != "" {
		end, err := notification.ParseClock(cfg.NightEnd)
		if err != nil {
			return policy, fmt.Errorf("invalid night_end: %w", err)
		}
		policy.End = end
	}
	return policy, nil
}
