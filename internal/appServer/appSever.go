package appServer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evently/ticketing/config"
	repository "github.com/evently/ticketing/internal/database/postgres"
	"github.com/evently/ticketing/internal/service"
	"github.com/evently/ticketing/internal/transport"
	"github.com/evently/ticketing/internal/worker"

	"github.com/evently/ticketing/pkg/kafka"
	"github.com/evently/ticketing/pkg/mailer"
	"github.com/evently/ticketing/pkg/media"
	"github.com/evently/ticketing/pkg/payment"
	"github.com/evently/ticketing/pkg/postgres"
	"github.com/evently/ticketing/pkg/qr"
	"github.com/evently/ticketing/pkg/queue"
	"github.com/evently/ticketing/pkg/redis"
	"github.com/evently/ticketing/pkg/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	attendeeRepo := repository.NewAttendeeRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Initialize issuance collaborators
	qrGenerator := qr.NewGenerator(cfg.Media.TempDir)
	mediaStore := media.NewLocalStore(cfg.Media.BasePath, cfg.Media.BaseURL)
	var emailSender mailer.Sender
	if cfg.Email.Enabled {
		emailSender = mailer.NewSMTPSender(&cfg.Email)
		logrus.Info("SMTP sender initialized")
	} else {
		logrus.Warn("Email sending disabled, tickets will not be mailed")
	}

	// Initialize Kafka producer for fulfillment alerts
	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
	}

	// Initialize Redis task queue
	var redisQueue queue.Queue
	var taskPublisher service.TaskPublisher

	if cfg.Redis.Enabled {
		queueConfig := queue.DefaultRedisQueueConfig()
		queueConfig.Addr = fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		queueConfig.Password = cfg.Redis.Password
		queueConfig.DB = cfg.Redis.DB
		queueConfig.MaxRetries = cfg.Issuance.MaxRetries

		retryManager := queue.NewRetryManager(queueConfig.MaxRetries, 5*time.Second)
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()
		dlqHandler := queue.NewDefaultDLQHandler(redisClient, queueConfig.DLQ, queueConfig.MainQueue)

		redisQueue, err = queue.NewRedisQueue(queueConfig, retryManager, dlqHandler)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
		} else {
			logrus.Info("Redis queue initialized")
			taskPublisher = service.NewQueueAdapter(redisQueue)
		}
	}

	// Initialize services
	paymentClient := payment.NewClient(&cfg.Payment)
	bookingService := service.NewBookingService(eventRepo, inventoryRepo, attendeeRepo)
	issuanceService := service.NewIssuanceService(ticketRepo, attendeeRepo, eventRepo, inventoryRepo, qrGenerator, mediaStore, emailSender, taskPublisher)
	paymentService := service.NewPaymentService(sessionRepo, eventRepo, ticketRepo, userRepo, paymentClient, bookingService, taskPublisher, producer)
	eventService := service.NewEventService(eventRepo, attendeeRepo)
	ticketService := service.NewTicketService(ticketRepo, attendeeRepo)
	userService := service.NewUserService(userRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start queue consumer if queue is available
	if redisQueue != nil {
		taskWorker := worker.NewTaskWorker(redisQueue, issuanceService, producer)
		if err := taskWorker.Start(ctx); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		} else {
			logrus.Info("Queue subscriber started")
		}
	}

	// Start abandoned checkout sweeper
	sessionSweeper := scheduler.NewScheduler(paymentService, cfg.Checkout.SweepInterval, cfg.Checkout.SessionTTL)
	go sessionSweeper.Start(ctx)
	logrus.Info("Session sweeper started")

	// Start issuance recovery worker
	recoveryWorker := worker.NewIssuanceRecoveryWorker(issuanceService, cfg.Issuance.RecoveryInterval, cfg.Issuance.RecoveryBatch)
	go recoveryWorker.Start(ctx)
	logrus.Info("Issuance recovery worker started")

	// Initialize handlers
	eventHandler := transport.NewEventHandler(eventService)
	paymentHandler := transport.NewPaymentHandler(paymentService)
	ticketHandler := transport.NewTicketHandler(ticketService)
	userHandler := transport.NewUserHandler(userService)

	if cfg.Server.Mode == "release" || cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		routes := transport.InitRoutes(eventHandler, paymentHandler, ticketHandler, userHandler, cfg.Media.BasePath)
		if err := srv.Run(cfg, routes); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if redisQueue != nil {
		if err := redisQueue.Close(); err != nil {
			logrus.Errorf("error occured on queue shutdown: %s", err.Error())
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
