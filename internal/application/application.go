package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-service/internal/access"
	"github.com/psds-microservice/support-service/internal/chatgateway"
	"github.com/psds-microservice/support-service/internal/config"
	"github.com/psds-microservice/support-service/internal/database"
	"github.com/psds-microservice/support-service/internal/desk"
	"github.com/psds-microservice/support-service/internal/handler"
	"github.com/psds-microservice/support-service/internal/kafka"
	"github.com/psds-microservice/support-service/internal/notify"
	"github.com/psds-microservice/support-service/internal/router"
	"github.com/psds-microservice/support-service/internal/service"
	"gorm.io/gorm"
)

// Core is the storage plus desk shared by the API and the operator commands.
type Core struct {
	DB      *gorm.DB
	Users   *service.UserService
	Tickets *service.TicketService
	Desk    *desk.Desk
}

// OpenDatabase connects and migrates. For postgres the database is created first if missing.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.DB.Driver == config.DriverPostgres {
		if err := database.EnsureDatabase(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.MigrateUp(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewCore wires the stores, gate and desk over db. pub receives committed events.
func NewCore(db *gorm.DB, cfg *config.Config, pub desk.Publisher) *Core {
	users := service.NewUserService(db)
	tickets := service.NewTicketService(db)
	return &Core{
		DB:      db,
		Users:   users,
		Tickets: tickets,
		Desk: desk.New(desk.Deps{
			Users:   users,
			Tickets: tickets,
			Gate:    access.NewGate(users),
			Notify:  pub,
			Roster:  cfg.Roster(),
		}),
	}
}

// NewSender picks the notification transport: Kafka, then the chat gateway, then logs only.
func NewSender(cfg *config.Config) (notify.Sender, func() error) {
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopicNotify != "" {
		slog.Info("notify: using kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopicNotify)
		p := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicNotify)
		return p, p.Close
	}
	if cfg.ChatGatewayURL != "" {
		slog.Info("notify: using chat gateway", "url", cfg.ChatGatewayURL)
		return chatgateway.NewClient(cfg.ChatGatewayURL, cfg.ChatGatewayToken), func() error { return nil }
	}
	slog.Warn("notify: neither KAFKA_BROKERS nor CHAT_GATEWAY_URL set, notices are only logged")
	return notify.LogSender{}, func() error { return nil }
}

// API is the HTTP application (mode api).
type API struct {
	cfg         *config.Config
	core        *Core
	dispatcher  *notify.Dispatcher
	closeSender func() error
	httpSrv     *http.Server
}

func NewAPI(ctx context.Context, cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sender, closeSender := NewSender(cfg)
	users := service.NewUserService(db)
	dispatcher := notify.NewDispatcher(sender, users, notify.Options{
		Timeout:  cfg.NotifyTimeout,
		Rate:     cfg.NotifyRate,
		Parallel: cfg.NotifyParallel,
	})
	core := NewCore(db, cfg, dispatcher)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	ping := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	h := router.New(handler.NewTicketHandler(core.Desk), handler.NewAdminHandler(core.Desk), router.Options{
		JWTSecret:      cfg.AuthJWTSecret,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Ready:          handler.Ready(ping),
	})
	if cfg.AuthJWTSecret == "" {
		slog.Warn("auth: AUTH_JWT_SECRET empty, trusting X-Caller-ID header")
	}

	return &API{
		cfg:         cfg,
		core:        core,
		dispatcher:  dispatcher,
		closeSender: closeSender,
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains requests and pending
// notification fan-outs before closing the sender and database.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	slog.Info("HTTP server listening", "addr", a.httpSrv.Addr)
	slog.Info("endpoints",
		"swagger", base+"/swagger",
		"health", base+"/health",
		"ready", base+"/ready",
		"metrics", base+"/metrics",
		"api", base+"/api/v1/",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	a.dispatcher.Wait()
	if err := a.closeSender(); err != nil {
		slog.Warn("notify: close sender", "error", err)
	}
	if err := database.Close(a.core.DB); err != nil {
		slog.Warn("database: close", "error", err)
	}
	return runErr
}

type dropEvents struct{}

func (dropEvents) Publish(notify.Event) {}

// OpenCore connects, migrates and wires a core for operator commands, which
// never publish notifications.
func OpenCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	db, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewCore(db, cfg, dropEvents{}), nil
}

func (c *Core) Close() error {
	return database.Close(c.DB)
}
