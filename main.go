package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ratemylandlord-server/config"
	"ratemylandlord-server/logger"
	"ratemylandlord-server/routes"
	"ratemylandlord-server/services"
	"ratemylandlord-server/storage"
	"ratemylandlord-server/utils"

	"github.com/kataras/iris/v12"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.Get()
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.Component("main")

	// Initialize storage
	db, err := storage.InitializeDB(cfg.Database.ConnectionString, cfg.Reviews.DefaultCity)
	if err != nil {
		log.Fatal().Err(err).Msg("database initialization failed")
	}
	records := storage.NewRecords(db)

	rdb, err := storage.NewRedis(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis configuration invalid")
	}
	if err := storage.PingRedis(context.Background(), rdb); err != nil {
		log.Fatal().Err(err).Msg("redis unreachable")
	}

	files, err := storage.NewS3FileStore(storage.S3Options{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("object storage initialization failed")
	}

	// Services
	base := logger.Get()
	tokens := utils.NewTokenIssuer(cfg.Tokens.AccessSecret, cfg.Tokens.RefreshSecret, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	notifier := services.NewNotificationService(services.NewMailer(cfg.SMTP, base), cfg.App.APIURL)
	identity := services.NewLocalIdentity(records, rdb, tokens, notifier, cfg.Tokens.OTPTTL, base)

	sessions := services.NewSessionStore(
		identity,
		records,
		services.NewRedisAdminCache(rdb, cfg.Session.AdminCacheTTL),
		services.NewCaptchaVerifier(cfg.Turnstile.Secret, base),
		cfg.Session.RefreshDelay,
		base,
	)
	store := services.NewDataStore(records, files, cfg.Reviews.DefaultCity, cfg.Reviews.StudentDomains, base)
	moderation := services.NewModeration(records, files, store, cfg.S3.SignedURLTTL, base)

	readiness := services.NewReadiness(identity, cfg.Session.ReadyAttempts, cfg.Session.ReadyInterval)
	tickets := services.NewRecoveryTickets(cfg.Session.RecoveryTicketTTL)

	handlers := routes.NewHandlers(routes.Deps{
		Store:      store,
		Moderation: moderation,
		Sessions:   sessions,
		Identity:   identity,
		Handshake:  services.NewHandshake(identity, readiness, tickets, cfg.Session.SettleDelay, base),
		Reset:      services.NewPasswordReset(identity, readiness, tickets, base),
		Admins:     records,
		Audit:      records,
		AppURL:     cfg.App.AppURL,
		Logger:     base,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.Run(ctx)

	app := iris.New()
	app.Validator = utils.Validator()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})
	app.Use(utils.RequestLogger(logger.Component("http")))
	app.Use(iris.Compression)

	routes.Register(app, handlers)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := app.Listen(cfg.Addr(), iris.WithoutInterruptHandler, iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer stop()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close failed")
	}
	log.Info().Msg("server exited")
}
