package main

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/config"
	httptransport "github.com/juanmaabanto/ms-identity/internal/http"
	"github.com/juanmaabanto/ms-identity/internal/http/handler"
	"github.com/juanmaabanto/ms-identity/internal/lockout"
	"github.com/juanmaabanto/ms-identity/internal/middleware"
	"github.com/juanmaabanto/ms-identity/internal/password"
	"github.com/juanmaabanto/ms-identity/internal/protector"
	"github.com/juanmaabanto/ms-identity/internal/repository"
	"github.com/juanmaabanto/ms-identity/internal/server"
	"github.com/juanmaabanto/ms-identity/internal/service"
	"github.com/juanmaabanto/ms-identity/internal/session"
	"github.com/juanmaabanto/ms-identity/internal/telemetry"
	"github.com/juanmaabanto/ms-identity/internal/ticket"
)

// cookieProtectionPurpose scopes the cookie protector so its payloads
// cannot be replayed against another consumer of the same secret.
const cookieProtectionPurpose = "Identity.Cookies"

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newMongoClient,
			newMongoDatabase,
			newUserRepository,
			newClientAppRepository,
			newCookieProtector,
			session.NewCodec,
			newSessionGuard,
			newSessionMiddleware,
			newHasher,
			newLockoutPolicy,
			service.NewUserService,
			newTicketIssuer,
			newAccountHandler,
			newAuthorizeHandler,
			handler.NewUsersHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newMongoClient(lc fx.Lifecycle, cfg config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client, nil
}

func newMongoDatabase(client *mongo.Client, cfg config.Config) *mongo.Database {
	return client.Database(cfg.MongoDatabase)
}

func newUserRepository(db *mongo.Database) repository.UserRepository {
	return repository.NewMongoUserRepo(db)
}

func newClientAppRepository(db *mongo.Database) repository.ClientAppRepository {
	return repository.NewMongoClientAppRepo(db)
}

func newCookieProtector(cfg config.Config) (*protector.Protector, error) {
	return protector.New(cfg.CookieProtectionKey, cookieProtectionPurpose)
}

func newSessionGuard(users repository.UserRepository, logger *zap.Logger) *session.Guard {
	return session.NewGuard(users, logger)
}

func newSessionMiddleware(codec *session.Codec, guard *session.Guard, cfg config.Config, logger *zap.Logger) *middleware.Session {
	return middleware.NewSession(codec, guard, cfg.SessionCookieMaxAge, logger)
}

func newHasher(cfg config.Config) *password.Hasher {
	return password.NewHasher(cfg.PasswordIterations)
}

func newLockoutPolicy(cfg config.Config) lockout.Policy {
	return lockout.NewPolicy(cfg.MaxFailedAttempts, cfg.LockoutDuration)
}

func newTicketIssuer(cfg config.Config) (ticket.Issuer, error) {
	return ticket.NewJoseIssuer(cfg.TicketSigningKey, cfg.TicketIssuer, cfg.TicketTTL)
}

func newAccountHandler(users *service.UserService, codec *session.Codec, cfg config.Config, logger *zap.Logger) *handler.AccountHandler {
	return handler.NewAccountHandler(users, codec, cfg, logger)
}

func newAuthorizeHandler(users *service.UserService, clientApps repository.ClientAppRepository, issuer ticket.Issuer, cfg config.Config, logger *zap.Logger) *handler.AuthorizeHandler {
	return handler.NewAuthorizeHandler(users, clientApps, issuer, cfg, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
