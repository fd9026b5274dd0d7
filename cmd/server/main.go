package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/webchat/internal/config"
	"github.com/memohai/webchat/internal/conversations"
	"github.com/memohai/webchat/internal/handlers"
	"github.com/memohai/webchat/internal/logger"
	"github.com/memohai/webchat/internal/server"
	"github.com/memohai/webchat/internal/token"
	"github.com/memohai/webchat/internal/version"
	"github.com/memohai/webchat/internal/webchat"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideConversationsClient(log *slog.Logger, cfg config.Config) *conversations.Client {
	return conversations.NewClient(
		log,
		cfg.Conversations.BaseURL,
		cfg.Conversations.OrchestratorURL,
		cfg.Conversations.AccountSID,
		cfg.Conversations.AuthToken,
		time.Duration(cfg.Conversations.TimeoutSeconds)*time.Second,
	)
}

func provideIssuer(cfg config.Config) *token.Issuer {
	return token.NewIssuer(
		cfg.Token.AccountSID,
		cfg.Token.APIKey,
		cfg.Token.APISecret,
		cfg.Token.ServiceSID,
		time.Duration(cfg.Token.TTLSeconds)*time.Second,
	)
}

func provideVerifier(cfg config.Config) *token.Verifier {
	return token.NewVerifier(cfg.Token.APISecret)
}

func provideStrategy(log *slog.Logger, cfg config.Config, client *conversations.Client) webchat.Strategy {
	if cfg.Webchat.Mode == config.ModeDirect {
		return webchat.NewDirectStrategy(log, client, cfg.Conversations.FlowSID)
	}
	return webchat.NewDelegatedStrategy(log, client, cfg.Conversations.AddressSID)
}

func provideSessionService(log *slog.Logger, cfg config.Config, strategy webchat.Strategy, issuer *token.Issuer, verifier *token.Verifier, client *conversations.Client) *webchat.Service {
	// The Concierge welcome message belongs to the address-routing deployment.
	welcome := cfg.Webchat.Mode == config.ModeDelegated
	return webchat.NewService(log, strategy, issuer, verifier, client, welcome)
}

func provideWebchatHandler(log *slog.Logger, sessions *webchat.Service) *handlers.WebchatHandler {
	return handlers.NewWebchatHandler(log, sessions)
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,

			provideConversationsClient,
			provideIssuer,
			provideVerifier,
			provideStrategy,
			provideSessionService,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideWebchatHandler),

			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
	cfg config.Config,
) {
	fmt.Printf("Starting Webchat Service %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("webchat service listening",
				slog.String("addr", cfg.Server.Addr),
				slog.String("mode", cfg.Webchat.Mode),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
