package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/davberna/lyricwatch/internal/config"
	"github.com/davberna/lyricwatch/internal/cover"
	"github.com/davberna/lyricwatch/internal/domain"
	"github.com/davberna/lyricwatch/internal/gateway"
	"github.com/davberna/lyricwatch/internal/publish"
	"github.com/davberna/lyricwatch/internal/sink"
	"github.com/davberna/lyricwatch/internal/state"
	"github.com/davberna/lyricwatch/internal/stream"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML configuration file")
		urlFlag    = flag.String("url", "", "player event stream URL (overrides config)")
		verbose    = flag.BoolP("verbose", "v", false, "enable debug logging")
	)
	flag.Parse()

	app := fx.New(appOptions(*configPath, *urlFlag, *verbose))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// appOptions assembles the dependency graph; split out so tests can
// validate it without running main
func appOptions(configPath, urlOverride string, verbose bool) fx.Option {
	return fx.Options(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(
			func() (*zap.Logger, error) { return newLogger(verbose) },
			func(logger *zap.Logger) (*config.AppConfig, error) {
				cfg, err := config.Load(logger, configPath)
				if err != nil {
					return nil, err
				}
				if urlOverride != "" {
					cfg.SetStreamURL(urlOverride)
				}
				return cfg, nil
			},
			func(cfg *config.AppConfig) domain.Config { return cfg },

			state.NewStore,
			publish.NewPublisher,
			func(p *publish.Publisher) domain.Publisher { return p },
			stream.NewClient,

			func(logger *zap.Logger, cfg domain.Config) *cover.Resolver {
				return cover.NewResolver(logger, cfg.CoverTimeout(), cfg.CoverMaxAttempts())
			},
			func(r *cover.Resolver) domain.CoverFetcher { return r },
			func(logger *zap.Logger, cfg domain.Config, fetcher domain.CoverFetcher) *sink.CoverArt {
				return sink.NewCoverArt(logger, fetcher, cfg.CoverSize(), cfg.CoverOutputDir())
			},
			sink.NewConsole,
		),

		fx.Invoke(registerHooks),
	)
}

// newLogger creates a production logger, or a development one with --verbose
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// registerHooks subscribes the built-in observers and ties the stream client
// to the application lifecycle.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg domain.Config,
	pub domain.Publisher,
	client *stream.Client,
	console *sink.Console,
	coverArt *sink.CoverArt,
) {
	pub.Subscribe(console)
	pub.Subscribe(coverArt)

	var ws *gateway.Server
	if addr := cfg.WebSocketAddr(); addr != "" {
		ws = gateway.NewServer(logger, addr)
		pub.Subscribe(ws)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if ws != nil {
				if err := ws.Start(); err != nil {
					return err
				}
			}
			// The read loop must outlive the OnStart context, which fx
			// cancels once startup completes; Stop owns its shutdown
			return client.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			if err := client.Stop(ctx); err != nil {
				return err
			}
			pub.Close()
			if ws != nil {
				return ws.Stop(ctx)
			}
			return nil
		},
	})

	logger.Info("lyricwatch daemon started")
}
