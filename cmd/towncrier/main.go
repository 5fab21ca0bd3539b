// Command towncrier is the Discord text-to-speech herald: it reads
// configured users' messages aloud in whatever voice channel they occupy,
// following them as they move.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quillback/towncrier/internal/config"
	"github.com/quillback/towncrier/internal/describe"
	discordbot "github.com/quillback/towncrier/internal/discord"
	"github.com/quillback/towncrier/internal/health"
	"github.com/quillback/towncrier/internal/history"
	"github.com/quillback/towncrier/internal/observe"
	"github.com/quillback/towncrier/internal/resilience"
	"github.com/quillback/towncrier/pkg/tts"
	"github.com/quillback/towncrier/pkg/tts/elevenlabs"
	ttsopenai "github.com/quillback/towncrier/pkg/tts/openai"
)

// logLevel backs the default logger and is adjusted on config hot reload.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "towncrier.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "towncrier: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "towncrier: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("towncrier starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"users", len(cfg.Users),
		"guilds", len(cfg.Guilds),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── TTS provider ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	synth, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to create TTS provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}
	if len(cfg.Providers.TTSFallbacks) > 0 {
		failover := resilience.NewFailover(synth, resilience.BreakerConfig{})
		for _, entry := range cfg.Providers.TTSFallbacks {
			fb, err := reg.CreateTTS(entry)
			if err != nil {
				slog.Error("failed to create fallback TTS provider", "name", entry.Name, "err", err)
				return 1
			}
			failover.Add(fb)
		}
		synth = failover
		slog.Info("TTS failover enabled", "chain", failover.Name())
	}
	if err := checkVoices(ctx, cfg, synth); err != nil {
		slog.Error("voice validation failed", "err", err)
		return 1
	}

	// ── Optional LLM augmentation ─────────────────────────────────────────────
	var describer *describe.Describer
	if name := cfg.Providers.LLM.Name; name != "" {
		var opts []anyllmlib.Option
		if cfg.Providers.LLM.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.Providers.LLM.APIKey))
		}
		if cfg.Providers.LLM.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.Providers.LLM.BaseURL))
		}
		describer, err = describe.New(name, cfg.Providers.LLM.Model, opts...)
		if err != nil {
			slog.Error("failed to create LLM provider", "name", name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	// ── Optional clip history ─────────────────────────────────────────────────
	var recorder history.Recorder = history.NopRecorder{}
	var pgRecorder *history.PostgresRecorder
	if dsn := cfg.History.PostgresDSN; dsn != "" {
		pgRecorder, err = history.NewPostgresRecorder(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect history database", "err", err)
			return 1
		}
		recorder = pgRecorder
		slog.Info("history logging enabled")
	}
	defer recorder.Close()

	// ── Discord bot ───────────────────────────────────────────────────────────
	bot, err := discordbot.New(discordbot.Options{
		Config:     cfg,
		Synth:      synth,
		Describer:  describer,
		Recorder:   recorder,
		Metrics:    metrics,
		FFmpegPath: cfg.Pipeline.FFmpegPath,
	})
	if err != nil {
		slog.Error("failed to create Discord bot", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, cfg, func(old, new *config.Config) {
		applyReload(bot, old, new)
	})
	if err != nil {
		slog.Warn("config watching disabled", "err", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	// ── Run group ─────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("discord bot: %w", err)
		}
		return nil
	})

	if addr := cfg.Server.ListenAddr; addr != "" {
		srv := newHTTPServer(addr, bot, pgRecorder)
		g.Go(func() error {
			slog.Info("metrics listener started", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("towncrier ready — press Ctrl+C to shut down")
	err = g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down…")
	if closeErr := bot.Close(); closeErr != nil {
		slog.Warn("discord bot close error", "err", closeErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// newLogger builds the default text logger at the configured level.
// The level can be adjusted later through logLevel.
func newLogger(level config.LogLevel) *slog.Logger {
	logLevel.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// registerBuiltinProviders wires the TTS provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if f := optString(entry.Options, "format"); f != "" {
			opts = append(opts, ttsopenai.WithFormat(tts.Format(f)))
		}
		return ttsopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// checkVoices validates configured voice names against the provider's
// catalogue. Providers that cannot enumerate voices are skipped.
func checkVoices(ctx context.Context, cfg *config.Config, synth tts.Synthesizer) error {
	voicesCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	available, err := synth.Voices(voicesCtx)
	if err != nil {
		slog.Warn("could not list provider voices; skipping voice validation", "err", err)
		return nil
	}
	if len(available) == 0 {
		return nil
	}
	return config.CheckVoices(cfg, available)
}

// applyReload pushes a hot-reloaded config into the running bot.
func applyReload(bot *discordbot.Bot, old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.GuildsChanged {
		slog.Warn("guild configuration changed; restart required for presence re-seeding")
	}
	bot.ApplyConfig(new)
}

// newHTTPServer builds the metrics/health listener.
func newHTTPServer(addr string, bot *discordbot.Bot, pg *history.PostgresRecorder) *http.Server {
	probes := health.NewHandler()
	probes.Add("discord", func(context.Context) error {
		if !bot.Session().DataReady {
			return errors.New("gateway not ready")
		}
		return nil
	})
	if pg != nil {
		probes.Add("history", pg.Ping)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	probes.Register(mux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// optString reads a string value from a provider options map.
func optString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
