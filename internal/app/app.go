// Package app wires all ordervox subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads the menu, opens the order
// history and builds the speech pipeline, Run serves HTTP and watches the
// menu and config files, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithCatalog, WithRegistry, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ordervox/internal/catalog"
	"github.com/MrWong99/ordervox/internal/config"
	"github.com/MrWong99/ordervox/internal/gateway"
	"github.com/MrWong99/ordervox/internal/health"
	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/order"
	"github.com/MrWong99/ordervox/internal/resilience"
	"github.com/MrWong99/ordervox/internal/speech"
	"github.com/MrWong99/ordervox/pkg/provider/tts"
)

// shutdownGrace bounds how long Run waits for in-flight HTTP requests after
// its context is cancelled.
const shutdownGrace = 10 * time.Second

// sessionCancelGrace bounds how long Shutdown waits for cancelled sessions
// to unwind before closing the history backend.
const sessionCancelGrace = 2 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	catalog  *catalog.Catalog
	store    order.Store
	stt      *resilience.STTFallback
	tts      *resilience.TTSFallback
	gateway  *gateway.Server
	health   *health.Handler
	handler  http.Handler
	watcher  *config.Watcher
	promHTTP http.Handler

	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}

	// sessions outlives Run so that open sessions can finish during
	// Shutdown. stopSessions cancels it.
	sessions     context.Context
	stopSessions context.CancelFunc

	// closers are called in order during Shutdown.
	closers      []func() error
	extraClosers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an order history store instead of creating one from
// config.
func WithStore(s order.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCatalog injects a menu catalog instead of opening menu.path.
func WithCatalog(c *catalog.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithRegistry sets the provider registry used to build the speech
// backends. Without it, configured providers cannot be created.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads change the level of the running logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigWatcher hot-reloads session and recognition settings from the
// config file. The watcher's change callback is owned by the caller; it
// should forward to [App.ApplyConfig].
func WithConfigWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithMetricsHandler serves h at telemetry.metrics_path instead of
// promhttp.Handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.promHTTP = h }
}

// WithCloser registers fn to run during Shutdown after the built-in closers.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.extraClosers = append(a.extraClosers, fn) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together.
//
// New performs all initialisation synchronously: menu loading, history store
// connection and migration, and speech backend construction. A menu that
// cannot be loaded aborts startup.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:   cfg,
		ready: make(chan struct{}),
	}
	a.sessions, a.stopSessions = context.WithCancel(context.WithoutCancel(ctx))
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.promHTTP == nil {
		a.promHTTP = promhttp.Handler()
	}

	// ── 1. Menu catalog ──────────────────────────────────────────────────
	if err := a.initCatalog(); err != nil {
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}

	// ── 2. Order history ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 3. Speech backends ───────────────────────────────────────────────
	gwOpts, err := a.initSpeech()
	if err != nil {
		return nil, fmt.Errorf("app: init speech: %w", err)
	}

	// ── 4. Gateway ───────────────────────────────────────────────────────
	gwOpts = append(gwOpts,
		gateway.WithMetrics(a.metrics),
		gateway.WithOriginPatterns(cfg.Server.AllowedOrigins...),
	)
	a.gateway = gateway.New(a.catalog, a.store, gwOpts...)
	a.gateway.SetSettings(sessionSettings(cfg))

	// ── 5. Health + HTTP routes ──────────────────────────────────────────
	checkers := []health.Checker{
		health.MenuChecker(a.catalog),
		health.HistoryChecker(a.store),
	}
	if a.stt != nil {
		checkers = append(checkers, health.BackendChecker("stt", a.stt))
	}
	if a.tts != nil {
		checkers = append(checkers, health.BackendChecker("tts", a.tts))
	}
	a.health = health.New(checkers...)

	mux := http.NewServeMux()
	mux.Handle("GET "+gateway.Path, a.gateway)
	a.health.Register(mux)
	mux.Handle("GET "+cfg.Telemetry.MetricsPath, a.promHTTP)
	a.handler = observe.Middleware(a.metrics)(mux)
	a.closers = append(a.closers, a.extraClosers...)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initCatalog() error {
	if a.catalog != nil {
		return nil
	}
	cat, err := catalog.Open(a.cfg.Menu.Path,
		catalog.WithMetrics(a.metrics),
		catalog.WithOnChange(func(old, new *catalog.Snapshot) {
			slog.Info("menu changed; new sessions use the new menu",
				"from_version", old.Version,
				"to_version", new.Version,
				"items", new.Vocabulary.Len(),
			)
		}),
	)
	if err != nil {
		return err
	}
	a.catalog = cat
	return nil
}

// initHistory opens the configured order history backend or keeps an
// injected store.
func (a *App) initHistory(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	h := a.cfg.History
	switch h.Backend {
	case config.HistoryMemory:
		a.store = order.NewMemStore()
	case config.HistoryFile, "":
		a.store = order.NewFileStore(h.Path)
	case config.HistoryPostgres:
		pool, err := order.ConnectWithRetry(ctx, order.RetryConfig{}, func(ctx context.Context) (*pgxpool.Pool, error) {
			return order.OpenPostgres(ctx, h.PostgresDSN)
		})
		if err != nil {
			return err
		}
		pg := order.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		a.store = pg
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
	default:
		return fmt.Errorf("unknown history backend %q", h.Backend)
	}
	slog.Info("order history ready", "backend", string(h.Backend))
	return nil
}

// initSpeech builds the STT and TTS fallback groups from the registry and
// returns the gateway options that enable them.
func (a *App) initSpeech() ([]gateway.Option, error) {
	p := a.cfg.Providers
	if p.STT.Name == "" && p.TTS.Name == "" {
		return nil, nil
	}
	if a.registry == nil {
		return nil, errors.New("providers configured but no registry supplied")
	}

	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  p.CircuitBreaker.MaxFailures,
			ResetTimeout: p.CircuitBreaker.ResetTimeout,
			HalfOpenMax:  p.CircuitBreaker.HalfOpenMax,
		},
	}

	var opts []gateway.Option
	if p.STT.Name != "" {
		primary, err := a.registry.CreateSTT(p.STT)
		if err != nil {
			return nil, fmt.Errorf("stt %q: %w", p.STT.Name, err)
		}
		a.stt = resilience.NewSTTFallback(primary, p.STT.Name, fbCfg)
		for i, fb := range p.STTFallbacks {
			prov, err := a.registry.CreateSTT(fb)
			if err != nil {
				return nil, fmt.Errorf("stt fallback %q: %w", fb.Name, err)
			}
			a.stt.AddFallback(fmt.Sprintf("%s#%d", fb.Name, i+1), prov)
		}
		tr := speech.NewTranscriber(a.stt,
			speech.WithProviderName(p.STT.Name),
			speech.WithLanguage(a.cfg.Recognition.Language),
			speech.WithTranscribeTimeout(a.cfg.Recognition.TranscribeTimeout),
			speech.WithSTTMetrics(a.metrics),
		)
		opts = append(opts, gateway.WithTranscriber(tr))
		slog.Info("speech-to-text ready", "provider", p.STT.Name, "fallbacks", len(p.STTFallbacks))
	}

	if p.TTS.Name != "" {
		primary, err := a.registry.CreateTTS(p.TTS)
		if err != nil {
			return nil, fmt.Errorf("tts %q: %w", p.TTS.Name, err)
		}
		a.tts = resilience.NewTTSFallback(primary, p.TTS.Name, fbCfg)
		for i, fb := range p.TTSFallbacks {
			prov, err := a.registry.CreateTTS(fb)
			if err != nil {
				return nil, fmt.Errorf("tts fallback %q: %w", fb.Name, err)
			}
			a.tts.AddFallback(fmt.Sprintf("%s#%d", fb.Name, i+1), prov)
		}
		voice := speech.NewVoice(a.tts, voiceProfile(p),
			speech.WithVoiceProviderName(p.TTS.Name),
			speech.WithTTSMetrics(a.metrics),
		)
		opts = append(opts, gateway.WithVoice(voice))
		slog.Info("text-to-speech ready", "provider", p.TTS.Name, "voice", p.Voice.VoiceID)
	}
	return opts, nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler: the session gateway, health probes
// and metrics, wrapped in the observability middleware.
func (a *App) Handler() http.Handler { return a.handler }

// Catalog returns the live menu catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Gateway returns the session gateway.
func (a *App) Gateway() *gateway.Server { return a.gateway }

// Addr returns the address Run is listening on. It blocks until the
// listener is bound or ctx is done.
func (a *App) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-a.ready:
		a.addrMu.Lock()
		defer a.addrMu.Unlock()
		return a.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on server.listen_addr and, when enabled, watches the menu
// file and the config file. It blocks until ctx is cancelled or a component
// fails, then stops the HTTP server gracefully. A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	a.addrMu.Lock()
	a.addr = ln.Addr()
	a.addrMu.Unlock()
	close(a.ready)

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return a.sessions },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			slog.Warn("http server shutdown", "err", err)
		}
		return nil
	})

	if a.cfg.Menu.Watch {
		g.Go(func() error { return a.catalog.Watch(gctx) })
	}
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	return g.Wait()
}

// ApplyConfig applies the hot-reloadable parts of a new config. It is meant
// to be called from the config watcher's change callback.
func (a *App) ApplyConfig(old, new *config.Config, diff config.ConfigDiff) {
	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "from", string(old.Server.LogLevel), "to", string(new.Server.LogLevel))
	}
	if diff.SessionChanged || diff.RecognitionChanged {
		a.gateway.SetSettings(sessionSettings(new))
		slog.Info("session settings updated; running sessions keep their settings",
			"max_rounds", new.Session.MaxRounds,
			"max_retries_per_round", new.Session.MaxRetriesPerRound,
			"phonetic_correction", new.Recognition.PhoneticCorrection,
		)
	}
	a.cfg = new
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown waits for running sessions to finish and then releases the
// history backend. Sessions still open when ctx expires are cancelled and
// the context error is returned; the closers run either way.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.gateway.Wait(ctx); err != nil {
			slog.Warn("sessions still running at shutdown deadline, cancelling", "err", err)
			shutdownErr = err
			a.stopSessions()
			wctx, cancel := context.WithTimeout(context.Background(), sessionCancelGrace)
			_ = a.gateway.Wait(wctx)
			cancel()
		}
		a.stopSessions()

		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// voiceProfile converts the configured voice to a tts.VoiceProfile.
func voiceProfile(p config.ProvidersConfig) tts.VoiceProfile {
	return tts.VoiceProfile{
		ID:          p.Voice.VoiceID,
		Name:        p.Voice.Name,
		Provider:    p.TTS.Name,
		SpeedFactor: p.Voice.SpeedFactor,
	}
}

// SlogLevel maps a config log level to its slog level. Unknown values map to
// info.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
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
