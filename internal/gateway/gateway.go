// Package gateway exposes ordering sessions over WebSocket.
//
// Each connection to GET /v1/session is one customer. The front end streams
// either recognised text or raw audio; the gateway runs a
// [session.Aggregator] against the menu snapshot current at connect time and
// answers with say frames (optionally followed by synthesised audio) and a
// final result frame.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/ordervox/internal/catalog"
	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/order"
	"github.com/MrWong99/ordervox/internal/session"
	"github.com/MrWong99/ordervox/internal/speech"
)

// Path is the session endpoint.
const Path = "/v1/session"

const (
	defaultReadLimit    = 4 << 20
	defaultWriteTimeout = 10 * time.Second
)

// Snapshotter supplies the current menu generation.
type Snapshotter interface {
	Snapshot() *catalog.Snapshot
}

// Option configures a [Server].
type Option func(*Server)

// WithTranscriber enables audio frames.
func WithTranscriber(t *speech.Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithVoice sends synthesised audio after every say frame.
func WithVoice(v *speech.Voice) Option {
	return func(s *Server) { s.voice = v }
}

// WithCorrector repairs misheard menu items before recognition.
func WithCorrector(c session.Corrector) Option {
	return func(s *Server) { s.initial.Corrector = c }
}

// WithSessionConfig sets the per-session bounds.
func WithSessionConfig(cfg session.Config) Option {
	return func(s *Server) { s.initial.Session = cfg }
}

// WithConfirmOptions configures the spoken confirmation.
func WithConfirmOptions(opts ...session.ConfirmOption) Option {
	return func(s *Server) { s.initial.Confirm = opts }
}

// WithMetrics records session metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns allows cross-origin connections from the given host
// patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// WithReadLimit caps the size of a single client message. Default 4 MiB.
func WithReadLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// WithIDGenerator overrides the session id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Settings are the session knobs that may change while the server runs.
// A session keeps the settings it started with.
type Settings struct {
	Session   session.Config
	Confirm   []session.ConfirmOption
	Corrector session.Corrector
}

// Server accepts ordering sessions. It is safe for concurrent use.
type Server struct {
	catalog     Snapshotter
	store       order.Store
	transcriber *speech.Transcriber
	voice       *speech.Voice
	metrics     *observe.Metrics
	origins     []string
	readLimit   int64
	newID       func() string

	initial  Settings
	settings atomic.Pointer[Settings]

	wg sync.WaitGroup
}

// New creates a Server. store may be nil to disable history and
// recommendations.
func New(cat Snapshotter, store order.Store, opts ...Option) *Server {
	s := &Server{
		catalog:   cat,
		store:     store,
		readLimit: defaultReadLimit,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	s.SetSettings(s.initial)
	return s
}

// Settings returns the settings new sessions start with.
func (s *Server) Settings() Settings { return *s.settings.Load() }

// SetSettings replaces the settings for sessions accepted from now on.
func (s *Server) SetSettings(st Settings) {
	st.Confirm = slices.Clone(st.Confirm)
	s.settings.Store(&st)
}

// Handler returns the HTTP routes served by the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+Path, s)
	return mux
}

// ServeHTTP upgrades the request and runs one session until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	if snap == nil {
		http.Error(w, "menu not loaded", http.StatusServiceUnavailable)
		return
	}

	// Counted before the upgrade completes so Wait never misses a session
	// the client already sees as open.
	s.wg.Add(1)
	defer s.wg.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("gateway: accept failed", "err", err)
		return
	}
	ws.SetReadLimit(s.readLimit)

	id := s.newID()
	ctx, cancel := context.WithCancel(observe.WithSessionID(r.Context(), id))
	defer cancel()

	status, reason := s.run(ctx, ws, snap, id, cancel)
	_ = ws.Close(status, reason)
}

// run drives one session and reports the close status.
func (s *Server) run(ctx context.Context, ws *websocket.Conn, snap *catalog.Snapshot, id string, cancel context.CancelFunc) (websocket.StatusCode, string) {
	log := observe.Logger(ctx)

	var tr *speech.Transcriber
	if s.transcriber != nil {
		tr = s.transcriber.WithMenu(snap.Menu.Names())
	}
	c := newClient(ws, tr, s.voice, cancel)
	go c.readLoop(ctx)

	if err := c.send(ctx, serverFrame{Type: frameReady, SessionID: id}); err != nil {
		log.Debug("gateway: client gone before start", "err", err)
		return websocket.StatusGoingAway, "write failed"
	}
	log.Info("gateway: session accepted", "menu_version", snap.Version)

	st := s.settings.Load()
	opts := []session.Option{
		session.WithID(id),
		session.WithConfig(st.Session),
	}
	if st.Corrector != nil {
		opts = append(opts, session.WithCorrector(st.Corrector))
	}
	if s.metrics != nil {
		opts = append(opts, session.WithMetrics(s.metrics))
	}
	confirmer := session.NewVoiceConfirmer(c, c, st.Confirm...)
	agg := session.New(snap.Automaton, c, c, confirmer, s.store, opts...)

	res, runErr := agg.Run(ctx)
	if ctx.Err() != nil || errors.Is(runErr, ErrDisconnected) {
		return websocket.StatusGoingAway, "session cancelled"
	}

	result := serverFrame{
		Type:            frameResult,
		SessionID:       id,
		Order:           snap.Vocabulary.DisplayAll(res.Order),
		Recommendations: snap.Vocabulary.DisplayAll(res.Recommendations),
		Outcome:         string(res.Outcome),
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	wctx, wcancel := context.WithTimeout(ctx, defaultWriteTimeout)
	defer wcancel()
	if err := c.send(wctx, result); err != nil {
		log.Warn("gateway: write result failed", "err", err)
		return websocket.StatusGoingAway, "write failed"
	}
	if runErr != nil && !errors.Is(runErr, session.ErrMaxRetriesExceeded) {
		return websocket.StatusInternalError, "session failed"
	}
	return websocket.StatusNormalClosure, "order complete"
}

// Wait blocks until every running session has ended or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
