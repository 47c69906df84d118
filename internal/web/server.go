// Package web serves the price prediction page: a server-rendered form whose
// cascading selects post back on change, and a result panel. Each browser
// session owns one options controller and one prediction lifecycle, so a
// page reload (GET /) mounts a fresh page state exactly like a client app
// would.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/options"
	"github.com/derickschaefer/carprice/internal/render"
	"github.com/derickschaefer/carprice/internal/submission"
)

//go:embed templates/*.html
var templateFS embed.FS

// Client is everything the page needs from the prediction service.
type Client interface {
	options.Source
	submission.Predictor
	CheckHealth(ctx context.Context) (*model.Health, error)
}

// Recorder persists successful predictions. It is optional.
type Recorder interface {
	PutPrediction(p model.Prediction) (model.Prediction, error)
}

// Options configures a Server.
type Options struct {
	Logger      *slog.Logger
	SessionTTL  time.Duration
	Recorder    Recorder
	ServiceName string
	Now         func() time.Time
}

// Server is the HTTP front end.
type Server struct {
	client   Client
	log      *slog.Logger
	recorder Recorder
	sessions *Sessions
	tpl      *pongo2.Template
	service  string
	now      func() time.Time
}

// New builds a Server and parses the page template.
func New(client Client, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	service := opts.ServiceName
	if service == "" {
		service = "carprice"
	}

	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template fs: %w", err)
	}
	set := pongo2.NewSet("carprice", pongo2.NewFSLoader(sub))
	tpl, err := set.FromFile("index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}

	s := &Server{
		client:   client,
		log:      log,
		recorder: opts.Recorder,
		tpl:      tpl,
		service:  service,
		now:      now,
	}
	s.sessions = NewSessions(opts.SessionTTL, now, func() (*options.Controller, *submission.Lifecycle) {
		return options.New(client, log), submission.NewLifecycle(client, log)
	})
	return s, nil
}

// Sessions exposes the session registry.
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleMount)
	mux.HandleFunc("POST /{$}", s.handlePost)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.chain(mux)
}

// chain wraps h in the middleware stack. Logger is outermost so a recovered
// panic is still logged with its 500 status.
func (s *Server) chain(h http.Handler) http.Handler {
	return Chain(h,
		Logger(s.log),
		Recover(s.log),
		OTel(s.service),
		NoStore(),
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Expired sessions are swept once a minute.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sessions.Run(sweepCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// handleMount starts a new page state and loads the option catalog.
func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	sess := s.mount(w, r)
	s.renderPage(w, sess)
}

// handlePost applies a selection change or runs a prediction.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	var sess *Session
	if c, err := r.Cookie(CookieName); err == nil {
		sess, _ = s.sessions.Lookup(c.Value)
	}
	if sess == nil {
		sess = s.mount(w, r)
	}

	sess.Apply(r.Context(), r.PostForm)
	if r.PostForm.Get("action") == "predict" {
		s.predict(r.Context(), sess)
	}
	s.renderPage(w, sess)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h, err := s.client.CheckHealth(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "unavailable",
			"error":  render.BannerText(err),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(h)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (s *Server) mount(w http.ResponseWriter, r *http.Request) *Session {
	sess := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	// A failed catalog load is kept on the controller for the banner.
	_ = sess.Options.Activate(r.Context())
	return sess
}

func (s *Server) predict(ctx context.Context, sess *Session) {
	values := sess.Values()
	if err := submission.Validate(values, s.now()); err != nil {
		sess.setNotice(err.Error())
		return
	}
	sub := submission.Parse(values)
	result, err := sess.Lifecycle.Submit(ctx, sub)
	if err != nil {
		// Failure and supersession are both reflected in the lifecycle state.
		return
	}
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.PutPrediction(model.Prediction{
		CreatedAt:  s.now().UTC(),
		Source:     "web",
		Submission: sub,
		Result:     *result,
	}); err != nil {
		s.log.Warn("recording prediction failed", "err", err)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, sess *Session) {
	p := buildPage(
		sess.Options.Snapshot(),
		sess.Lifecycle.Snapshot(),
		sess.Values(),
		sess.takeNotice(),
		s.now(),
	)
	out, err := s.tpl.Execute(pongo2.Context{"page": p})
	if err != nil {
		s.log.Error("rendering page", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}
