package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/options"
	"github.com/derickschaefer/carprice/internal/submission"
)

type stubSource struct {
	mu     sync.Mutex
	calls  []string
	models map[string][]string
}

func (s *stubSource) GetOptions(context.Context) (*model.OptionCatalog, error) {
	return &model.OptionCatalog{Brands: []string{"BMW", "Toyota"}}, nil
}

func (s *stubSource) GetModelsByBrand(_ context.Context, brand string) ([]string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "models:"+brand)
	s.mu.Unlock()
	return s.models[brand], nil
}

func (s *stubSource) GetSeriesByModel(_ context.Context, m string) ([]string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, "series:"+m)
	s.mu.Unlock()
	return []string{m + " seri"}, nil
}

func (s *stubSource) PredictPrice(context.Context, model.VehicleSubmission) (*model.PredictionResult, error) {
	return &model.PredictionResult{PredictedPrice: 1}, nil
}

func (s *stubSource) CheckHealth(context.Context) (*model.Health, error) {
	return &model.Health{}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestSessions(src *stubSource, ttl time.Duration, c *clock) *Sessions {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSessions(ttl, c.now, func() (*options.Controller, *submission.Lifecycle) {
		return options.New(src, log), submission.NewLifecycle(src, log)
	})
}

// ─── Registry ─────────────────────────────────────────────────────────────────

func TestSessionsCreateLookup(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	reg := newTestSessions(&stubSource{}, time.Minute, c)

	s := reg.Create()
	require.NotEmpty(t, s.ID)
	got, ok := reg.Lookup(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = reg.Lookup("unknown")
	assert.False(t, ok)
}

func TestSessionsExpireAfterIdleTTL(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	reg := newTestSessions(&stubSource{}, time.Minute, c)
	s := reg.Create()

	c.advance(50 * time.Second)
	_, ok := reg.Lookup(s.ID)
	require.True(t, ok, "session should still be live")

	// Lookup refreshed lastSeen, so another 50s keeps it alive.
	c.advance(50 * time.Second)
	_, ok = reg.Lookup(s.ID)
	require.True(t, ok)

	c.advance(61 * time.Second)
	_, ok = reg.Lookup(s.ID)
	assert.False(t, ok, "session should have expired")
	assert.Equal(t, 0, reg.Len())
}

func TestSessionsSweep(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	reg := newTestSessions(&stubSource{}, time.Minute, c)
	reg.Create()
	reg.Create()
	c.advance(30 * time.Second)
	fresh := reg.Create()
	c.advance(40 * time.Second)

	assert.Equal(t, 2, reg.Sweep())
	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Lookup(fresh.ID)
	assert.True(t, ok)
}

func TestSessionsZeroTTLNeverExpires(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	reg := newTestSessions(&stubSource{}, 0, c)
	s := reg.Create()
	c.advance(24 * time.Hour)
	_, ok := reg.Lookup(s.ID)
	assert.True(t, ok)
}

func TestSessionsRunStopsOnCancel(t *testing.T) {
	reg := newTestSessions(&stubSource{}, time.Minute, &clock{t: time.Unix(0, 0)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// ─── Apply ────────────────────────────────────────────────────────────────────

func TestApplyCascade(t *testing.T) {
	src := &stubSource{models: map[string][]string{"Toyota": {"Corolla"}, "BMW": {"3 Serisi"}}}
	reg := newTestSessions(src, time.Minute, &clock{t: time.Unix(0, 0)})
	s := reg.Create()
	ctx := context.Background()

	s.Apply(ctx, url.Values{"marka": {"Toyota"}, "km_temiz": {"45000"}})
	snap := s.Options.Snapshot()
	assert.Equal(t, []string{"Corolla"}, snap.Models)
	assert.Equal(t, "45000", s.Values()[submission.FieldKilometers])

	s.Apply(ctx, url.Values{"marka": {"Toyota"}, "model": {"Corolla"}})
	assert.Equal(t, []string{"Corolla seri"}, s.Options.Snapshot().Series)

	s.Apply(ctx, url.Values{"marka": {"Toyota"}, "model": {"Corolla"}, "seri": {"Corolla seri"}})
	assert.Equal(t, "Corolla seri", s.Values()[submission.FieldSeries])

	s.Apply(ctx, url.Values{"marka": {"BMW"}, "model": {"Corolla"}, "seri": {"Corolla seri"}})
	v := s.Values()
	assert.Equal(t, "BMW", v[submission.FieldBrand])
	assert.Empty(t, v[submission.FieldModel])
	assert.Empty(t, v[submission.FieldSeries])
	assert.Equal(t, []string{"3 Serisi"}, s.Options.Snapshot().Models)
	assert.Empty(t, s.Options.Snapshot().Series)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []string{"models:Toyota", "series:Corolla", "models:BMW"}, src.calls)
}

func TestApplyUnchangedSelectionDoesNotRefetch(t *testing.T) {
	src := &stubSource{models: map[string][]string{"Toyota": {"Corolla"}}}
	reg := newTestSessions(src, time.Minute, &clock{t: time.Unix(0, 0)})
	s := reg.Create()
	ctx := context.Background()

	s.Apply(ctx, url.Values{"marka": {"Toyota"}})
	s.Apply(ctx, url.Values{"marka": {"Toyota"}, "renk": {"Beyaz"}})

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []string{"models:Toyota"}, src.calls)
}

// gateSource blocks the model fetch for one brand until released.
type gateSource struct {
	stubSource
	gate    string
	entered chan struct{}
	release chan struct{}
}

func (g *gateSource) GetModelsByBrand(ctx context.Context, brand string) ([]string, error) {
	if brand == g.gate {
		close(g.entered)
		<-g.release
	}
	return g.stubSource.GetModelsByBrand(ctx, brand)
}

func TestApplySerializesPerSession(t *testing.T) {
	src := &gateSource{
		stubSource: stubSource{models: map[string][]string{"Toyota": {"Corolla"}, "BMW": {"3 Serisi"}}},
		gate:       "Toyota",
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := NewSessions(time.Minute, (&clock{t: time.Unix(0, 0)}).now, func() (*options.Controller, *submission.Lifecycle) {
		return options.New(src, log), submission.NewLifecycle(src, log)
	})
	s := reg.Create()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Apply(ctx, url.Values{"marka": {"Toyota"}})
	}()
	<-src.entered
	go func() {
		defer wg.Done()
		s.Apply(ctx, url.Values{"marka": {"BMW"}})
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "Toyota", s.Values()[submission.FieldBrand], "second apply must wait for the first")

	close(src.release)
	wg.Wait()

	snap := s.Options.Snapshot()
	assert.Equal(t, "BMW", s.Values()[submission.FieldBrand])
	assert.Equal(t, "BMW", snap.Brand)
	assert.Equal(t, []string{"3 Serisi"}, snap.Models)
}

func TestNoticeIsOneShot(t *testing.T) {
	reg := newTestSessions(&stubSource{}, time.Minute, &clock{t: time.Unix(0, 0)})
	s := reg.Create()
	s.setNotice("Kilometre: negatif olamaz")
	assert.Equal(t, "Kilometre: negatif olamaz", s.takeNotice())
	assert.Empty(t, s.takeNotice())
}

// ─── Page model ───────────────────────────────────────────────────────────────

func TestBuildPageBannerPrecedence(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := options.Snapshot{State: options.CatalogError, Error: "Seçenekler yüklenemedi"}
	life := submission.Snapshot{State: submission.Failed, Error: "Tahmin hatası"}

	p := buildPage(opts, life, submission.NewValues(), "notice", now)
	assert.Equal(t, "Seçenekler yüklenemedi", p.Banner)
	assert.False(t, p.CanSubmit)

	opts = options.Snapshot{State: options.CatalogReady}
	p = buildPage(opts, life, submission.NewValues(), "", now)
	assert.Equal(t, "Tahmin hatası", p.Banner)
	assert.True(t, p.CanSubmit)
	assert.Nil(t, p.Result)
}

func TestBuildPageSubmittingShowsNoResult(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	life := submission.Snapshot{State: submission.Submitting}
	p := buildPage(options.Snapshot{State: options.CatalogReady}, life, submission.NewValues(), "", now)
	assert.True(t, p.Submitting)
	assert.False(t, p.CanSubmit)
	assert.Nil(t, p.Result)
}

func TestBuildPageFieldFlags(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := buildPage(options.Snapshot{State: options.CatalogReady}, submission.Snapshot{}, submission.NewValues(), "", now)

	fields := map[string]fieldView{}
	for _, sec := range p.Sections {
		for _, f := range sec.Fields {
			fields[f.Name] = f
		}
	}
	assert.Len(t, fields, len(submission.Fields))
	assert.True(t, fields[submission.FieldBrand].AutoSubmit)
	assert.True(t, fields[submission.FieldModel].Disabled)
	assert.True(t, fields[submission.FieldSeries].Disabled)
	assert.False(t, fields[submission.FieldColor].Required)
	assert.Equal(t, "14", fields[submission.FieldPaintedParts].Max)
	assert.Equal(t, "14", fields[submission.FieldOriginalParts].Value)
	assert.Equal(t, "2026", fields[submission.FieldYear].Options[0])
}

func TestBuildPageHidesListsOfOtherParent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := options.Snapshot{
		State:  options.CatalogReady,
		Brand:  "Toyota",
		Model:  "Corolla",
		Models: []string{"Corolla"},
		Series: []string{"1.6 Dream"},
	}
	fieldOptions := func(p page) map[string][]string {
		out := map[string][]string{}
		for _, sec := range p.Sections {
			for _, f := range sec.Fields {
				out[f.Name] = f.Options
			}
		}
		return out
	}

	v := submission.NewValues()
	v.Set(submission.FieldBrand, "Toyota")
	v.Set(submission.FieldModel, "Corolla")
	got := fieldOptions(buildPage(opts, submission.Snapshot{}, v, "", now))
	assert.Equal(t, []string{"Corolla"}, got[submission.FieldModel])
	assert.Equal(t, []string{"1.6 Dream"}, got[submission.FieldSeries])

	v.Set(submission.FieldModel, "C-HR")
	got = fieldOptions(buildPage(opts, submission.Snapshot{}, v, "", now))
	assert.Equal(t, []string{"Corolla"}, got[submission.FieldModel])
	assert.Empty(t, got[submission.FieldSeries])

	v.Set(submission.FieldBrand, "BMW")
	got = fieldOptions(buildPage(opts, submission.Snapshot{}, v, "", now))
	assert.Empty(t, got[submission.FieldModel])
	assert.Empty(t, got[submission.FieldSeries])
}

// ─── Middleware ───────────────────────────────────────────────────────────────

func TestRecoverMiddleware(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(log))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestServerLogsRecoveredPanic(t *testing.T) {
	var buf strings.Builder
	srv, err := New(&stubSource{}, Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))})
	require.NoError(t, err)

	h := srv.chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	out := buf.String()
	assert.Contains(t, out, "panic recovered")
	assert.Contains(t, out, "msg=request")
	assert.Contains(t, out, "status=500")
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestLoggerRecordsStatus(t *testing.T) {
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}), Logger(log))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	out := buf.String()
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "bytes=2")
	assert.Contains(t, out, "method=POST")
}
