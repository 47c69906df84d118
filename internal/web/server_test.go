package web_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/pricing"
	"github.com/derickschaefer/carprice/internal/web"
)

// ─── Fake prediction service ──────────────────────────────────────────────────

type upstream struct {
	mu          sync.Mutex
	failOptions bool
	failHealth  bool
	predictCode int
	predictBody string
	lastPredict map[string]interface{}
	predictHits int
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if u.failHealth {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(model.Health{Status: "healthy", ModelLoaded: true, Version: "1.0.0"})
	})
	mux.HandleFunc("/api/v1/options", func(w http.ResponseWriter, r *http.Request) {
		if u.failOptions {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(model.OptionCatalog{
			Brands:        []string{"BMW", "Toyota"},
			FuelTypes:     []string{"Benzin", "Dizel"},
			Transmissions: []string{"Manuel", "Otomatik"},
			BodyTypes:     []string{"Sedan", "Hatchback"},
			Drivetrains:   []string{"Önden Çekiş"},
			Colors:        []string{"Beyaz"},
			Provinces:     []string{"İstanbul"},
		})
	})
	mux.HandleFunc("/api/v1/models/", func(w http.ResponseWriter, r *http.Request) {
		models := map[string][]string{"Toyota": {"Corolla", "C-HR"}, "BMW": {"3 Serisi"}}
		brand := strings.TrimPrefix(r.URL.Path, "/api/v1/models/")
		_ = json.NewEncoder(w).Encode(map[string][]string{"modeller": models[brand]})
	})
	mux.HandleFunc("/api/v1/series/", func(w http.ResponseWriter, r *http.Request) {
		series := map[string][]string{"Corolla": {"1.6 Dream", "1.5 Vision"}}
		m := strings.TrimPrefix(r.URL.Path, "/api/v1/series/")
		_ = json.NewEncoder(w).Encode(map[string][]string{"seriler": series[m]})
	})
	mux.HandleFunc("/api/v1/predict", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.predictHits++
		body := map[string]interface{}{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.lastPredict = body
		if u.predictCode != 0 {
			w.WriteHeader(u.predictCode)
			_, _ = io.WriteString(w, u.predictBody)
			return
		}
		_ = json.NewEncoder(w).Encode(model.PredictionResult{
			PredictedPrice: 450000,
			ConfidenceLow:  405000,
			ConfidenceHigh: 495000,
			ModelInfo:      model.ModelInfo{R2Score: 0.92, MAPE: 8.5},
		})
	})
	return mux
}

type memRecorder struct {
	mu    sync.Mutex
	saved []model.Prediction
}

func (m *memRecorder) PutPrediction(p model.Prediction) (model.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = "rec-1"
	m.saved = append(m.saved, p)
	return p, nil
}

type harness struct {
	up     *upstream
	server *web.Server
	url    string
	client *http.Client
}

func newHarness(t *testing.T, up *upstream, rec web.Recorder) *harness {
	t.Helper()
	api := httptest.NewServer(up.handler())
	t.Cleanup(api.Close)

	srv, err := web.New(pricing.NewClient(api.URL, 0, 0, false), web.Options{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		SessionTTL: time.Hour,
		Recorder:   rec,
		Now:        func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	front := httptest.NewServer(srv.Handler())
	t.Cleanup(front.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{up: up, server: srv, url: front.URL, client: &http.Client{Jar: jar}}
}

func (h *harness) get(t *testing.T) string {
	t.Helper()
	resp, err := h.client.Get(h.url + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (h *harness) post(t *testing.T, form url.Values) string {
	t.Helper()
	resp, err := h.client.PostForm(h.url+"/", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func fullForm() url.Values {
	return url.Values{
		"marka":             {"Toyota"},
		"model":             {"Corolla"},
		"seri":              {"1.6 Dream"},
		"yil_temiz":         {"2020"},
		"yakitTuru":         {"Benzin"},
		"vitesTipi":         {"Otomatik"},
		"kasaTipi":          {"Sedan"},
		"motor_gucu_temiz":  {"132"},
		"motor_hacmi_temiz": {"1600"},
		"km_temiz":          {"45000"},
		"action":            {"predict"},
	}
}

// selectCascade walks brand → model → series the way the page does.
func (h *harness) selectCascade(t *testing.T) {
	t.Helper()
	h.get(t)
	h.post(t, url.Values{"marka": {"Toyota"}})
	h.post(t, url.Values{"marka": {"Toyota"}, "model": {"Corolla"}})
}

// ─── Page mount ───────────────────────────────────────────────────────────────

func TestMountRendersCatalog(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	body := h.get(t)

	assert.Contains(t, body, `<option value="Toyota">Toyota</option>`)
	assert.Contains(t, body, `<option value="Otomatik">Otomatik</option>`)
	assert.Contains(t, body, `<option value="2026">2026</option>`)
	assert.Contains(t, body, `<option value="1990">1990</option>`)
	assert.NotContains(t, body, `<option value="1989">`)
	assert.Contains(t, body, "Araç bilgilerini doldurup tahmin butonuna tıklayın.")
	assert.NotContains(t, body, "error-banner")
	assert.NotRegexp(t, `value="predict"[^>]*disabled`, body)
	assert.Equal(t, 1, h.server.Sessions().Len())
}

func TestMountCatalogFailure(t *testing.T) {
	h := newHarness(t, &upstream{failOptions: true}, nil)
	body := h.get(t)

	assert.Contains(t, body, "error-banner")
	assert.Contains(t, body, "Seçenekler yüklenemedi")
	assert.NotContains(t, body, `<option value="Toyota">`)
	assert.Regexp(t, `value="predict"[^>]*disabled`, body)
}

func TestEachMountIsAFreshPage(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	h.selectCascade(t)
	body := h.get(t)

	assert.NotContains(t, body, `<option value="Corolla"`)
	assert.Equal(t, 2, h.server.Sessions().Len())
}

// ─── Cascading selects ────────────────────────────────────────────────────────

func TestBrandSelectionLoadsModels(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	h.get(t)
	body := h.post(t, url.Values{"marka": {"Toyota"}})

	assert.Contains(t, body, `<option value="Toyota" selected>Toyota</option>`)
	assert.Contains(t, body, `<option value="Corolla">Corolla</option>`)
	assert.NotContains(t, body, `<option value="1.6 Dream">`)
}

func TestModelSelectionLoadsSeries(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	h.get(t)
	h.post(t, url.Values{"marka": {"Toyota"}})
	body := h.post(t, url.Values{"marka": {"Toyota"}, "model": {"Corolla"}})

	assert.Contains(t, body, `<option value="Corolla" selected>Corolla</option>`)
	assert.Contains(t, body, `<option value="1.6 Dream">1.6 Dream</option>`)
}

func TestBrandChangeResetsModelAndSeries(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	h.selectCascade(t)
	// The browser still posts the old model and series with the new brand.
	body := h.post(t, url.Values{"marka": {"BMW"}, "model": {"Corolla"}, "seri": {"1.6 Dream"}})

	assert.Contains(t, body, `<option value="3 Serisi">3 Serisi</option>`)
	assert.NotContains(t, body, `<option value="Corolla"`)
	assert.NotContains(t, body, `<option value="1.6 Dream"`)
}

func TestClearingBrandClearsLists(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	h.selectCascade(t)
	body := h.post(t, url.Values{"marka": {""}})

	assert.NotContains(t, body, `<option value="Corolla"`)
	assert.NotContains(t, body, `<option value="1.6 Dream"`)
	assert.Regexp(t, `name="model"[^>]*disabled`, body)
}

// ─── Prediction ───────────────────────────────────────────────────────────────

func TestPredictSuccess(t *testing.T) {
	up := &upstream{}
	rec := &memRecorder{}
	h := newHarness(t, up, rec)
	h.selectCascade(t)
	body := h.post(t, fullForm())

	assert.Contains(t, body, "₺450.000")
	assert.Contains(t, body, "₺405.000")
	assert.Contains(t, body, "₺495.000")
	assert.Contains(t, body, "92.0%")
	assert.Contains(t, body, "±8.5%")
	assert.Contains(t, body, "Bu tahmin piyasa koşullarına göre değişiklik gösterebilir.")
	assert.NotContains(t, body, "error-banner")

	up.mu.Lock()
	sent := up.lastPredict
	up.mu.Unlock()
	want := map[string]interface{}{
		"marka": "Toyota", "model": "Corolla", "seri": "1.6 Dream",
		"yakitTuru": "Benzin", "vitesTipi": "Otomatik", "kasaTipi": "Sedan",
		"renk": "", "cekisTipi": "", "il": "",
		"km_temiz": 45000.0, "yil_temiz": 2020.0,
		"motor_gucu_temiz": 132.0, "motor_hacmi_temiz": 1600.0,
		"hasar_skoru":               0.0,
		"orjinal_parça_sayısı":      14.0,
		"lokal_boyalı_parça_sayısı": 0.0,
		"boyalı_parça_sayısı":       0.0,
		"değişen_parça_sayısı":      0.0,
	}
	assert.Equal(t, want, sent)

	require.Len(t, rec.saved, 1)
	assert.Equal(t, "web", rec.saved[0].Source)
	assert.Equal(t, 450000.0, rec.saved[0].Result.PredictedPrice)
}

func TestPredictServerDetailShownVerbatim(t *testing.T) {
	up := &upstream{predictCode: http.StatusUnprocessableEntity, predictBody: `{"detail": "geçersiz marka"}`}
	rec := &memRecorder{}
	h := newHarness(t, up, rec)
	h.selectCascade(t)
	body := h.post(t, fullForm())

	assert.Contains(t, body, `<span>geçersiz marka</span>`)
	assert.NotContains(t, body, "Tahmin hatası")
	assert.NotContains(t, body, "₺")
	assert.Empty(t, rec.saved)
}

func TestPredictFallbackMessage(t *testing.T) {
	up := &upstream{predictCode: http.StatusInternalServerError, predictBody: "<html>oops</html>"}
	h := newHarness(t, up, nil)
	h.selectCascade(t)
	body := h.post(t, fullForm())

	assert.Contains(t, body, "Tahmin hatası")
}

func TestPredictInvalidFormNeverCallsService(t *testing.T) {
	up := &upstream{}
	h := newHarness(t, up, nil)
	h.get(t)
	form := fullForm()
	form.Set("km_temiz", "-5")
	body := h.post(t, form)

	assert.Contains(t, body, "error-banner")
	assert.Contains(t, body, "Kilometre: negatif olamaz")
	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Zero(t, up.predictHits)
}

func TestPostWithoutSessionMountsOne(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	body := h.post(t, url.Values{"marka": {"Toyota"}})

	assert.Contains(t, body, `<option value="Corolla">Corolla</option>`)
	assert.Equal(t, 1, h.server.Sessions().Len())
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	resp, err := h.client.Get(h.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	var got model.Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, model.Health{Status: "healthy", ModelLoaded: true, Version: "1.0.0"}, got)
}

func TestHealthzUnavailable(t *testing.T) {
	h := newHarness(t, &upstream{failHealth: true}, nil)
	resp, err := h.client.Get(h.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "unavailable", got["status"])
	assert.Contains(t, got["error"], "API bağlantı hatası")
}

func TestUnknownRouteIs404(t *testing.T) {
	h := newHarness(t, &upstream{}, nil)
	resp, err := h.client.Get(h.url + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
