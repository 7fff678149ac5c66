package handlers

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"energy_console/internal/service"

	"github.com/gin-gonic/gin"
)

type observed struct {
	route  string
	status int
}

type fakeHTTPObserver struct {
	mu   sync.Mutex
	seen []observed
}

func (f *fakeHTTPObserver) ObserveHTTP(route string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, observed{route, status})
}

func (f *fakeHTTPObserver) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
}

func TestAccessLog_ObservesRouteTemplateAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &fakeHTTPObserver{}
	mon := &mockMonitoring{}
	h := NewHandler(&service.Service{Monitoring: mon}, nil, obs)
	r := h.InitRoutes()

	for _, u := range []string{"/api/v1/series/power", "/nowhere", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, u, nil))
	}

	want := []observed{
		{"/api/v1/series/:name", http.StatusNotFound},
		{"unmatched", http.StatusNotFound},
		{"/health", http.StatusOK},
	}
	if len(obs.seen) != len(want) {
		t.Fatalf("observed %+v, want %+v", obs.seen, want)
	}
	for i := range want {
		if obs.seen[i] != want[i] {
			t.Fatalf("observation %d = %+v, want %+v", i, obs.seen[i], want[i])
		}
	}
}

func TestMetricsRoute_OnlyWithObserver(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := NewHandler(&service.Service{}, nil, &fakeHTTPObserver{}).InitRoutes()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "# metrics\n" {
		t.Fatalf("metrics status=%d body=%q", w.Code, w.Body.String())
	}

	r = newTestRouter(&service.Service{})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without observer, got %d", w.Code)
	}
}
