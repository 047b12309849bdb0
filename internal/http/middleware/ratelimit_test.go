package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	c.Request = req

	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("key=%q", got)
	}
}

func TestNewRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if rl.getVisitor("k1") != lim {
		t.Fatal("limiter not reused")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.lookups = gcEvery - 1
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["old"]; ok {
		t.Fatal("idle bucket survived sweep")
	}
	if _, ok := rl.visitors["new"]; !ok {
		t.Fatal("new bucket missing")
	}
	if rl.lookups != 0 {
		t.Fatalf("lookup counter not reset: %d", rl.lookups)
	}
}

func TestRateLimiter_Handler429AndExempt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.5, 1, KeyByIP(), "/health")

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/posts", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "198.51.100.7:1000"
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("/posts"); w.Code != http.StatusOK {
		t.Fatalf("first request status=%d", w.Code)
	}
	w := do("/posts")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status=%d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After=%q", got)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "too_many_requests" || body["request_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}

	for i := 0; i < 3; i++ {
		if w := do("/health"); w.Code != http.StatusOK {
			t.Fatalf("exempt route limited: %d", w.Code)
		}
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	cases := []struct {
		rps  float64
		want int
	}{
		{0, 60},
		{10, 1},
		{1, 1},
		{0.25, 4},
	}
	for _, tc := range cases {
		if got := NewRateLimiter(tc.rps, 1, KeyByIP()).retryAfter(); got != tc.want {
			t.Errorf("rps=%v retryAfter=%d want %d", tc.rps, got, tc.want)
		}
	}
}
