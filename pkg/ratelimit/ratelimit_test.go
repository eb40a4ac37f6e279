package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/catfact-mailer/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDefaultWriteConfig(t *testing.T) {
	cfg := DefaultWriteConfig()
	assert.Equal(t, float64(5), cfg.Rate)
	assert.Equal(t, 10, cfg.Burst)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Minute, cfg.MaxAge)
}

func TestConfigFrom(t *testing.T) {
	t.Run("keeps defaults for unset values", func(t *testing.T) {
		cfg := ConfigFrom(config.RateLimit{})
		assert.Equal(t, DefaultWriteConfig(), cfg)
	})
	t.Run("overrides rate and burst", func(t *testing.T) {
		cfg := ConfigFrom(config.RateLimit{Rate: 0.5, Burst: 3})
		assert.Equal(t, 0.5, cfg.Rate)
		assert.Equal(t, 3, cfg.Burst)
	})
}

func TestNew(t *testing.T) {
	t.Run("creates limiter with config", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 20, CleanupInterval: time.Second, MaxAge: time.Minute})
		defer rl.Stop()

		assert.Equal(t, float64(10), rl.Config().Rate)
		assert.Equal(t, 20, rl.Config().Burst)
	})

	t.Run("sets default cleanup interval and max age if zero", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 20})
		defer rl.Stop()

		assert.Equal(t, time.Minute, rl.Config().CleanupInterval)
		assert.Equal(t, 5*time.Minute, rl.Config().MaxAge)
	})
}

func TestAllow(t *testing.T) {
	t.Run("allows requests within burst limit then blocks", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 5, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		for i := 0; i < 5; i++ {
			assert.True(t, rl.Allow("192.168.1.1"), "request %d should be allowed", i)
		}
		assert.False(t, rl.Allow("192.168.1.1"))
	})

	t.Run("tracks IPs independently", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		assert.True(t, rl.Allow("192.168.1.1"))
		assert.False(t, rl.Allow("192.168.1.1"))
		assert.True(t, rl.Allow("192.168.1.2"))
		assert.Equal(t, 2, rl.Len())
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		rl := New(Config{Rate: 20, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		assert.True(t, rl.Allow("192.168.1.1"))
		assert.False(t, rl.Allow("192.168.1.1"))
		time.Sleep(100 * time.Millisecond)
		assert.True(t, rl.Allow("192.168.1.1"))
	})
}

func newRouter(rl *IPRateLimiter) *gin.Engine {
	router := gin.New()
	router.POST("/subscribe", rl.Middleware(), func(c *gin.Context) {
		c.String(http.StatusCreated, "OK")
	})
	router.GET("/catfact", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return router
}

func TestMiddleware(t *testing.T) {
	t.Run("returns 429 with Retry-After when rate limited", func(t *testing.T) {
		rl := New(Config{Rate: 0.5, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()
		router := newRouter(rl)

		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/subscribe", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusCreated, w.Code)
		}

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/subscribe", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "Rate limit exceeded")
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("unlimited routes are unaffected", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()
		router := newRouter(rl)

		for i := 0; i < 10; i++ {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/catfact", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}
		assert.Zero(t, rl.Len())
	})

	t.Run("uses X-Forwarded-For header when configured", func(t *testing.T) {
		rl := New(Config{Rate: 1, Burst: 2, CleanupInterval: time.Hour, MaxAge: time.Hour})
		defer rl.Stop()

		router := gin.New()
		err := router.SetTrustedProxies([]string{"0.0.0.0/0", "::/0"})
		require.NoError(t, err)
		router.ForwardedByClientIP = true
		router.Use(rl.Middleware())
		router.GET("/test", func(c *gin.Context) {
			c.String(http.StatusOK, "OK")
		})

		send := func(forwardedFor string) int {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = "10.0.0.1:12345"
			req.Header.Set("X-Forwarded-For", forwardedFor)
			router.ServeHTTP(w, req)
			return w.Code
		}

		assert.Equal(t, http.StatusOK, send("192.168.1.1"))
		assert.Equal(t, http.StatusOK, send("192.168.1.1"))
		assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1"))
		assert.Equal(t, http.StatusOK, send("192.168.1.2"))
	})
}

func TestCleanup(t *testing.T) {
	t.Run("removes stale entries", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 10, CleanupInterval: 50 * time.Millisecond, MaxAge: 100 * time.Millisecond})
		defer rl.Stop()

		rl.Allow("192.168.1.1")
		rl.Allow("192.168.1.2")
		assert.Equal(t, 2, rl.Len())

		assert.Eventually(t, func() bool { return rl.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("Stop is idempotent", func(t *testing.T) {
		rl := New(Config{Rate: 10, Burst: 10})
		rl.Stop()
		assert.NotPanics(t, rl.Stop)
	})
}

func TestConcurrency(t *testing.T) {
	rl := New(Config{Rate: 1000, Burst: 1000, CleanupInterval: time.Hour, MaxAge: time.Hour})
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rl.Allow("192.168.1.1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, rl.Len())
}
