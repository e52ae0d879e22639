package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:4000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GeneratesAndKeeps(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(r, http.MethodGet, "/", nil)
	_, err := uuid.Parse(w.Body.String())
	require.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	id := uuid.NewString()
	w = do(r, http.MethodGet, "/", map[string]string{RequestIDHeader: id})
	assert.Equal(t, id, w.Body.String())

	w = do(r, http.MethodGet, "/", map[string]string{RequestIDHeader: "not-a-uuid"})
	assert.NotEqual(t, "not-a-uuid", w.Body.String())
}

func TestRealIP(t *testing.T) {
	r := gin.New()
	r.Use(RealIP())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("real_ip")) })

	cases := []struct {
		headers map[string]string
		want    string
	}{
		{map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Forwarded-For": "10.0.0.1"}, "198.51.100.1"},
		{map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{map[string]string{"X-Forwarded-For": "198.51.100.3, 10.0.0.1"}, "198.51.100.3"},
		{map[string]string{"X-Forwarded-For": "garbage"}, "203.0.113.7"},
		{nil, "203.0.113.7"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, do(r, http.MethodGet, "/", tc.headers).Body.String())
	}
}

func TestRateLimit_BlocksAfterMax(t *testing.T) {
	rdb, mr := newRedis(t)
	r := gin.New()
	r.Use(RateLimit(rdb, 2, time.Minute, KeyByIP(), nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/x", nil).Code)
	w := do(r, http.MethodPost, "/x", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(r, http.MethodPost, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/x", nil).Code)
}

func TestRateLimit_KeyByParamSeparatesAccounts(t *testing.T) {
	rdb, _ := newRedis(t)
	r := gin.New()
	r.POST("/users/:id", RateLimit(rdb, 1, time.Minute, KeyByParam("id"), nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/users/a", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/users/a", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/users/b", nil).Code)
}

func TestRateLimit_AllowAndFailOpen(t *testing.T) {
	rdb, mr := newRedis(t)
	r := gin.New()
	r.Use(RealIP(), RateLimit(rdb, 1, time.Minute, KeyByIP(), AllowPrivateIP()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	private := map[string]string{"X-Real-IP": "10.1.2.3"}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", private).Code)
	}

	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", nil).Code)
	}
}

func TestRateLimit_DisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, 1, time.Minute, KeyByIP(), nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/", nil).Code)
}

func TestAccessLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestIDMiddleware(), AccessLog(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	do(r, http.MethodGet, "/ok", nil)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])
	assert.NotEmpty(t, hook.LastEntry().Data["request_id"])

	do(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
