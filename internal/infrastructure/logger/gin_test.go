package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// requestLog finds the access log entry among the recorded entries.
func requestLog(t *testing.T, recorded *observer.ObservedLogs) *observer.LoggedEntry {
	t.Helper()
	logs := recorded.All()
	require.NotEmpty(t, logs)
	for i := range logs {
		if logs[i].Message == "HTTP Request" {
			return &logs[i]
		}
	}
	t.Fatal("no HTTP Request entry logged")
	return nil
}

func TestGinMiddleware(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	zapLogger := zap.New(core)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	router.Use(GinMiddleware(zapLogger))
	router.GET("/livestock/batches", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/livestock/batches?owner_id=abc", nil)
	req.Header.Set("User-Agent", "ledger-client/1.0")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	entry := requestLog(t, recorded)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)

	fields := make(map[string]zapcore.Field)
	for _, f := range entry.Context {
		fields[f.Key] = f
	}
	for _, key := range []string{"status", "latency", "client_ip", "user_agent", "method", "path"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "req-42", fields["request_id"].String)
	assert.Contains(t, fields["query"].String, "owner_id=abc")
}

func TestGinMiddleware_StatusLevels(t *testing.T) {
	cases := []struct {
		name   string
		status int
		level  zapcore.Level
	}{
		{"client errors log as warnings", http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{"server errors log as errors", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.InfoLevel)
			zapLogger := zap.New(core)

			router := gin.New()
			router.Use(GinMiddleware(zapLogger))
			router.POST("/livestock/transactions", func(c *gin.Context) {
				c.JSON(tc.status, gin.H{"error": "nope"})
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/livestock/transactions", nil)
			router.ServeHTTP(w, req)

			entry := requestLog(t, recorded)
			assert.Equal(t, tc.level, entry.Level)
		})
	}
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	zapLogger := zap.New(core)

	router := gin.New()
	router.Use(Recovery(zapLogger))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/panic", nil)

	assert.NotPanics(t, func() {
		router.ServeHTTP(w, req)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	logs := recorded.All()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Message, "Panic recovered")
}

func TestGetGinLogger(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	zapLogger := zap.New(core)

	var fromContext *zap.Logger
	router := gin.New()
	router.Use(GinMiddleware(zapLogger))
	router.GET("/batches", func(c *gin.Context) {
		fromContext = GetGinLogger(c)
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/batches", nil)
	router.ServeHTTP(w, req)

	assert.NotNil(t, fromContext)
}

func TestGetGinLogger_NotSet(t *testing.T) {
	var fromContext *zap.Logger
	router := gin.New()
	router.GET("/batches", func(c *gin.Context) {
		fromContext = GetGinLogger(c)
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/batches", nil)
	router.ServeHTTP(w, req)

	// Falls back to a no-op logger instead of nil.
	require.NotNil(t, fromContext)
	assert.NotPanics(t, func() {
		fromContext.Info("test")
	})
}
