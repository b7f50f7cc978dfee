package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/anthive/worldsim/internal/logging"
)

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
// Использует глобальный logging пакет (Info/Debug).
//
// Trace-ID берётся из активного OpenTelemetry-спана, если он есть,
// иначе генерируется заново; значение кладётся в контекст Gin под
// ключом trace_id и доступно обработчикам.
type RequestLogger struct {
	skip map[string]struct{}
}

// NewRequestLogger создаёт логгер запросов. Пути из skipPaths
// (обычно /health и /metrics) не логируются, чтобы не засорять журнал
// опросами мониторинга.
func NewRequestLogger(skipPaths ...string) *RequestLogger {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &RequestLogger{skip: skip}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		var traceID string
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = uuid.NewString()
		}
		c.Set("trace_id", traceID)

		if _, skip := rl.skip[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		clientIP := c.ClientIP()

		logging.Debug("[HTTP] ▶ %s %s ip=%s trace=%s", method, path, clientIP, traceID)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		logging.Info("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, traceID)
	}
}
