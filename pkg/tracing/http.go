package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"txfanout/pkg/logging"
)

// GinMiddleware traces inbound HTTP requests through otelgin, naming spans
// after the matched route.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceLogFields copies the active span's trace id into the request context
// so log lines from the handler carry the same id as the exported span.
// Register it after GinMiddleware.
func TraceLogFields() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
			ctx := logging.WithTraceID(c.Request.Context(), sc.TraceID().String())
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
