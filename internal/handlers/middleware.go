package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates or assigns an X-Request-Id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request. Bodies and headers are
// never logged.
func AccessLog(log zerolog.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		log.Info().
			Str("method", p.Method).
			Str("path", p.Path).
			Int("status", p.StatusCode).
			Dur("latency", p.Latency).
			Str("client_ip", p.ClientIP).
			Interface("request_id", p.Keys["request_id"]).
			Msg("http request")
		return ""
	})
}
