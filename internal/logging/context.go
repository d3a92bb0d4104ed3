package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Gin context keys shared with the API middleware
const (
	CtxRequestID = "request_id"
	CtxStartTime = "start_time"
	CtxUserID    = "user_id"
	CtxAPIKeyID  = "api_key_id"
)

func withGinContext(c *gin.Context, e *zerolog.Event) *zerolog.Event {
	if c == nil {
		return e
	}
	if v, ok := c.Get(CtxRequestID); ok {
		if s, ok2 := v.(string); ok2 && s != "" {
			e.Str("request_id", s)
		}
	}
	if v, ok := c.Get(CtxUserID); ok {
		if id, ok2 := v.(int64); ok2 && id != 0 {
			e.Int64("user_id", id)
		}
	}
	if v, ok := c.Get(CtxAPIKeyID); ok {
		if id, ok2 := v.(int64); ok2 && id != 0 {
			e.Int64("api_key_id", id)
		}
	}
	if v, ok := c.Get(CtxStartTime); ok {
		if t, ok2 := v.(time.Time); ok2 {
			e.Dur("duration", time.Since(t))
		}
	}
	return e
}

func Info(c *gin.Context) *zerolog.Event  { return withGinContext(c, log.Info()) }
func Debug(c *gin.Context) *zerolog.Event { return withGinContext(c, log.Debug()) }
func Warn(c *gin.Context) *zerolog.Event  { return withGinContext(c, log.Warn()) }
func Error(c *gin.Context) *zerolog.Event { return withGinContext(c, log.Error()) }
