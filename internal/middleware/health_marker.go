package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis keys shared with the health service and the reset endpoint.
const (
	KeyReqTotal  = "health:api:req_total"
	KeyReqErrors = "health:api:req_errors"
	KeyResTime   = "health:api:res_time_total"
	KeyResCount  = "health:api:res_count"
	KeyStartTime = "health:api:start_time"
	KeyLastReq   = "health:api:last_request"
	KeyErrorLog  = "health:api:error_log"
)

// ErrorLogSize caps the number of 5xx entries kept in KeyErrorLog.
const ErrorLogSize = 50

// HealthMarker records request counters in Redis and keeps a short log of
// 5xx responses. Health routes are not counted. Redis failures
// never fail the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		ctx := context.Background()
		lastReq, _ := json.Marshal(map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		})
		pipe := rdb.Pipeline()
		pipe.Set(ctx, KeyLastReq, lastReq, 0)
		pipe.Incr(ctx, KeyReqTotal)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Debug().Err(err).Msg("health marker: redis unavailable")
		}

		err := c.Next()

		// Streaming responses finish after this returns; their duration is the setup time.
		ms := time.Since(start).Milliseconds()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		pipe = rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(ms))
		if status >= fiber.StatusInternalServerError {
			pipe.Incr(ctx, KeyReqErrors)
			entry, _ := json.Marshal(map[string]interface{}{
				"time":     time.Now(),
				"path":     c.OriginalURL(),
				"method":   c.Method(),
				"status":   status,
				"trace_id": GetTraceID(c),
			})
			pipe.LPush(ctx, KeyErrorLog, entry)
			pipe.LTrim(ctx, KeyErrorLog, 0, ErrorLogSize-1)
		}
		if _, perr := pipe.Exec(ctx); perr != nil {
			log.Debug().Err(perr).Msg("health marker: redis unavailable")
		}
		return err
	}
}
