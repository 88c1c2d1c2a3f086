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

// Redis keys for request health counters, read by the health endpoints.
const (
	KeyReqTotal  = "health:global:req_total"
	KeyReqErrors = "health:global:req_errors"
	KeyResTime   = "health:global:res_time_total"
	KeyResCount  = "health:global:res_count"
	KeyStartTime = "health:global:start_time"
	KeyLastReq   = "health:global:last_request"
	KeyErrorLog  = "health:global:error_log"
)

const errorLogSize = 50

// ErrorEntry is one element of the server error log.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	Method  string    `json:"method"`
	Path    string    `json:"path"`
	Status  int       `json:"status"`
	Message string    `json:"message"`
	TraceID string    `json:"trace_id,omitempty"`
}

func skipHealthMarker(path string) bool {
	return path == "/" || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") || path == "/reset"
}

// HealthMarker counts requests, latency and 5xx responses in redis and keeps
// the last errorLogSize server errors. Redis failures never fail the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || skipHealthMarker(c.Path()) {
			return c.Next()
		}
		start := time.Now()
		last, _ := json.Marshal(map[string]interface{}{
			"time":   start.UTC(),
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		})

		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if err != nil && asFiberError(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		ms := float64(time.Since(start).Microseconds()) / 1000

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, perr := rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, KeyLastReq, last, 0)
			p.Incr(ctx, KeyReqTotal)
			p.Incr(ctx, KeyResCount)
			p.IncrByFloat(ctx, KeyResTime, ms)
			if status >= fiber.StatusInternalServerError {
				p.Incr(ctx, KeyReqErrors)
				msg := "Internal Server Error"
				if err != nil {
					msg = err.Error()
				}
				entry, _ := json.Marshal(ErrorEntry{
					Time: start.UTC(), Method: c.Method(), Path: c.OriginalURL(),
					Status: status, Message: msg, TraceID: GetTraceID(c),
				})
				p.LPush(ctx, KeyErrorLog, entry)
				p.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
			}
			return nil
		})
		if perr != nil {
			log.Warn().Err(perr).Msg("health counters not recorded")
		}
		return err
	}
}
