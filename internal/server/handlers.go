package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yusheng929/steam-plugin/internal/logger"
	"github.com/yusheng929/steam-plugin/internal/models"
	"github.com/yusheng929/steam-plugin/internal/steamapi"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 请求体上限
const maxBodyBytes = 1 << 20

// forward relays /api/<path> to the Steam Web API through the key pool.
// Only the first value of a repeated query parameter is forwarded; Steam's
// list parameters (steamids, appids) take comma-separated values instead.
func (s *Server) forward(c *gin.Context) {
	req := models.Request{
		Path:   c.Param("path"),
		Method: c.Request.Method,
	}

	query := c.Request.URL.Query()
	if len(query) > 0 {
		req.Params = make(map[string]string, len(query))
		for k, v := range query {
			req.Params[k] = v[0]
		}
	}

	if c.Request.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(400, errorBody("failed to read request body", "invalid_body"))
			return
		}
		req.Body = body
		if ct := c.GetHeader("Content-Type"); ct != "" {
			req.Header = map[string]string{"Content-Type": ct}
		}
	}

	body, err := s.steam.Do(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("Steam request failed",
			zap.String("path", req.Path),
			zap.Int("status", status),
			zap.Error(err))
		c.JSON(status, errorBody(errorMessage(status), errorCode(status)))
		return
	}

	c.Data(200, "application/json; charset=utf-8", body)
}

// statusFor maps a client error onto the status returned to the caller.
func statusFor(err error) int {
	if errors.Is(err, steamapi.ErrRateLimited) {
		return http.StatusTooManyRequests
	}
	if code := steamapi.StatusCode(err); code != 0 {
		return code
	}
	return http.StatusBadGateway
}

// errorMessage is the caller-facing text for status. Error details stay in
// the server log.
func errorMessage(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "all api keys are rate limited, retry later"
	case http.StatusBadGateway:
		return "steam api is unreachable"
	default:
		return "steam api returned " + strconv.Itoa(status)
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream_unreachable"
	default:
		return "upstream_error"
	}
}

func (s *Server) getUsage(c *gin.Context) {
	report, err := s.steam.Report(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to build usage report", zap.Error(err))
		c.JSON(500, errorBody("failed to read usage", "storage_error"))
		return
	}
	c.JSON(200, report)
}

// getLogs returns buffered log entries, newest first.
// Query: limit (default 100), level (default debug).
func (s *Server) getLogs(c *gin.Context) {
	if s.logs == nil {
		c.JSON(200, gin.H{"logs": []logger.LogEntry{}})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 0 {
		c.JSON(400, errorBody("invalid limit", "invalid_query"))
		return
	}

	level := zapcore.DebugLevel
	if raw := c.Query("level"); raw != "" {
		if level, err = zapcore.ParseLevel(raw); err != nil {
			c.JSON(400, errorBody("invalid level", "invalid_query"))
			return
		}
	}

	c.JSON(200, gin.H{"logs": s.logs.Recent(limit, level)})
}

func (s *Server) clearLogs(c *gin.Context) {
	if s.logs != nil {
		s.logs.Clear()
	}
	c.JSON(200, gin.H{"success": true})
}
