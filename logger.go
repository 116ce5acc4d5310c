package flagsmith

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyLogger    contextKey = "logger"
	contextKeyStartTime contextKey = "startTime"
)

// restySlogLogger implements a [resty.Logger] using a [slog.Logger].
type restySlogLogger struct {
	logger *slog.Logger
}

func (s restySlogLogger) Errorf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	s.logger.Error(msg)
}

func (s restySlogLogger) Warnf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	s.logger.Warn(msg)
}

func (s restySlogLogger) Debugf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	s.logger.Debug(msg)
}

func newRestyLogRequestMiddleware(logger *slog.Logger) resty.RequestMiddleware {
	return func(c *resty.Client, req *resty.Request) error {
		// Create a child logger with request metadata
		reqLogger := logger.WithGroup("http").With(
			"method", req.Method,
			"url", req.URL,
			"request_id", uuid.NewString(),
		)
		reqLogger.Debug("request")

		// Store the logger and the start time in this request's context, and use them in the response
		ctx := context.WithValue(req.Context(), contextKeyLogger, reqLogger)
		req.SetContext(context.WithValue(ctx, contextKeyStartTime, time.Now()))

		return nil
	}
}

func newRestyLogResponseMiddleware(logger *slog.Logger) resty.ResponseMiddleware {
	return func(client *resty.Client, resp *resty.Response) error {
		reqLogger, _ := resp.Request.Context().Value(contextKeyLogger).(*slog.Logger)
		startTime, _ := resp.Request.Context().Value(contextKeyStartTime).(time.Time)

		if reqLogger == nil {
			reqLogger = logger
		}
		reqLogger = reqLogger.With(
			slog.Int("status", resp.StatusCode()),
			slog.Duration("duration", time.Since(startTime)),
			slog.Int64("content_length", resp.Size()),
		)
		if resp.IsError() {
			reqLogger.Error("error response")
		} else {
			reqLogger.Debug("response")
		}
		return nil
	}
}
