package middleware

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger writes one structured entry per request and attaches a
// request-scoped logger carrying the request id to the request context.
func RequestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		BeforeNextFunc: func(c echo.Context) {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			scoped := log.With().Str("request_id", id).Logger()
			c.SetRequest(c.Request().WithContext(scoped.WithContext(c.Request().Context())))
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			if v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			actor, _ := c.Get(ContextActorID).(string)
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("actor", actor).
				Msg("request")
			return nil
		},
	})
}
