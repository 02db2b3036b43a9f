package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pvzzle/tracechain/internal/chain"
	"github.com/pvzzle/tracechain/internal/storage"
)

func registerMiddlewares(e *echo.Echo) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: middleware.DefaultCORSConfig.AllowHeaders,
		AllowMethods: middleware.DefaultCORSConfig.AllowMethods,
	}))

	e.Use(requestLogger())
	e.Use(recoverMiddleware())

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		slog.Error("request failed", "method", c.Request().Method, "url", c.Request().URL, "err", err)

		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := err.Error()

		var he *echo.HTTPError
		var failure *chain.Failure
		switch {
		case errors.As(err, &he):
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		case errors.Is(err, storage.ErrNotFound):
			code = http.StatusNotFound
		case errors.Is(err, storage.ErrInsufficientQuantity):
			code = http.StatusBadRequest
		case errors.As(err, &failure):
			// A chain-only problem with a defined store-side policy
			// is not an opaque server error.
			code = http.StatusBadGateway
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, echo.Map{"message": message})
	}
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()

			err := next(c)

			slog.Info("handled request",
				"method", c.Request().Method,
				"url", c.Request().URL,
				"status", c.Response().Status,
				"duration", time.Since(now))
			return err
		}
	}
}

func recoverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (returnErr error) {
			defer func() {
				if r := recover(); r != nil {
					if r == http.ErrAbortHandler {
						panic(r)
					}
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					stack := make([]byte, 4<<10)
					length := runtime.Stack(stack, false)
					slog.Error("recovered from panic", "err", err, "stack", string(stack[:length]))
					returnErr = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}
