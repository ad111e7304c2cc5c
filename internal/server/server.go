// Package server builds the echo instance and runs it inside the fx lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/pkg/apperror"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

var Module = fx.Module("server",
	fx.Provide(NewEcho),
	fx.Invoke(StartServer),
)

// multipart framing on top of the largest accepted CV
const bodyLimitSlack = 1 << 20

type EchoParams struct {
	fx.In

	Config     *config.Config
	Log        *slog.Logger
	HTTPLogger *logger.HTTPLogger
}

// NewEcho creates the echo instance with the shared middleware stack
func NewEcho(p EchoParams) *echo.Echo {
	cfg := p.Config
	log := p.Log.With(logger.Scope("http"))

	e := echo.New()
	e.Debug = cfg.Debug
	e.HideBanner = true
	e.HidePort = !cfg.Debug
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log)

	e.Pre(middleware.RemoveTrailingSlash())

	e.Use(
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}),
		middleware.RequestID(),
		requestLogger(log, p.HTTPLogger),
	)
	// CV_MAX_UPLOAD_BYTES <= 0 disables the upload limit
	if cfg.Storage.MaxUploadSize > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.Storage.MaxUploadSize+bodyLimitSlack, 10)))
	}
	e.Use(
		middleware.RecoverWithConfig(middleware.RecoverConfig{
			LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
				log.Error("panic recovered",
					logger.Error(err),
					slog.String("stack", string(stack)),
				)
				return err
			},
		}),
	)

	return e
}

// probe and scrape endpoints are not access-logged
var quietPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/ready":   true,
	"/metrics": true,
}

func requestLogger(log *slog.Logger, access *logger.HTTPLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return quietPaths[c.Request().URL.Path]
		},
		// status is only final once the error handler has written the response
		HandleError:  true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, logger.Error(v.Error))
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)

			access.LogRequest(c.RealIP(), v.Method, v.URI, v.Status, v.Latency, c.Request().UserAgent(), v.RequestID)
			return nil
		},
	})
}

// httpServer runs echo on the configured address
type httpServer struct {
	echo    *echo.Echo
	srv     *http.Server
	timeout time.Duration
	log     *slog.Logger
}

func (s *httpServer) start(context.Context) error {
	s.log.Info("listening", slog.String("addr", s.srv.Addr))
	go func() {
		err := s.echo.StartServer(s.srv)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server exited", logger.Error(err))
		}
	}()
	return nil
}

func (s *httpServer) stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	s.log.Info("draining http connections")
	return s.echo.Shutdown(ctx)
}

// StartServer serves HTTP between fx start and stop
func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, log *slog.Logger) {
	s := &httpServer{
		echo: e,
		srv: &http.Server{
			Addr:         net.JoinHostPort(cfg.ServerAddress, strconv.Itoa(cfg.ServerPort)),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		timeout: cfg.ShutdownTimeout,
		log:     log.With(logger.Scope("server")),
	}
	lc.Append(fx.StartStopHook(s.start, s.stop))
}
