package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/tts-gateway/internal/speech"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/eleven-am/tts-gateway/internal/usage"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
)

type HandlerParams struct {
	fx.In

	SpeechHandler *speech.Handler
	Registry      *prometheus.Registry
	Config        *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")
	api.Use(speech.RateLimiter(params.Config.RateLimit()))
	params.SpeechHandler.RegisterRoutes(api)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideSpeechHandler(mgr *synthesis.Manager, store *usage.Store, cfg *Config, logger *slog.Logger) *speech.Handler {
	return speech.NewHandler(mgr, store, cfg.MaxInputLength, logger)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideSpeechHandler,
	),
	fx.Invoke(RegisterRoutes),
)
