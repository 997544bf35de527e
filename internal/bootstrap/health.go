package bootstrap

import (
	"github.com/eleven-am/tts-gateway/internal/health"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/eleven-am/tts-gateway/internal/usage"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const version = "1.0.0"

func ProvideHealthHandler(store *usage.Store, mgr *synthesis.Manager) *health.Handler {
	return health.NewHandler(store, mgr, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	e.Use(h.CountRequests())
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
