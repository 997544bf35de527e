package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/tts-gateway/internal/metrics"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
	"github.com/eleven-am/tts-gateway/internal/usage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func ProvideRedisClient(lc fx.Lifecycle, cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func ProvideUsageStore(redisClient *redis.Client) *usage.Store {
	return usage.NewStore(redisClient)
}

// ProvideSynthesisManager builds the shared backend connection manager and
// closes its socket on shutdown.
func ProvideSynthesisManager(lc fx.Lifecycle, cfg *Config, logger *slog.Logger, m *metrics.Metrics) (*synthesis.Manager, error) {
	mgr, err := synthesis.New(cfg.Synthesis(), logger, m)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return mgr.Close()
		},
	})
	return mgr, nil
}

var InfrastructureModule = fx.Options(
	fx.Provide(
		ProvideRedisClient,
		ProvideRegistry,
		ProvideMetrics,
		ProvideUsageStore,
		ProvideSynthesisManager,
	),
)
