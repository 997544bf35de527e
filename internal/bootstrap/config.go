package bootstrap

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/eleven-am/tts-gateway/internal/speech"
	"github.com/eleven-am/tts-gateway/internal/synthesis"
)

type Config struct {
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DoubaoCookie    string `env:"DOUBAO_COOKIE,required,notEmpty"`
	DoubaoURL       string `env:"DOUBAO_WS_URL"`
	DoubaoOrigin    string `env:"DOUBAO_ORIGIN"`
	DoubaoUserAgent string `env:"DOUBAO_USER_AGENT"`

	IdleTimeout      time.Duration `env:"TTS_IDLE_TIMEOUT" envDefault:"10s"`
	RequestTimeout   time.Duration `env:"TTS_REQUEST_TIMEOUT" envDefault:"20s"`
	HandshakeTimeout time.Duration `env:"TTS_HANDSHAKE_TIMEOUT" envDefault:"10s"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`
	MaxInputLength int     `env:"MAX_INPUT_LENGTH" envDefault:"4096"`
}

func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Synthesis returns the backend settings. Empty values fall back to the
// synthesis package defaults.
func (c *Config) Synthesis() synthesis.Config {
	return synthesis.Config{
		URL:              c.DoubaoURL,
		Cookie:           c.DoubaoCookie,
		Origin:           c.DoubaoOrigin,
		UserAgent:        c.DoubaoUserAgent,
		IdleTimeout:      c.IdleTimeout,
		RequestTimeout:   c.RequestTimeout,
		HandshakeTimeout: c.HandshakeTimeout,
	}
}

func (c *Config) RateLimit() speech.RateLimiterConfig {
	rl := speech.DefaultRateLimiterConfig()
	rl.RequestsPerSecond = c.RateLimitRPS
	rl.Burst = c.RateLimitBurst
	return rl
}
