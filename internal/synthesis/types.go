package synthesis

import "time"

const (
	defaultURL              = "wss://tts.doubao.com/ws"
	defaultOrigin           = "https://doubao.com"
	defaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	defaultIdleTimeout      = 10 * time.Second
	defaultRequestTimeout   = 20 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

type Config struct {
	URL       string
	Cookie    string
	Origin    string
	UserAgent string

	IdleTimeout      time.Duration
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
}

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

type Stats struct {
	State        State
	ConnectionID string
	Pending      int
	Buffers      int
}

func normalizeConfig(cfg Config) Config {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Origin == "" {
		cfg.Origin = defaultOrigin
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return cfg
}
