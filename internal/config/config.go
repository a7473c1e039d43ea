package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TwitchClientID      string `env:"TWITCH_CLIENT_ID"`
	TwitchBotOAuthToken string `env:"TWITCH_BOT_OAUTH_TOKEN"`

	EventSubWebSocketURL   string `env:"EVENTSUB_WS_URL" default:"wss://eventsub.wss.twitch.tv/ws"`
	ForwardingWebSocketURL string `env:"FORWARDING_WS_URL"`

	// TokenSecret is the HMAC secret shared with the identity provider.
	TokenSecret string `env:"TOKEN_SECRET"`

	PendingInitTTL          time.Duration `env:"PENDING_INIT_TTL" default:"2m"`
	MetadataPublishInterval time.Duration `env:"METADATA_PUBLISH_INTERVAL" default:"5m"`
	ExternalCallTimeout     time.Duration `env:"EXTERNAL_CALL_TIMEOUT" default:"10s"`
	StreamStartPublishDelay time.Duration `env:"STREAM_START_PUBLISH_DELAY" default:"3s"`
	ForwardingPingInterval  time.Duration `env:"FORWARDING_PING_INTERVAL" default:"5m"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	HandshakeRatePerSecond  int `env:"HANDSHAKE_RATE_PER_SECOND" default:"5"`
	HandshakeBurst          int `env:"HANDSHAKE_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"TWITCH_CLIENT_ID":       cfg.TwitchClientID,
		"TWITCH_BOT_OAUTH_TOKEN": cfg.TwitchBotOAuthToken,
		"FORWARDING_WS_URL":      cfg.ForwardingWebSocketURL,
		"TOKEN_SECRET":           cfg.TokenSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.PendingInitTTL <= 0 {
		return fmt.Errorf("PENDING_INIT_TTL must be positive")
	}
	if cfg.MetadataPublishInterval <= 0 {
		return fmt.Errorf("METADATA_PUBLISH_INTERVAL must be positive")
	}
	if cfg.ExternalCallTimeout <= 0 {
		return fmt.Errorf("EXTERNAL_CALL_TIMEOUT must be positive")
	}

	return nil
}
