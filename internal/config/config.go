package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	SessionKeyPrefix string
	DemoLoginEnabled bool

	ConnectDelay     time.Duration
	ParticipantDelay time.Duration
	ChatReplyDelay   time.Duration
	SessionTick      time.Duration

	SweepJobEnabled  bool
	SweepJobInterval time.Duration
	SessionIdleAfter time.Duration

	SpeechLanguage string

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),

		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		JWTSecret:       getenv("JWT_SECRET", ""),
		JWTIssuer:       getenv("JWT_ISSUER", "neis-platform"),
		AccessTokenTTL:  getenvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getenvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		SessionKeyPrefix: getenv("SESSION_KEY_PREFIX", "neis-user"),
		DemoLoginEnabled: getenvBool("DEMO_LOGIN_ENABLED", true),

		ConnectDelay:     getenvDuration("SESSION_CONNECT_DELAY", 2*time.Second),
		ParticipantDelay: getenvDuration("SESSION_PARTICIPANT_DELAY", 3*time.Second),
		ChatReplyDelay:   getenvDuration("SESSION_CHAT_REPLY_DELAY", 2*time.Second),
		SessionTick:      getenvDuration("SESSION_TICK", time.Second),

		SweepJobEnabled:  getenvBool("SESSION_SWEEP_ENABLED", true),
		SweepJobInterval: getenvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		SessionIdleAfter: getenvDuration("SESSION_IDLE_AFTER", 2*time.Hour),

		SpeechLanguage: getenv("SPEECH_LANGUAGE", "en-AU"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
