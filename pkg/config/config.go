package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	Environment     string
	FirebaseProject string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HeartbeatTimeout      time.Duration
	RegistrySweepInterval time.Duration
	OfferSweepInterval    time.Duration
	ViewerBroadcastEvery  time.Duration

	OfferTTL       time.Duration
	TypingTTL      time.Duration
	OfferFeedSize  int
	StreamChatSize int

	ChatRateLimit  int
	ChatRateWindow time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		HeartbeatTimeout:      getEnvAsSeconds("HEARTBEAT_TIMEOUT_SECONDS", 120),
		RegistrySweepInterval: getEnvAsSeconds("REGISTRY_SWEEP_SECONDS", 30),
		OfferSweepInterval:    getEnvAsSeconds("OFFER_SWEEP_SECONDS", 60),
		ViewerBroadcastEvery:  getEnvAsSeconds("VIEWER_BROADCAST_SECONDS", 10),

		OfferTTL:       getEnvAsSeconds("OFFER_TTL_SECONDS", 24*60*60),
		TypingTTL:      getEnvAsSeconds("TYPING_TTL_SECONDS", 5),
		OfferFeedSize:  getEnvAsInt("OFFER_FEED_SIZE", 20),
		StreamChatSize: getEnvAsInt("STREAM_CHAT_SIZE", 100),

		ChatRateLimit:  getEnvAsInt("CHAT_RATE_LIMIT", 10),
		ChatRateWindow: getEnvAsSeconds("CHAT_RATE_WINDOW_SECONDS", 60),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Second
}
