package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ConfigurationError reports missing or invalid process configuration.
// It is fatal: main refuses to start without valid config.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

type Config struct {
	Port       int
	DataPath   string
	DBPath     string
	UploadPath string
	LogPath    string

	// Provider credentials. OpenAI is required (Whisper transcription and the
	// default translation engine). Gemini and DeepL enable optional engines.
	OpenAIAPIKey string
	GeminiAPIKey string
	DeepLAPIKey  string

	WhisperModel string
	ChatModel    string

	JWTSecret   string
	CORSOrigins []string

	MaxUploadBytes       int64
	TranslateConcurrency int
}

// Load builds the process-wide configuration from the environment, reading an
// optional .env file first. It is called exactly once at startup; the returned
// object is passed by reference into each component and never mutated after.
func Load() (*Config, error) {
	// Missing .env is fine, real deployments set env vars directly.
	_ = godotenv.Load()

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		return nil, &ConfigurationError{Key: "OPENAI_API_KEY", Reason: "not set"}
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, &ConfigurationError{Key: "PORT", Reason: "not a number"}
	}

	dataPath := getEnv("DATA_PATH", "./data")

	// JWT secret: require explicit setting or generate random
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, &ConfigurationError{Key: "JWT_SECRET", Reason: "random generation failed"}
		}
		jwtSecret = hex.EncodeToString(b)
		logrus.Warn("JWT_SECRET not set, using random secret; run tokens will not survive restarts")
	}

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		corsOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "2147483648"), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, &ConfigurationError{Key: "MAX_UPLOAD_BYTES", Reason: "not a positive number"}
	}

	concurrency, err := strconv.Atoi(getEnv("TRANSLATE_CONCURRENCY", "3"))
	if err != nil || concurrency < 1 {
		return nil, &ConfigurationError{Key: "TRANSLATE_CONCURRENCY", Reason: "not a positive number"}
	}

	return &Config{
		Port:                 port,
		DataPath:             dataPath,
		DBPath:               getEnv("DB_PATH", dataPath+"/runs.db"),
		UploadPath:           getEnv("UPLOAD_PATH", dataPath+"/uploads"),
		LogPath:              getEnv("LOG_PATH", dataPath+"/logs"),
		OpenAIAPIKey:         openAIKey,
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		DeepLAPIKey:          os.Getenv("DEEPL_API_KEY"),
		WhisperModel:         getEnv("WHISPER_MODEL", "whisper-1"),
		ChatModel:            getEnv("CHAT_MODEL", "gpt-4"),
		JWTSecret:            jwtSecret,
		CORSOrigins:          corsOrigins,
		MaxUploadBytes:       maxUpload,
		TranslateConcurrency: concurrency,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
