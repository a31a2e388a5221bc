package config

import (
	"os"
	"strconv"

	"github.com/sevanet-labs/sevabot-backend/internal/logger"
)

// CommonScope is the shared knowledge scope every user's queries also search.
const CommonScope = "common"

type Config struct {
	Port string

	// Ingestion
	MaxUploadBytes int64
	ChunkSize      int
	ChunkOverlap   int

	// Retrieval
	TopK int

	// Chat
	MaxHistoryMessages     int
	MaxActiveConversations int

	// Archival
	DeleteOnArchiveFailure bool
}

func Load(log *logger.Logger) Config {
	return Config{
		Port:                   GetEnv("PORT", "8080", log),
		MaxUploadBytes:         int64(GetEnvAsInt("MAX_FILE_SIZE_MB", 10, log)) * 1024 * 1024,
		ChunkSize:              GetEnvAsInt("CHUNK_SIZE", 1000, log),
		ChunkOverlap:           GetEnvAsInt("CHUNK_OVERLAP", 200, log),
		TopK:                   GetEnvAsInt("TOP_K", 8, log),
		MaxHistoryMessages:     GetEnvAsInt("MAX_HISTORY_MESSAGES", 10, log),
		MaxActiveConversations: GetEnvAsInt("MAX_SESSIONS_PER_USER", 10, log),
		DeleteOnArchiveFailure: GetEnvAsBool("DELETE_ON_ARCHIVE_FAILURE", false, log),
	}
}

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if log != nil {
		log = log.With("env_var", key)
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return i
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	if log != nil {
		log = log.With("env_var", key)
	}
	valStr, ok := os.LookupEnv(key)
	if !ok {
		if log != nil {
			log.Debug("Environment variable not found, using default", "default", defaultVal)
		}
		return defaultVal
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as bool, using default", "provided", valStr, "default", defaultVal, "error", err)
		}
		return defaultVal
	}
	return b
}
