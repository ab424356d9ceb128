package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"golang.org/x/sys/unix"
)

// Config stores the application configuration.
type Config struct {
	Port    string
	RoomIDs []string

	// AdminPassword is the single shared secret for become-admin.
	AdminPassword string

	// DownloadDir is where resolved audio and waveform files land. Must be
	// writable and end with a path separator.
	DownloadDir string
	// YtDlpPath is the yt-dlp executable used for metadata and downloads.
	YtDlpPath string
	// AudiowaveformPath is the audiowaveform executable used to render
	// waveform JSON next to each download.
	AudiowaveformPath string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "3555"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		DownloadDir:       getEnv("DOWNLOAD_DIR", ""),
		YtDlpPath:         getEnv("YT_DLP_PATH", ""),
		AudiowaveformPath: getEnv("AUDIOWAVEFORM_PATH", ""),
		RedisHost:         getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPath:           getEnv("LOG_PATH", ""),
	}

	for _, id := range strings.Split(getEnv("ROOM_IDS", "1"), ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			cfg.RoomIDs = append(cfg.RoomIDs, id)
		}
	}

	return cfg
}

// Validate checks the parts of the configuration the server cannot run
// without. All problems are reported at once.
func (c *Config) Validate() error {
	var errs []string

	if c.AdminPassword == "" {
		errs = append(errs, "ADMIN_PASSWORD ENV variable is missing")
	}

	switch {
	case c.DownloadDir == "":
		errs = append(errs, "DOWNLOAD_DIR ENV variable is missing")
	case !strings.HasSuffix(c.DownloadDir, string(os.PathSeparator)):
		errs = append(errs, "DOWNLOAD_DIR ENV variable should end with a path separator")
	case !hasFsAccess(c.DownloadDir, unix.W_OK):
		errs = append(errs, "DOWNLOAD_DIR is not writable")
	}

	switch {
	case c.YtDlpPath == "":
		errs = append(errs, "YT_DLP_PATH ENV variable is missing")
	case !hasFsAccess(c.YtDlpPath, unix.X_OK):
		errs = append(errs, "YT_DLP_PATH is not executable")
	}

	switch {
	case c.AudiowaveformPath == "":
		errs = append(errs, "AUDIOWAVEFORM_PATH ENV variable is missing")
	case !hasFsAccess(c.AudiowaveformPath, unix.X_OK):
		errs = append(errs, "AUDIOWAVEFORM_PATH is not executable")
	}

	if len(c.RoomIDs) == 0 {
		errs = append(errs, "ROOM_IDS ENV variable must name at least one room")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid ENV / config:\n=> %s", strings.Join(errs, "\n=> "))
	}
	return nil
}

// RedisAddr builds the host:port address for the Redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func hasFsAccess(path string, mode uint32) bool {
	return unix.Access(path, mode) == nil
}
