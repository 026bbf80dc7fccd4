package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"tcees-validator/internal/domain"
)

const (
	defaultMaxFileMB   = 20
	defaultMaxParallel = 3
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort         string
	LogLevel           string
	APISecret          string
	MaxFileMB          int64
	PortalURL          string
	QuickMode          bool
	DisableChromeProxy bool
	SaveDebugHTML      bool
	DebugDir           string
	MaxParallel        int
	AllowedOrigins     []string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Render and most PaaS provide the listening port via PORT.
		ServerPort:         getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "5001")),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		APISecret:          os.Getenv("TCEES_API_SECRET"),
		MaxFileMB:          getEnvInt64OrDefault("TCEES_MAX_FILE_MB", defaultMaxFileMB),
		PortalURL:          getEnvOrDefault("TCEES_PORTAL_URL", domain.DefaultPortalURL),
		QuickMode:          getEnvFlag("TCEES_QUICK_MODE"),
		DisableChromeProxy: getEnvFlag("TCEES_DISABLE_CHROME_PROXY"),
		SaveDebugHTML:      getEnvFlag("TCEES_SAVE_DEBUG_HTML"),
		DebugDir:           os.Getenv("TCEES_DEBUG_DIR"),
		MaxParallel:        resolveParallelism(int(getEnvInt64OrDefault("TCEES_MAX_PARALLEL", defaultMaxParallel))),
		AllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetAPISecret returns the shared secret expected in X-API-Secret.
// An empty secret disables the check.
func (c *AppConfig) GetAPISecret() string {
	return c.APISecret
}

// GetMaxFileMB returns the upload limit in megabytes
func (c *AppConfig) GetMaxFileMB() int64 {
	return c.MaxFileMB
}

// GetMaxFileSize returns the upload limit in bytes
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileMB * 1024 * 1024
}

// GetPortalURL returns the conformity portal address
func (c *AppConfig) GetPortalURL() string {
	return c.PortalURL
}

// IsQuickMode reports whether shorter portal waits are used
func (c *AppConfig) IsQuickMode() bool {
	return c.QuickMode
}

// IsChromeProxyDisabled reports whether Chrome should bypass any proxy
func (c *AppConfig) IsChromeProxyDisabled() bool {
	return c.DisableChromeProxy
}

// ShouldSaveDebugHTML reports whether the final page HTML is dumped to disk
func (c *AppConfig) ShouldSaveDebugHTML() bool {
	return c.SaveDebugHTML
}

// GetDebugDir returns where debug artifacts are written
func (c *AppConfig) GetDebugDir() string {
	return c.DebugDir
}

// GetMaxParallel returns the batch fan-out limit
func (c *AppConfig) GetMaxParallel() int {
	return c.MaxParallel
}

// GetAllowedOrigins returns the CORS origin allow-list
func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFlag(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveParallelism clamps the batch fan-out to [1, MaxBatchSize].
// Zero or negative derives it from GOMAXPROCS, which automaxprocs adjusts for containers.
func resolveParallelism(n int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0) / 2
	}
	if n < 1 {
		return 1
	}
	if n > domain.MaxBatchSize {
		return domain.MaxBatchSize
	}
	return n
}
