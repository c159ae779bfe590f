package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
type AppConfig struct {
	AppPort string

	// Database: DatabaseURI (full MySQL DSN) wins, then discrete DB* values;
	// with neither set SQLiteFile is used.
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLiteFile  string

	// Uploads
	UploadDir             string
	MaxUploadSizeMB       int
	MaxAttachmentsPerPost int

	RateLimitPerMinute int
	AllowedOrigins     []string

	// Gin framework configuration
	GinMode string
	GinPath string

	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Orphan file sweeping
	OrphanSweepEnabled         bool
	OrphanSweepIntervalMinutes int
	OrphanMinAgeMinutes        int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during
// boot. Precedence: config/config.json -> defaults -> environment overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// SetForTest replaces the cached configuration. Tests only.
func SetForTest(c AppConfig) {
	cfg = c
	loaded = true
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8000"
	}
	if c.SQLiteFile == "" {
		c.SQLiteFile = "postboard.db"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MaxUploadSizeMB == 0 {
		c.MaxUploadSizeMB = 10
	}
	if c.MaxAttachmentsPerPost == 0 {
		c.MaxAttachmentsPerPost = 10
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.OrphanSweepIntervalMinutes == 0 {
		c.OrphanSweepIntervalMinutes = 30
	}
	if c.OrphanMinAgeMinutes == 0 {
		c.OrphanMinAgeMinutes = 60
	}
}

// loadJSONConfig reads the JSON file into cfg if present. Returns an error
// only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		out.GinMode = getString(app, "GinMode")
		out.GinPath = getString(app, "GinPath")
	}
	if db, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(db, "DatabaseURI")
		out.DBHost = getString(db, "DBHost")
		out.DBPort = getString(db, "DBPort")
		out.DBUser = getString(db, "DBUser")
		out.DBPassword = getString(db, "DBPassword")
		out.DBName = getString(db, "DBName")
		out.SQLiteFile = getString(db, "SQLiteFile")
	}
	if up, ok := raw["uploads"].(map[string]any); ok {
		out.UploadDir = getString(up, "UploadDir")
		out.MaxUploadSizeMB = getInt(up, "MaxUploadSizeMB")
		out.MaxAttachmentsPerPost = getInt(up, "MaxAttachmentsPerPost")
		out.OrphanSweepEnabled = getBool(up, "OrphanSweepEnabled")
		out.OrphanSweepIntervalMinutes = getInt(up, "OrphanSweepIntervalMinutes")
		out.OrphanMinAgeMinutes = getInt(up, "OrphanMinAgeMinutes")
	}
	if lg, ok := raw["logging"].(map[string]any); ok {
		out.LogLevel = getString(lg, "LogLevel")
		out.LogPath = getString(lg, "LogPath")
		out.LogMaxSizeMB = getInt(lg, "LogMaxSizeMB")
		out.LogMaxBackups = getInt(lg, "LogMaxBackups")
		out.LogMaxAgeDays = getInt(lg, "LogMaxAgeDays")
		out.LogCompress = getBool(lg, "LogCompress")
	}
	return nil
}

func applyEnvOverrides(c *AppConfig) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.DatabaseURI = getEnv("DATABASE_URI", c.DatabaseURI)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnv("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.SQLiteFile = getEnv("SQLITE_FILE", c.SQLiteFile)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	overrideInt("MAX_UPLOAD_SIZE_MB", &c.MaxUploadSizeMB)
	overrideInt("MAX_ATTACHMENTS_PER_POST", &c.MaxAttachmentsPerPost)
	overrideInt("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		if len(origins) > 0 {
			c.AllowedOrigins = origins
		}
	}
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.GinPath = getEnv("GIN_PATH", c.GinPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("LOG_PATH", c.LogPath)
	overrideInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	overrideInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	overrideInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	overrideBool("LOG_COMPRESS", &c.LogCompress)
	overrideBool("ORPHAN_SWEEP_ENABLED", &c.OrphanSweepEnabled)
	overrideInt("ORPHAN_SWEEP_INTERVAL_MINUTES", &c.OrphanSweepIntervalMinutes)
	overrideInt("ORPHAN_MIN_AGE_MINUTES", &c.OrphanMinAgeMinutes)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func overrideInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func overrideBool(key string, target *bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		*target = true
	case "false", "0", "no", "off":
		*target = false
	}
}
