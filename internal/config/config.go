package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env         string
	API         APIConfig
	Report      ReportConfig
	Database    DatabaseConfig
	Translation TranslationConfig
	Lookup      LookupConfig
	Server      ServerConfig
}

// APIConfig holds the session server client settings
type APIConfig struct {
	BaseURL  string        `json:"base_url"`
	Username string        `json:"username"`
	Password string        `json:"password"`
	Timeout  time.Duration `json:"timeout"`
}

// ReportConfig holds report pipeline settings
type ReportConfig struct {
	CacheDir        string        `json:"cache_dir"`
	PDFWaitTimeout  time.Duration `json:"pdf_wait_timeout"`
	PDFPollInterval time.Duration `json:"pdf_poll_interval"`
	SyncTimeout     time.Duration `json:"sync_timeout"`
	CompanyName     string        `json:"company_name"`
	LogBuffer       int           `json:"log_buffer"`
}

// DatabaseConfig holds archive database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Silent   bool

	// Embedded runs a private PostgreSQL process under DataPath
	Embedded     bool
	DataPath     string
	EmbeddedPort int
}

// TranslationConfig holds translation configuration
type TranslationConfig struct {
	GeminiAPIKey string
	Model        string
}

// LookupConfig holds the Odoo product lookup configuration
type LookupConfig struct {
	URL      string
	Database string
	Username string
	Password string
}

// ServerConfig holds the reference session server configuration
type ServerConfig struct {
	Port       string
	JWTSecret  string
	TokenTTL   time.Duration
	StorageDir string
	Users      map[string]string // username -> password, hashed at startup
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		API: APIConfig{
			BaseURL:  getEnv("SESSION_API_URL", "http://localhost:3210"),
			Username: os.Getenv("SESSION_API_USER"),
			Password: os.Getenv("SESSION_API_PASSWORD"),
			Timeout:  getDurationEnv("SESSION_API_TIMEOUT", 30*time.Second),
		},
		Report: ReportConfig{
			CacheDir:        getEnv("REPORT_CACHE_DIR", os.TempDir()),
			PDFWaitTimeout:  getDurationEnv("REPORT_PDF_WAIT_TIMEOUT", 30*time.Second),
			PDFPollInterval: getDurationEnv("REPORT_PDF_POLL_INTERVAL", 500*time.Millisecond),
			SyncTimeout:     getDurationEnv("REPORT_SYNC_TIMEOUT", 15*time.Second),
			CompanyName:     getEnv("REPORT_COMPANY_NAME", "Damage Inspection"),
			LogBuffer:       getIntEnv("REPORT_LOG_BUFFER", 256),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "palletdamage"),
			Silent:   getBoolEnv("DB_SILENT", true),

			DataPath:     getEnv("DB_DATA_PATH", "./archive_data"),
			EmbeddedPort: getIntEnv("DB_EMBEDDED_PORT", 5433),
		},
		Translation: TranslationConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			Model:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Lookup: LookupConfig{
			URL:      os.Getenv("ODOO_URL"),
			Database: os.Getenv("ODOO_DB"),
			Username: os.Getenv("ODOO_USERNAME"),
			Password: os.Getenv("ODOO_PASSWORD"),
		},
		Server: ServerConfig{
			Port:       getEnv("PORT", "3210"),
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenTTL:   getDurationEnv("JWT_TTL", 12*time.Hour),
			StorageDir: getEnv("SESSION_STORAGE_DIR", "./uploads"),
			Users:      parseUsers(os.Getenv("SESSION_SERVER_USERS")),
		},
	}
	// Localhost without a password means no external database is available
	cfg.Database.Embedded = getBoolEnv("DB_EMBEDDED",
		cfg.Database.Host == "localhost" && cfg.Database.Password == "")

	// Optional JSON override for the report pipeline
	if path := os.Getenv("REPORT_CONFIG_PATH"); path != "" {
		if err := loadReportOverride(path, &cfg.Report); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if cfg.Report.PDFWaitTimeout <= 0 {
		return nil, fmt.Errorf("REPORT_PDF_WAIT_TIMEOUT must be positive")
	}
	if cfg.Report.PDFPollInterval <= 0 {
		return nil, fmt.Errorf("REPORT_PDF_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// reportOverride mirrors ReportConfig with durations as strings ("30s")
type reportOverride struct {
	CacheDir        string `json:"cache_dir"`
	PDFWaitTimeout  string `json:"pdf_wait_timeout"`
	PDFPollInterval string `json:"pdf_poll_interval"`
	SyncTimeout     string `json:"sync_timeout"`
	CompanyName     string `json:"company_name"`
	LogBuffer       int    `json:"log_buffer"`
}

func loadReportOverride(path string, rc *ReportConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var o reportOverride
	if err := json.Unmarshal(data, &o); err != nil {
		return err
	}
	if o.CacheDir != "" {
		rc.CacheDir = o.CacheDir
	}
	if o.CompanyName != "" {
		rc.CompanyName = o.CompanyName
	}
	if o.LogBuffer > 0 {
		rc.LogBuffer = o.LogBuffer
	}
	if o.PDFWaitTimeout != "" {
		d, err := time.ParseDuration(o.PDFWaitTimeout)
		if err != nil {
			return fmt.Errorf("pdf_wait_timeout: %w", err)
		}
		rc.PDFWaitTimeout = d
	}
	if o.PDFPollInterval != "" {
		d, err := time.ParseDuration(o.PDFPollInterval)
		if err != nil {
			return fmt.Errorf("pdf_poll_interval: %w", err)
		}
		rc.PDFPollInterval = d
	}
	if o.SyncTimeout != "" {
		d, err := time.ParseDuration(o.SyncTimeout)
		if err != nil {
			return fmt.Errorf("sync_timeout: %w", err)
		}
		rc.SyncTimeout = d
	}
	return nil
}
