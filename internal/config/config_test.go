package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REPORT_PDF_WAIT_TIMEOUT", "")
	t.Setenv("REPORT_CONFIG_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Report.PDFWaitTimeout != 30*time.Second {
		t.Errorf("PDFWaitTimeout = %v, want 30s", cfg.Report.PDFWaitTimeout)
	}
	if cfg.Report.PDFPollInterval != 500*time.Millisecond {
		t.Errorf("PDFPollInterval = %v, want 500ms", cfg.Report.PDFPollInterval)
	}
}

func TestLoad_EnvAndFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	body := `{"cache_dir": "/var/cache/reports", "pdf_wait_timeout": "5s", "log_buffer": 16}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("REPORT_CONFIG_PATH", path)
	t.Setenv("SESSION_API_TIMEOUT", "12")
	t.Setenv("SESSION_SERVER_USERS", "jan:pw1, ola:pw2,broken")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Report.CacheDir != "/var/cache/reports" {
		t.Errorf("CacheDir = %q", cfg.Report.CacheDir)
	}
	if cfg.Report.PDFWaitTimeout != 5*time.Second {
		t.Errorf("PDFWaitTimeout = %v", cfg.Report.PDFWaitTimeout)
	}
	if cfg.Report.LogBuffer != 16 {
		t.Errorf("LogBuffer = %d", cfg.Report.LogBuffer)
	}
	if cfg.API.Timeout != 12*time.Second {
		t.Errorf("API.Timeout = %v", cfg.API.Timeout)
	}
	if len(cfg.Server.Users) != 2 || cfg.Server.Users["ola"] != "pw2" {
		t.Errorf("Users = %v", cfg.Server.Users)
	}
}

func TestLoad_RejectsBadTimeout(t *testing.T) {
	t.Setenv("REPORT_CONFIG_PATH", "")
	t.Setenv("REPORT_PDF_WAIT_TIMEOUT", "-1s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}
