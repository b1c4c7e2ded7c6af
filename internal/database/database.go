package database

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/xelth-com/palletdamage/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const embeddedPassword = "postgres"

// DB wraps gorm.DB and the embedded PostgreSQL process, if one was started
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// Connect opens the archive database. In embedded mode a private PostgreSQL
// process is started under cfg.DataPath first.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres
	password := cfg.Password

	if cfg.Embedded {
		log.Println("📦 Mode: [Embedded PostgreSQL] - starting archive database...")
		removeStalePID(cfg.DataPath)
		if err := waitForPort(cfg.EmbeddedPort); err != nil {
			return nil, err
		}

		embedded = embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
			DataPath(cfg.DataPath).
			Port(uint32(cfg.EmbeddedPort)).
			Database(cfg.Database).
			Username(cfg.Username).
			Password(embeddedPassword))
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}
		cfg.Host = "localhost"
		cfg.Port = strconv.Itoa(cfg.EmbeddedPort)
		password = embeddedPassword
		log.Printf("✅ Embedded PostgreSQL started on port %d", cfg.EmbeddedPort)
	} else {
		log.Printf("🌐 Mode: [External PostgreSQL] - connecting to %s:%s", cfg.Host, cfg.Port)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, password, cfg.Database)

	logLevel := logger.Warn
	if cfg.Silent {
		logLevel = logger.Silent
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Println("✅ Database connection established")
	return &DB{DB: db, embedded: embedded}, nil
}

// Close closes the connection and stops the embedded process
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if db.embedded != nil {
		log.Println("🛑 Stopping embedded PostgreSQL...")
		if stopErr := db.embedded.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}
	return err
}

// removeStalePID deletes postmaster.pid left behind by a crashed process.
// A live process is asked to stop first.
func removeStalePID(dataPath string) {
	pidFile := filepath.Join(dataPath, "postmaster.pid")
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return
	}
	first, _, _ := strings.Cut(string(data), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		log.Printf("⚠️  Could not parse PID from %s: %v", pidFile, err)
		return
	}

	proc, err := os.FindProcess(pid)
	if err == nil && proc.Signal(syscall.Signal(0)) == nil {
		log.Printf("⚠️  Stopping orphaned PostgreSQL process (PID %d)", pid)
		_ = proc.Signal(syscall.SIGTERM)
		for i := 0; i < 10 && proc.Signal(syscall.Signal(0)) == nil; i++ {
			time.Sleep(500 * time.Millisecond)
		}
		if proc.Signal(syscall.Signal(0)) == nil {
			_ = proc.Kill()
		}
	}
	log.Printf("🧹 Removing stale %s", pidFile)
	os.Remove(pidFile)
}

// waitForPort gives a previous embedded instance a few seconds to release its port
func waitForPort(port int) error {
	for i := 0; i < 6; i++ {
		if !portInUse(port) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	if portInUse(port) {
		return fmt.Errorf("port %d is still in use by another process", port)
	}
	return nil
}

func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
