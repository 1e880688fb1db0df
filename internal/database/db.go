package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyerfyer/resume-analyzer/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 分析记录库的全局连接，Setup成功后可用
var DB *gorm.DB

// Config 分析记录库配置
type Config struct {
	Type          string        // 目前只支持sqlite
	DSN           string        // 文件路径或 file:xxx?mode=memory
	MaxOpenConns  int           // 最大打开连接数
	MaxIdleConns  int           // 最大空闲连接数
	MaxLifetime   time.Duration // 连接最大生命周期
	SlowThreshold time.Duration // 慢查询阈值
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Type:          "sqlite",
		DSN:           "data/resume.db",
		MaxOpenConns:  1,
		MaxIdleConns:  1,
		MaxLifetime:   time.Hour,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// Setup 打开数据库并迁移分析记录表
func Setup(cfg *Config, log *logrus.Logger) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log, cfg.SlowThreshold),
	})
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	// sqlite只允许单个写连接，多连接会出现 database is locked
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := conn.AutoMigrate(&models.Analysis{}); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to migrate analysis table: %w", err)
	}

	DB = conn
	log.WithFields(logrus.Fields{
		"type": cfg.Type,
		"dsn":  cfg.DSN,
	}).Info("Analysis database ready")
	return nil
}

// MustDB 返回全局连接，未初始化时panic
func MustDB() *gorm.DB {
	if DB == nil {
		panic("database is not initialized, call database.Setup first")
	}
	return DB
}

// Close 关闭全局连接
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	DB = nil
	return sqlDB.Close()
}

func openDialector(cfg *Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case "sqlite", "":
		if !isMemoryDSN(cfg.DSN) {
			if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// newGormLogger gorm日志转发到logrus，只输出警告和慢查询
func newGormLogger(log *logrus.Logger, slow time.Duration) logger.Interface {
	level := logger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}
	return logger.New(&logrusWriter{log}, logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// logrusWriter 实现 logger.Writer
type logrusWriter struct {
	logger *logrus.Logger
}

func (w *logrusWriter) Printf(format string, args ...interface{}) {
	w.logger.WithField("component", "gorm").Debugf(format, args...)
}
