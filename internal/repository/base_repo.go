package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mbeoliero/convsync/internal/config"
	"github.com/mbeoliero/convsync/pkg/constant"
	"github.com/mbeoliero/convsync/pkg/errcode"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// DraftRepo is durable keyed storage for drafts: key = conversation id, value = text
type DraftRepo interface {
	// Get returns the stored text and whether an entry exists
	Get(ctx context.Context, conversationId string) (string, bool, error)
	// Set overwrites the entry; it returns only after the write is durable
	Set(ctx context.Context, conversationId, text string) error
	Delete(ctx context.Context, conversationId string) error
	Ping(ctx context.Context) error
	Close() error
}

// NewDraftRepo creates the draft repository selected by config
func NewDraftRepo(ctx context.Context, cfg *config.Config) (DraftRepo, error) {
	switch cfg.Draft.Backend {
	case constant.DraftBackendSQLite:
		repo, err := OpenSQLiteDraftRepo(ctx, cfg.Draft.SQLite.Path)
		if err != nil {
			return nil, errcode.ErrDraftBackend.Wrap(err)
		}
		return repo, nil
	case constant.DraftBackendRedis:
		constant.InitRedisKeyPrefix(cfg.Draft.Redis.KeyPrefix)
		return NewRedisDraftRepo(initRedis(cfg)), nil
	case constant.DraftBackendMySQL:
		db, err := initMySQL(cfg)
		if err != nil {
			return nil, errcode.ErrDraftBackend.Wrap(err)
		}
		repo, err := NewMySQLDraftRepo(ctx, db)
		if err != nil {
			return nil, errcode.ErrDraftBackend.Wrap(err)
		}
		return repo, nil
	default:
		return nil, errcode.ErrDraftBackend.Wrap(fmt.Errorf("backend %q", cfg.Draft.Backend))
	}
}

// initSQLite opens the local SQLite file
func initSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY under concurrent Set calls
	db.SetMaxOpenConns(1)
	return db, nil
}

// initMySQL initializes MySQL connection
func initMySQL(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.App.Mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(mysql.Open(cfg.Draft.MySQL.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.Draft.MySQL.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Draft.MySQL.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Draft.Redis.Addr(),
		Password: cfg.Draft.Redis.Password,
		DB:       cfg.Draft.Redis.DB,
	})
}

// CheckConnection checks if the draft storage is reachable
func CheckConnection(ctx context.Context, repo DraftRepo) error {
	if err := repo.Ping(ctx); err != nil {
		log.CtxError(ctx, "draft storage ping failed: %v", err)
		return err
	}
	return nil
}

// draftKey returns the Redis key for a conversation draft
func draftKey(conversationId string) string {
	return fmt.Sprintf(constant.RedisKeyDraft(), conversationId)
}
