package model

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model/sql"
)

const (
	DBTypeMySQL    = "mysql"
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
)

// RepositoryFactory opens a database per the configured driver and hands
// back the gorm-backed repository.
type RepositoryFactory struct{}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

// InitRepository is the bootstrap helper used by main.
func InitRepository(cfg *config.Config) (Repository, error) {
	if cfg == nil || cfg.DBType == "" {
		return nil, nil
	}
	return NewRepositoryFactory().CreateRepository(cfg)
}

// CreateRepository connects, migrates the schema and wraps the connection.
func (f *RepositoryFactory) CreateRepository(cfg *config.Config) (Repository, error) {
	dialector, err := f.dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := f.openGormDB(dialector)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBType, err)
	}
	if err := f.migrateSchema(db); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return sql.NewGormRepository(db), nil
}

// dialector resolves the gorm driver. An explicit DSN_URL wins; otherwise
// the DSN is assembled from the per-field settings.
func (f *RepositoryFactory) dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case DBTypeMySQL:
		dsn := cfg.DSNURL
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				cfg.DBUser, cfg.DBPassword, cfg.DBAddr, cfg.DBPort, cfg.DBName)
		}
		return mysql.Open(dsn), nil

	case DBTypePostgres:
		dsn := cfg.DSNURL
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
				cfg.DBAddr, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		}
		return postgres.Open(dsn), nil

	case DBTypeSQLite:
		filePath := cfg.DBPath
		if filePath == "" {
			filePath = "datas/echoes.db"
		}
		// SQLite creates the .db file on connect but only if the directory
		// already exists.
		if dir := filepath.Dir(filePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory %q: %w", dir, err)
			}
		}
		return sqlite.Open(filePath), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

func (f *RepositoryFactory) openGormDB(dialector gorm.Dialector) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second * 5,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormLogger,
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func (f *RepositoryFactory) migrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.DbUser{},
		&entity.DbProject{},
		&entity.DbClip{},
		&entity.DbFinalVideo{},
		&entity.DbMusicTrack{},
		&entity.DbCreditPack{},
		&entity.DbCreditTransaction{},
		&entity.DbPurchase{},
		&entity.DbReferral{},
		&entity.DbShareReward{},
	)
}
