package database

import (
	"fmt"
	"strings"

	"zk-attestation/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSqlite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type DatabaseConfigJson struct {
	Driver  string `json:"driver"`
	Dsn     string `json:"dsn"`
	Migrate *bool  `json:"migrate"`
}

type DatabaseConfig struct {
	Driver  Driver
	Dsn     string
	Migrate bool
}

func (dcj DatabaseConfigJson) ConvertToDomain() DatabaseConfig {
	driver := Driver(strings.ToLower(strings.TrimSpace(dcj.Driver)))
	if driver == "" {
		driver = DriverMemory
	}
	migrate := true
	if dcj.Migrate != nil {
		migrate = *dcj.Migrate
	}
	return DatabaseConfig{
		Driver:  driver,
		Dsn:     dcj.Dsn,
		Migrate: migrate,
	}
}

// Persistent reports whether the config selects a gorm-backed store.
func (dc DatabaseConfig) Persistent() bool {
	return dc.Driver == DriverSqlite || dc.Driver == DriverPostgres
}

// ConnectToDatabase opens the configured database and runs AutoMigrate for
// models when migration is enabled.
func ConnectToDatabase(cfg DatabaseConfig, log *logger.Logger, models ...any) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSqlite:
		dsn := cfg.Dsn
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if cfg.Dsn == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		dialector = postgres.Open(cfg.Dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", cfg.Driver)
	}

	log.Infof("Establishing connection to %s database", cfg.Driver)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot establish database connection: %w", err)
	}

	if cfg.Migrate && len(models) > 0 {
		log.Info("Running migrations for tables")
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("migrating database failed: %w", err)
		}
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
