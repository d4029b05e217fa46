package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/chgk-bot/internal/domain/entity"
)

// Поддерживаемые диалекты
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// MigrationsSource - путь к SQL-миграциям относительно рабочего каталога
const MigrationsSource = "file://migrations"

// Models - все таблицы приложения (для AutoMigrate в SQLite)
var Models = []interface{}{
	&entity.Pack{},
	&entity.Question{},
	&entity.ChatSession{},
	&entity.ChatQuestionUsage{},
	&entity.GameSessionLog{},
	&entity.ParserState{},
}

// Dialect определяет диалект по схеме DATABASE_URL
func Dialect(url string) (string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DialectPostgres, nil
	case strings.HasPrefix(url, "sqlite://"):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme: %q", url)
	}
}

// Open открывает подключение к базе по DATABASE_URL
func Open(url string, debug bool) (*gorm.DB, error) {
	dialect, err := Dialect(url)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	switch dialect {
	case DialectPostgres:
		return NewPostgresDB(url, gormCfg)
	default:
		return NewSQLiteDB(strings.TrimPrefix(url, "sqlite://"), gormCfg)
	}
}

// NewPostgresDB создает новое подключение к PostgreSQL
func NewPostgresDB(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(gormPostgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Настройка пула соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// NewSQLiteDB открывает файл SQLite, создавая каталог при необходимости
func NewSQLiteDB(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
			}
		}
		path += "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(path), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite допускает одного писателя
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// MigrateDB приводит схему к актуальной: SQL-миграции для PostgreSQL, AutoMigrate для SQLite
func MigrateDB(db *gorm.DB) error {
	log.Println("Запуск применения миграций базы данных...")

	if db.Dialector.Name() != DialectPostgres {
		if err := db.AutoMigrate(Models...); err != nil {
			return fmt.Errorf("ошибка AutoMigrate: %w", err)
		}
		log.Println("Схема SQLite актуальна.")
		return nil
	}

	m, err := NewMigrator(db)
	if err != nil {
		return err
	}

	log.Println("Применяем миграции 'up'...")
	err = m.Up()
	switch {
	case errors.Is(err, migrateV4.ErrNoChange):
		log.Println("Изменений в миграциях не найдено, база данных уже актуальна.")
	case err != nil:
		log.Printf("Ошибка применения миграций: %v", err)
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	default:
		log.Println("Миграции успешно применены.")
	}
	return nil
}

// NewMigrator создает экземпляр golang-migrate поверх подключения PostgreSQL
func NewMigrator(db *gorm.DB) (*migrateV4.Migrate, error) {
	if db.Dialector.Name() != DialectPostgres {
		return nil, fmt.Errorf("sql migrations are only available for postgres, got %s", db.Dialector.Name())
	}

	sqlDB, err := GetSQLDB(db)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось проверить подключение к БД перед миграцией: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", err)
	}

	m, err := migrateV4.NewWithDatabaseInstance(MigrationsSource, DialectPostgres, driver)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}
	return m, nil
}

// GetSQLDB возвращает базовый *sql.DB из *gorm.DB
func GetSQLDB(gormDB *gorm.DB) (*sql.DB, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB, nil
}
