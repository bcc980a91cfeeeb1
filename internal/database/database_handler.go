package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"globalblock/internal/domain"
	"globalblock/internal/support"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoRowsAffected marks a write that matched zero rows. The caller lost a
// race against a concurrent conflicting write and must report that, never
// treat it as success.
var ErrNoRowsAffected = errors.New("database: write affected no rows")

// Store owns the block tables. Writes go to the primary handle; reads go to
// the replica when one is configured and may lag behind.
type Store struct {
	primary *gorm.DB
	replica *gorm.DB
}

type Config struct {
	Primary     *gorm.DB
	Replica     *gorm.DB
	Dialector   gorm.Dialector
	Logger      logger.Interface
	AutoMigrate bool
}

type Option func(*Config)

func WithExistingDB(primary *gorm.DB) Option {
	return func(c *Config) { c.Primary = primary }
}

func WithReplica(replica *gorm.DB) Option {
	return func(c *Config) { c.Replica = replica }
}

func WithoutMigration() Option {
	return func(c *Config) { c.AutoMigrate = false }
}

// Setup opens the block store. Without options it dials postgres using the
// DB_* environment variables and migrates the schema.
func Setup(opts ...Option) (*Store, error) {
	cfg := Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		AutoMigrate: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Primary == nil {
		dialector := cfg.Dialector
		if dialector == nil {
			dialector = postgres.Open(buildDSN(support.GetEnv("DB_HOST", "localhost")))
		}
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger:         cfg.Logger,
			TranslateError: true,
		})
		if err != nil {
			return nil, fmt.Errorf("database: open connection: %w", err)
		}
		configureConnectionPool(db)
		cfg.Primary = db
	}

	if cfg.Replica == nil {
		if replicaHost := support.GetEnv("DB_REPLICA_HOST", ""); replicaHost != "" {
			db, err := gorm.Open(postgres.Open(buildDSN(replicaHost)), &gorm.Config{
				Logger:         cfg.Logger,
				TranslateError: true,
			})
			if err != nil {
				return nil, fmt.Errorf("database: open replica connection: %w", err)
			}
			configureConnectionPool(db)
			cfg.Replica = db
		}
	}

	store := NewStore(cfg.Primary, cfg.Replica)

	if cfg.AutoMigrate {
		if err := cfg.Primary.AutoMigrate(
			&domain.BlockRecord{},
			&domain.LocalStatusOverride{},
		); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Info("Database migration completed.")
	}

	return store, nil
}

// NewStore wraps already-open gorm handles. replica may be nil, in which
// case reads fall through to the primary.
func NewStore(primary, replica *gorm.DB) *Store {
	return &Store{primary: primary, replica: replica}
}

// writer returns the strongly-consistent handle.
func (s *Store) writer(ctx context.Context) *gorm.DB {
	return s.primary.WithContext(ctx)
}

// Primary exposes the writer handle for collaborators that keep their own
// tables beside the block schema.
func (s *Store) Primary() *gorm.DB {
	return s.primary
}

// reader returns the replica-consistent handle. A slightly stale read is
// acceptable on the lookup path; it self-corrects on the next request.
func (s *Store) reader(ctx context.Context) *gorm.DB {
	if s.replica != nil {
		return s.replica.WithContext(ctx)
	}
	return s.primary.WithContext(ctx)
}

func buildDSN(host string) string {
	dbPort := support.GetEnv("DB_PORT", "5432")
	dbUser := support.GetEnv("DB_USER", "globalblock")
	dbPassword := support.GetEnv("DB_PASSWORD", "")
	dbName := support.GetEnv("DB_NAME", "globalblock")
	sslMode := support.GetEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, dbPort, dbUser, dbPassword, dbName, sslMode)
}

func configureConnectionPool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("Could not access underlying sql.DB for pool configuration", "error", err)
		return
	}

	sqlDB.SetMaxOpenConns(support.GetEnvInt("DB_MAX_OPEN_CONNS", 25))
	sqlDB.SetMaxIdleConns(support.GetEnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxLifetime(time.Duration(support.GetEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute)
}
