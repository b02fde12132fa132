package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/tourbooking/config"
	"github.com/Domenick1991/tourbooking/internal/repository"
	"github.com/Domenick1991/tourbooking/internal/repository/memory"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Storage is everything the processes need from the backing store.
type Storage interface {
	repository.Store
	repository.Outbox
}

// OpenStorage connects the configured driver. The returned func releases it.
func OpenStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (Storage, func(), error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn("using in-memory storage, state is lost on exit")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return repository.NewStore(pool, cfg.Database.LockTimeout()), pool.Close, nil
}

// Migrate applies every pending migration from cfg.Database.MigrationsPath.
func Migrate(cfg config.DatabaseConfig, log logrus.FieldLogger) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.URL())
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.WithFields(logrus.Fields{"source_error": srcErr, "database_error": dbErr}).Warn("close migrator")
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("schema is up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.WithField("version", version).Info("migrations applied")
	return nil
}
