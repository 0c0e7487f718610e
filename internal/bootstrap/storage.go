package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/cms"
	"github.com/trailverse/analytics/internal/config"
	"github.com/trailverse/analytics/internal/storage"
)

// Stores holds the event store and the CMS directories.
type Stores struct {
	Events storage.Store
	Users  cms.UserDirectory
	Blogs  cms.BlogDirectory

	db *sqlx.DB
}

// Ping checks the database. It is nil for the memory driver.
func (s *Stores) Ping() func() error {
	if s.db == nil {
		return nil
	}
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()
		return s.db.PingContext(ctx)
	}
}

// Close releases the database connection, if any.
func (s *Stores) Close(log logger.Logger) {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		log.Error("Failed to close database", logger.Error(err))
	}
}

// SetupStorage opens the configured event store. The memory driver serves
// empty CMS directories.
func SetupStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (*Stores, error) {
	if !cfg.UsesPostgres() {
		log.Warn("Using in-memory event store; events are lost on restart")
		dir := cms.NewStaticDirectory()
		return &Stores{Events: storage.NewMemoryStore(), Users: dir, Blogs: dir}, nil
	}

	if cfg.Database.AutoMigrate {
		applied, migrateErr := storage.MigrateUp(cfg.Database)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate: %w", migrateErr)
		}
		log.Info("Database migrations checked", logger.Bool("applied", applied))
	}

	db, connErr := storage.Connect(ctx, cfg.Database)
	if connErr != nil {
		return nil, fmt.Errorf("database connection: %w", connErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.DBName),
	)

	dir := cms.NewPostgresDirectory(db)
	return &Stores{
		Events: storage.NewPostgresStore(db),
		Users:  dir,
		Blogs:  dir,
		db:     db,
	}, nil
}
