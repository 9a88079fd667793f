package database

import (
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// Migrator applies embedded goose migrations to the analytics database.
type Migrator struct {
	db     *sqlx.DB
	fsys   fs.FS
	logger *zap.Logger
}

// NewMigrator binds migrations in fsys (files at its root) to db.
func NewMigrator(db *sqlx.DB, fsys fs.FS, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, fsys: fsys, logger: logger}
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version() (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(m.db.DB)
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.prepare(); err != nil {
		return err
	}
	from, err := goose.GetDBVersion(m.db.DB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := goose.Up(m.db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, err := goose.GetDBVersion(m.db.DB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	m.logger.Info("migrations applied", zap.Int64("from_version", from), zap.Int64("to_version", to))
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.Down(m.db.DB, "."); err != nil {
		return fmt.Errorf("roll back migration: %w", err)
	}
	m.logger.Info("migration rolled back")
	return nil
}

// Status prints applied and pending migrations through goose's logger.
func (m *Migrator) Status() error {
	if err := m.prepare(); err != nil {
		return err
	}
	return goose.Status(m.db.DB, ".")
}
