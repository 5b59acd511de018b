package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/erp/stockcore/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// Migrator applies the ledger schema to one postgres database
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// Options selects the migration source. An empty Path uses the set compiled
// into the binary.
type Options struct {
	Path string
}

func New(db *sql.DB, opts Options, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	var m *migrate.Migrate
	if opts.Path != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+opts.Path, "postgres", driver)
	} else {
		var src source.Driver
		if src, err = EmbeddedSource(); err != nil {
			return nil, err
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

// EmbeddedSource reads the migrations package's embedded SQL files
func EmbeddedSource() (source.Driver, error) {
	src, err := iofs.New(embeddedFS(), ".")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return src, nil
}

func embeddedFS() fs.FS { return migrations.FS }

// run executes one schema change. ErrNoChange is success; the resulting
// version is logged either way.
func (m *Migrator) run(action string, fields []zap.Field, fn func() error) error {
	log := m.logger.With(append(fields, zap.String("action", action))...)
	log.Info("Applying migrations")

	err := fn()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("Schema already up to date")
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (m *Migrator) Up() error { return m.run("up", nil, m.m.Up) }

func (m *Migrator) Down() error { return m.run("down", nil, m.m.Down) }

// Steps moves n versions, down when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run("steps", []zap.Field{zap.Int("steps", n)}, func() error { return m.m.Steps(n) })
}

func (m *Migrator) GoTo(version uint) error {
	return m.run("goto", []zap.Field{zap.Uint("target_version", version)}, func() error { return m.m.Migrate(version) })
}

// Version returns 0 when nothing has been applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without running
// anything. Use it after fixing a migration that failed halfway.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
