// Command migrate manages the stock ledger schema.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/stockcore/internal/infrastructure/config"
	"github.com/erp/stockcore/internal/infrastructure/logger"
	"github.com/erp/stockcore/internal/infrastructure/migration"
	"github.com/erp/stockcore/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// errUsage makes main print the usage text after the error
var errUsage = errors.New("invalid arguments")

type invocation struct {
	args []string // arguments after the command name
	dir  string   // migrations directory, empty for the embedded set
	log  *zap.Logger
	m    *migration.Migrator // nil for offline commands
}

type command struct {
	offline bool
	run     func(inv *invocation) error
}

var commands = map[string]command{
	"up":   {run: func(inv *invocation) error { return inv.m.Up() }},
	"down": {run: func(inv *invocation) error { return inv.m.Down() }},
	"step": {run: func(inv *invocation) error {
		n, err := intArg(inv.args, 0)
		if err != nil {
			return err
		}
		return inv.m.Steps(n)
	}},
	"goto": {run: func(inv *invocation) error {
		v, err := intArg(inv.args, 0)
		if err != nil || v < 0 {
			return errUsage
		}
		return inv.m.GoTo(uint(v))
	}},
	"force": {run: func(inv *invocation) error {
		v, err := intArg(inv.args, 0)
		if err != nil {
			return err
		}
		return inv.m.Force(v)
	}},
	"version": {run: func(inv *invocation) error {
		v, dirty, err := inv.m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			inv.log.Info("No migrations applied")
			return nil
		}
		inv.log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"create": {offline: true, run: func(inv *invocation) error {
		if inv.dir == "" || len(inv.args) == 0 {
			return fmt.Errorf("%w: create needs -path and a name", errUsage)
		}
		description := ""
		if len(inv.args) > 1 {
			description = inv.args[1]
		}
		mf, err := migration.CreateMigration(inv.dir, inv.args[0], description)
		if err != nil {
			return err
		}
		inv.log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	}},
	"list": {offline: true, run: func(inv *invocation) error {
		var fsys fs.FS = migrations.FS
		if inv.dir != "" {
			fsys = os.DirFS(inv.dir)
		}
		names, err := migration.ListMigrations(fsys)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return nil
	}},
}

func main() {
	dir := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(logger.Options{Level: *logLevel, Format: "console", Output: "stdout", Service: "migrate"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	inv := &invocation{args: args[1:], log: log}
	if *dir != "" {
		if inv.dir, err = filepath.Abs(*dir); err != nil {
			log.Fatal("Failed to resolve migrations path", zap.Error(err))
		}
	}

	if !cmd.offline {
		db, m, err := openMigrator(inv.dir, log)
		if err != nil {
			log.Fatal("Failed to prepare migrator", zap.Error(err))
		}
		defer db.Close()
		defer m.Close()
		inv.m = m
	}

	if err := cmd.run(inv); err != nil {
		if errors.Is(err, errUsage) {
			printUsage()
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func openMigrator(dir string, log *zap.Logger) (*sql.DB, *migration.Migrator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := migration.New(db, migration.Options{Path: dir}, log)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, m, nil
}

func intArg(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errUsage, args[i])
	}
	return n, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Stock ledger schema migrations

Usage:
  migrate [-path dir] [-log-level level] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations, negative rolls back
  goto <version>        Migrate to a specific version
  version               Show the current version
  force <version>       Set the version after a failed run
  create <name> [desc]  Write the next numbered migration pair (needs -path)
  list                  List available migrations

Database settings come from LEDGER_DATABASE_HOST, LEDGER_DATABASE_PORT,
LEDGER_DATABASE_USER, LEDGER_DATABASE_PASSWORD, LEDGER_DATABASE_DBNAME and
LEDGER_DATABASE_SSLMODE.`)
}
