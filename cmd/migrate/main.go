// Command migrate applies the schema for the workflow state mirror and the
// prompt overrides.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/plugpep/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "PLUGPEP_DB_DSN"

type options struct {
	dsn     string
	config  string
	up      bool
	down    bool
	steps   int
	version bool
	force   *int
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	opts, err := parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}

	if err := run(opts, os.Stdout, logger); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func parse(args []string, errOut io.Writer) (*options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var opts options
	fs.StringVar(&opts.dsn, "dsn", "", "database URL (default $"+envDSN+", then the [database] config section)")
	fs.StringVar(&opts.config, "config", "", "config file supplying the [database] section")
	fs.BoolVar(&opts.up, "up", false, "apply all up migrations")
	fs.BoolVar(&opts.down, "down", false, "revert all migrations")
	fs.IntVar(&opts.steps, "steps", 0, "apply N migrations (negative reverts)")
	fs.BoolVar(&opts.version, "version", false, "print the current schema version")
	force := fs.Int("force", -1, "force the schema version without migrating")
	fs.Usage = func() {
		fmt.Fprintln(errOut, "usage: migrate [-dsn URL] [-config FILE] -up|-down|-steps N|-version|-force N")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			opts.force = force
		}
	})

	actions := 0
	for _, set := range []bool{opts.up, opts.down, opts.steps != 0, opts.version, opts.force != nil} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		fs.Usage()
		return nil, fmt.Errorf("exactly one action is required, got %d", actions)
	}

	return &opts, nil
}

// resolveDSN prefers the flag, then the environment, then the config file.
func resolveDSN(opts *options) (string, error) {
	if opts.dsn != "" {
		return opts.dsn, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}
	cfg, err := config.Load(opts.config)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Database.URL(), nil
}

func run(opts *options, out io.Writer, logger *slog.Logger) error {
	dsn, err := resolveDSN(opts)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger.With("system", "migrate")}

	switch {
	case opts.version:
	case opts.force != nil:
		if err := m.Force(*opts.force); err != nil {
			return fmt.Errorf("force version %d: %w", *opts.force, err)
		}
	case opts.up:
		err = m.Up()
	case opts.down:
		err = m.Down()
	default:
		err = m.Steps(opts.steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Fprintf(out, "version: %d, dirty: %v\n", v, dirty)
	return nil
}

// migrateLogger routes migrate progress through slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool {
	return false
}
