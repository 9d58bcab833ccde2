package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/logger"
)

func main() {
	var (
		migrationDir string
		confirm      bool
	)
	flag.StringVar(&migrationDir, "path", "migrations", "Directory holding the assessment schema migrations")
	flag.BoolVar(&confirm, "yes", false, "Confirm down, which drops assignments, answers and reports")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Failed to open assessment schema migrations")
	}
	defer m.Close()

	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Schema upgrade failed")
		}
	case "down":
		if !confirm {
			log.Fatal().Msg("down drops every assignment, answer and report; rerun with -yes")
		}
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Schema downgrade failed")
		}
	case "steps":
		n := intArg(args, "steps")
		if n < 0 && !confirm {
			log.Fatal().Int("steps", n).Msg("Rolling back migrations requires -yes")
		}
		if err := m.Steps(n); err != nil {
			log.Fatal().Err(err).Int("steps", n).Msg("Stepping migrations failed")
		}
	case "force":
		v := intArg(args, "force")
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Int("version", v).Msg("Force failed")
		}
	case "version":
	default:
		printUsage()
		os.Exit(2)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("Assessment schema has no migrations applied")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to read schema version")
	default:
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Assessment schema version")
	}
}

func intArg(args []string, cmd string) int {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "%s requires an integer argument\n", cmd)
		os.Exit(2)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: invalid integer %q\n", cmd, args[1])
		os.Exit(2)
	}
	return n
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <command>")
	fmt.Fprintln(os.Stderr, "Manages the assignments, answers and reports schema in DATABASE_URL.")
	fmt.Fprintln(os.Stderr, "Commands: up, down, steps <n>, force <version>, version")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
