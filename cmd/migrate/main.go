package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/leafsii/stability-vault/internal/config"
	"github.com/leafsii/stability-vault/internal/db/backends/postgres"
	"github.com/leafsii/stability-vault/internal/log"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn   = flags.String("dsn", "", "postgres DSN (defaults to SV_POSTGRES_DSN)")
)

func main() {
	flags.Parse(os.Args[1:])
	args := flags.Args()

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: migrate [-dsn DSN] COMMAND\n\nCommands:\n  up\n  down\n  status\n  version")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env, log.FileConfig{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	target := cfg.Database.PostgresDSN
	if *dsn != "" {
		target = *dsn
	}

	db, err := sql.Open("pgx", target)
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer db.Close()

	goose.SetBaseFS(postgres.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatalw("Failed to set dialect", "error", err)
	}

	ctx := context.Background()
	command := args[0]
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, postgres.MigrationsDir)
	case "down":
		err = goose.DownContext(ctx, db, postgres.MigrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db, postgres.MigrationsDir)
	case "version":
		err = goose.VersionContext(ctx, db, postgres.MigrationsDir)
	default:
		logger.Fatalw("Unknown command", "command", command)
	}
	if err != nil {
		logger.Fatalw("Migration failed", "command", command, "error", err)
	}
	logger.Infow("Migration finished", "command", command)
}
