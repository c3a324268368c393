package main

import (
	"database/sql"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-liveshop/internal/database/migrations"
)

// Standalone migration entry point: `go run ./cmd/migrate -dir up` brings
// the schema current without starting the service.
func main() {
	var (
		direction = flag.String("dir", "up", "Migration direction: up, down, or to")
		version   = flag.String("version", "", "Target version for -dir to")
		path      = flag.String("path", "./migrations", "Migrations directory")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN not set")
	}

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL: %v", err)
	}
	defer sqldb.Close()

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: *path,
	})
	defer runner.Close()

	switch *direction {
	case "up":
		if err := runner.RunMigrations(); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		log.Println("Migrations applied")
	case "down":
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Migrations rolled back")
	case "to":
		target, err := strconv.ParseUint(*version, 10, 32)
		if err != nil {
			log.Fatalf("Invalid -version %q: %v", *version, err)
		}
		if err := runner.MigrateTo(uint(target)); err != nil {
			log.Fatalf("Migration to version %d failed: %v", target, err)
		}
		log.Printf("Migrated to version %d", target)
	default:
		log.Fatalf("Unknown direction %q (use up, down, or to)", *direction)
	}
}
