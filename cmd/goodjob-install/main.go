// goodjob-install applies (or tears down, with -down) the good_jobs schema
// (spec.md §6.1, §6.5 install()). Grounded on miken90-goclaw's adoption of
// github.com/golang-migrate/migrate/v4 for schema management: embedded
// .sql migrations served through the iofs source driver, applied via the
// pgx/v5 database driver.
package main

import (
	"embed"
	"errors"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	down := flag.Bool("down", false, "roll back the schema instead of applying it")
	steps := flag.Int("steps", 0, "apply/roll back N steps instead of going all the way (0 = all)")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		log.Fatalf("load migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, pgxSchemeURL(dbURL))
	if err != nil {
		log.Fatalf("migrate init: %v", err)
	}
	defer m.Close()

	switch {
	case *steps != 0:
		n := *steps
		if *down {
			n = -n
		}
		err = m.Steps(n)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}

	log.Println("schema up to date")
}

// pgxSchemeURL rewrites a postgres:// or postgresql:// DATABASE_URL to the
// "pgx5://" scheme golang-migrate's database/pgx/v5 driver registers
// itself under.
func pgxSchemeURL(dbURL string) string {
	if i := strings.Index(dbURL, "://"); i != -1 {
		return "pgx5" + dbURL[i:]
	}
	return dbURL
}
