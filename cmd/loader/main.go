// Command loader migrates the bookings schema and bulk-imports a loyalty CSV
// into Postgres.
package main

import (
	"context"
	"database/sql"
	"embed"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/conciergelab/concierge-api/internal/loader"
	"github.com/conciergelab/concierge-api/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	_ = godotenv.Load()

	var (
		csvPath  = flag.String("csv", "loyalty.csv", "path to the loyalty bookings CSV")
		dsn      = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN")
		truncate = flag.Bool("truncate", true, "truncate loyalty_bookings before importing")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *dsn == "" {
		logger.Error("no DSN provided, set -dsn or DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := run(ctx, logger, *dsn, *csvPath, *truncate); err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, dsn, csvPath string, truncate bool) error {
	if err := migrate(logger, dsn); err != nil {
		return err
	}

	records, err := loader.LoadFile(csvPath)
	if err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}
	logger.Info("parsed bookings CSV", "path", csvPath, "records", len(records))

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	inserted, err := importRecords(ctx, pool, records, truncate)
	if err != nil {
		return err
	}
	logger.Info("import complete", "inserted", inserted)
	return nil
}

// migrate brings the schema up to date using the embedded migrations. goose
// needs a database/sql handle, so it gets its own short-lived connection.
func migrate(logger *slog.Logger, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

// importRecords bulk-inserts via CopyFrom inside a single transaction so a
// partial import never leaves a half-truncated table behind.
func importRecords(ctx context.Context, pool *pgxpool.Pool, records []types.BookingRecord, truncate bool) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if truncate {
		if _, err := tx.Exec(ctx, "TRUNCATE loyalty_bookings"); err != nil {
			return 0, fmt.Errorf("failed to truncate loyalty_bookings: %w", err)
		}
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			rec.GuestName,
			string(rec.Goal),
			string(rec.LoyaltyTier),
			string(rec.PreferredRoom),
			rec.BookingDate,
			rec.BasePrice,
			rec.LoyaltyDiscount,
			rec.FinalPrice,
		})
	}

	inserted, err := tx.CopyFrom(ctx,
		pgx.Identifier{"loyalty_bookings"},
		[]string{
			"guest_name", "goal", "loyalty_tier", "preferred_room",
			"booking_date", "base_price", "loyalty_discount", "final_price",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy records: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, nil
}
