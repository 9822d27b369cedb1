package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/dutybill/internal/audit/domain"
	billingdomain "github.com/smallbiznis/dutybill/internal/billing/domain"
	pricingruledomain "github.com/smallbiznis/dutybill/internal/pricingrule/domain"
	tripdomain "github.com/smallbiznis/dutybill/internal/trip/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// activeBillIndex keeps at most one non-deleted bill per trip.
const activeBillIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_bills_active_trip ON bills (trip_id) WHERE is_deleted = 0`

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; other dialects use AutoMigrate.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the models. On sqlite it also adds the
// partial unique index on active bills. MySQL has no partial indexes and
// relies on the trip row lock taken by the lifecycle.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&tripdomain.Trip{},
		&pricingruledomain.PricingRule{},
		&billingdomain.Bill{},
		&billingdomain.BillLineItem{},
		&auditdomain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if conn.Dialector.Name() == "sqlite" {
		if err := conn.Exec(activeBillIndex).Error; err != nil {
			return fmt.Errorf("create active bill index: %w", err)
		}
	}
	return nil
}
