package infra

import (
	"fmt"

	"frontdesk/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate,
// then applies idempotent SQL patches that GORM cannot express (partial unique
// indexes, CHECK constraints).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates/updates all tables and applies the SQL-level
// invariants. Also used by integration tests against a fresh container.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Register{},
		&model.Shift{},
		&model.ShiftTotal{},
		&model.Movement{},
		&model.Payment{},
		&model.FiscalDocument{},
		&model.DocumentLine{},
		&model.Series{},
		&model.IdempotencyRecord{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement uses IF NOT EXISTS semantics so re-running is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// The single-open-shift invariant. The service checks first for a
		// friendly error; this index settles the race at commit time.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_shifts_open_register') THEN
		    CREATE UNIQUE INDEX uni_shifts_open_register
		        ON shifts (register_id)
		        WHERE status = 'open';
		  END IF;
		END $$`,
		// Movements carry a positive amount; the direction column holds the sign.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movements_amount_positive') THEN
		    ALTER TABLE movements ADD CONSTRAINT chk_movements_amount_positive CHECK (amount > 0);
		  END IF;
		END $$`,
		// One live credit note per corrected document. The issuer pre-checks
		// for a friendly error; this index settles concurrent corrections at
		// commit time.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uni_documents_live_correction') THEN
		    CREATE UNIQUE INDEX uni_documents_live_correction
		        ON fiscal_documents (corrects_id)
		        WHERE type = 'credit_note' AND authority_state <> 'rejected';
		  END IF;
		END $$`,
		// Partial index for the submission retry cron query.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_documents_pending_retry') THEN
		    CREATE INDEX idx_documents_pending_retry
		        ON fiscal_documents (next_retry_at)
		        WHERE authority_state = 'pending' AND next_retry_at IS NOT NULL;
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("schema patch: %w", err)
		}
	}
	return nil
}
