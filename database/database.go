package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/ailubes/veterans-orden-sub005/models"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

var Database *DB

// Connect establishes a connection to the PostgreSQL database
func Connect(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	Database = &DB{db}
	return Database, nil
}

// InitializeTables creates all tables if they don't exist
func (db *DB) InitializeTables() error {
	// Enable pgcrypto extension
	if _, err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`); err != nil {
		return fmt.Errorf("failed to enable pgcrypto extension: %w", err)
	}

	// Define the order of table creation (respecting foreign key dependencies)
	tables := []interface{}{
		models.User{},
		models.PointsTransaction{},
		models.RoleRequirement{},
		models.AdvancementRequest{},
		models.Milestone{},
		models.Streak{},
		models.OrganizationSetting{},
	}

	for _, model := range tables {
		if tableModel, ok := model.(interface {
			TableName() string
			CreateTableSQL() string
		}); ok {
			tableName := tableModel.TableName()
			createSQL := tableModel.CreateTableSQL()

			log.Printf("Creating table: %s", tableName)
			if _, err := db.Exec(createSQL); err != nil {
				return fmt.Errorf("failed to create table %s: %w", tableName, err)
			}
		}
	}

	// Run schema migrations
	if err := db.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("All tables created successfully!")
	return nil
}

// runMigrations handles schema updates and seed data for existing tables
func (db *DB) runMigrations() error {
	migrations := []string{
		// The idempotency key for ledger entries: one transaction per
		// external event, ever.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_points_txn_idempotency
		 ON points_transactions(user_id, reference_type, reference_id, type);`,

		`CREATE INDEX IF NOT EXISTS idx_points_txn_user_created
		 ON points_transactions(user_id, created_at);`,

		// At most one pending advancement request per user. The partial
		// index turns a racing second request into a no-op insert.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_advancement_requests_pending
		 ON advancement_requests(user_id) WHERE status = 'pending';`,

		`CREATE INDEX IF NOT EXISTS idx_advancement_requests_status
		 ON advancement_requests(status, requested_at);`,

		`CREATE INDEX IF NOT EXISTS idx_milestones_user_created
		 ON milestones(user_id, created_at);`,

		`CREATE INDEX IF NOT EXISTS idx_users_referred_by
		 ON users(referred_by_id);`,

		`CREATE INDEX IF NOT EXISTS idx_users_role_advanced_at
		 ON users(role_advanced_at);`,

		// Membership ladder defaults. Existing rows are left alone so an
		// admin-tuned ladder survives restarts.
		`INSERT INTO role_requirements (role, level, points_required, referrals_required, tasks_required, tenure_days_required)
		 VALUES
			('supporter', 1, 0, 0, 0, 0),
			('member', 2, 150, 0, 0, 0),
			('activist', 3, 500, 3, 10, 90),
			('leader', 4, 1500, 10, 50, 365)
		 ON CONFLICT (role) DO NOTHING;`,

		// Organization-wide advancement mode defaults to automatic.
		`INSERT INTO organization_settings (key, value)
		 VALUES ('advancement_mode', 'automatic')
		 ON CONFLICT (key) DO NOTHING;`,

		// Backfill referral codes for members created before the column
		// existed.
		`UPDATE users SET referral_code = upper(substr(md5(id::text), 1, 8))
		 WHERE referral_code IS NULL;`,

		// Generate avatars for existing users who don't have one
		`UPDATE users SET avatar = 'https://api.dicebear.com/7.x/avataaars/svg?seed=' || id
		 WHERE avatar IS NULL OR avatar = '';`,

		// Create an admin user if none exists
		`INSERT INTO users (id, phone, full_name, role, is_active, created_at)
		 VALUES (gen_random_uuid(), '+380501234567', 'Portal Admin', 'admin', true, now())
		 ON CONFLICT (phone) DO NOTHING;`,
	}

	for i, migration := range migrations {
		log.Printf("Running migration %d", i+1)
		if _, err := db.Exec(migration); err != nil {
			log.Printf("Warning: Migration %d failed: %v", i+1, err)
			// Continue with other migrations even if one fails
		}
	}

	log.Println("Migrations completed!")
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
