package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func updatedAtTrigger(table string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS update_%[1]s_updated_at
		AFTER UPDATE ON %[1]s
		FOR EACH ROW
		BEGIN
			UPDATE %[1]s SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END`, table)
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Users, sessions, accounts and transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username TEXT NOT NULL UNIQUE,
					email TEXT UNIQUE,
					display_name TEXT,
					password_hash TEXT,
					require_password INTEGER NOT NULL DEFAULT 0,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_login DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS sessions (
					token TEXT PRIMARY KEY,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					expires_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('checking', 'savings', 'credit_card', 'investment')),
					institution TEXT,
					balance TEXT NOT NULL DEFAULT '0',
					currency TEXT NOT NULL DEFAULT 'USD',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, name)
				)`,
				updatedAtTrigger("accounts"),

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					date TEXT NOT NULL,
					amount TEXT NOT NULL,
					merchant TEXT,
					category TEXT NOT NULL DEFAULT 'Uncategorized',
					description TEXT,
					notes TEXT,
					type TEXT NOT NULL CHECK (type IN ('expense', 'income', 'transfer')),
					to_account_id INTEGER REFERENCES accounts(id),
					transfer_pair_id INTEGER REFERENCES transactions(id) ON DELETE SET NULL,
					hash TEXT,
					external_id TEXT,
					source TEXT NOT NULL DEFAULT 'manual',
					import_batch TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(user_id, category)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(user_id, merchant)`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_hash ON transactions(user_id, hash) WHERE hash IS NOT NULL`,
			})
		},
	},
	{
		Version:     2,
		Description: "Budgets and recurring charges",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS budgets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					category TEXT NOT NULL,
					monthly_limit TEXT NOT NULL,
					alert_threshold TEXT NOT NULL DEFAULT '0.9',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, category)
				)`,
				updatedAtTrigger("budgets"),

				`CREATE TABLE IF NOT EXISTS recurring_charges (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					merchant TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT 'Uncategorized',
					typical_amount TEXT NOT NULL,
					frequency TEXT NOT NULL CHECK (frequency IN ('weekly', 'monthly', 'annual')),
					day_of_period INTEGER,
					first_seen TEXT NOT NULL,
					last_seen TEXT NOT NULL,
					next_expected_date TEXT,
					occurrence_count INTEGER NOT NULL DEFAULT 1,
					confidence REAL NOT NULL DEFAULT 1.0,
					status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'cancelled')),
					notes TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_recurring_user_status ON recurring_charges(user_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_recurring_next ON recurring_charges(user_id, next_expected_date)`,
				updatedAtTrigger("recurring_charges"),
			})
		},
	},
	{
		Version:     3,
		Description: "Savings goals and planned purchases",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS savings_goals (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					description TEXT,
					target_amount TEXT NOT NULL,
					current_amount TEXT NOT NULL DEFAULT '0',
					deadline TEXT,
					category TEXT,
					priority INTEGER NOT NULL DEFAULT 5 CHECK (priority BETWEEN 1 AND 10),
					status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'paused', 'cancelled')),
					notes TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, name)
				)`,
				updatedAtTrigger("savings_goals"),

				`CREATE TABLE IF NOT EXISTS goal_contributions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					goal_id INTEGER NOT NULL REFERENCES savings_goals(id) ON DELETE CASCADE,
					amount TEXT NOT NULL,
					note TEXT,
					date TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_contributions_goal ON goal_contributions(goal_id)`,

				`CREATE TABLE IF NOT EXISTS planned_purchases (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					description TEXT,
					estimated_cost TEXT NOT NULL,
					actual_cost TEXT,
					priority INTEGER NOT NULL DEFAULT 3 CHECK (priority BETWEEN 1 AND 5),
					category TEXT,
					deadline TEXT,
					status TEXT NOT NULL DEFAULT 'planned' CHECK (status IN ('planned', 'purchased', 'cancelled')),
					notes TEXT,
					url TEXT,
					transaction_id INTEGER REFERENCES transactions(id) ON DELETE SET NULL,
					purchased_at TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX IF NOT EXISTS idx_purchases_user_status ON planned_purchases(user_id, status)`,
				updatedAtTrigger("planned_purchases"),
			})
		},
	},
	{
		Version:     4,
		Description: "Transaction tags",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS tags (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					description TEXT,
					color TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS transaction_tags (
					transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (transaction_id, tag_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_transaction_tags_tag ON transaction_tags(tag_id)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Merchant category rules",
		Up: func(tx *sql.Tx) error {
			if err := execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS category_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					merchant TEXT NOT NULL COLLATE NOCASE,
					category TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 1.0,
					source TEXT NOT NULL DEFAULT 'user',
					use_count INTEGER NOT NULL DEFAULT 0,
					last_used DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, merchant)
				)`,
			}); err != nil {
				return err
			}

			common.LogInfo("Created category rules table", nil)
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		common.LogInfo("Applied migration", common.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrations lists the schema migrations in version order.
func Migrations() []Migration {
	return slices.Clone(migrations)
}
