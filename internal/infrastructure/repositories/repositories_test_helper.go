package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'USER',
		permissions TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
}

func createApplicationTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE applications (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		app_id TEXT UNIQUE NOT NULL,
		version TEXT NOT NULL,
		hwid_lock_enabled BOOLEAN NOT NULL,
		webhook_url TEXT,
		status TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE application_access (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		app_id TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE(user_id, app_id)
	);`)
}

func createLicenseTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE licenses (
		id TEXT PRIMARY KEY,
		license_key TEXT UNIQUE NOT NULL,
		app_id TEXT NOT NULL,
		duration_value INTEGER NOT NULL,
		duration_unit TEXT NOT NULL,
		is_unlimited BOOLEAN NOT NULL,
		expires_at DATETIME,
		is_active BOOLEAN NOT NULL,
		is_banned BOOLEAN NOT NULL,
		is_paused BOOLEAN NOT NULL,
		paused_at DATETIME,
		paused_expires_at DATETIME,
		locked_hwid TEXT,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE license_usage (
		license_key TEXT PRIMARY KEY,
		hwid TEXT,
		last_checked_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE license_format (
		id INTEGER PRIMARY KEY,
		template TEXT NOT NULL,
		use_uppercase BOOLEAN NOT NULL,
		use_digits BOOLEAN NOT NULL,
		use_special BOOLEAN NOT NULL,
		updated_at DATETIME
	);`)
}

func createCustomMessageTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE custom_messages (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		code TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}
