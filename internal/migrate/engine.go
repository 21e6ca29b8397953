package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sumire/timeledger/internal/auth"
)

// The applied migration level lives in the singlevalue table under this
// key. It advances one step at a time, never batched, so a crash
// mid-sequence resumes from the last completed step.
const levelKey = "migration_level"

type step struct {
	name string
	run  func(db *sqlx.DB) error
}

// steps[i] brings the database from level i to level i+1. The order is
// part of the on-disk contract and existing entries must never be
// reordered or edited, only appended to.
var steps = []step{
	{"project tables", migrateProjectTables},
	{"timeentry ignore flag", migrateTimeEntryIgnore},
	{"allocation table", migrateAllocations},
	{"project rate and currency", migrateProjectRate},
	{"auth user reparenting", migrateAuthReparent},
	{"member roles", migrateMemberRoles},
	{"auth account flags", func(db *sqlx.DB) error { return auth.MigrateAccountFlags(db) }},
	{"auth login data", func(db *sqlx.DB) error { return auth.MigrateLoginData(db) }},
	{"auth token chain", func(db *sqlx.DB) error { return auth.MigrateTokenChain(db) }},
	{"auth token date index", func(db *sqlx.DB) error { return auth.MigrateTokenDateIndex(db) }},
	{"payentry type split", migratePayEntryType},
	{"project invoice fields", migrateProjectInvoiceFields},
	{"drop stray project temp table", migrateDropProjectTemp},
}

// Initialize creates the database file if needed and applies all
// pending migrations in order, then purges expired login tokens. It is
// idempotent and must complete before the process serves any request.
func Initialize(dbPath string, tokenExpiration time.Duration) error {
	_, statErr := os.Stat(dbPath)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	// Migrations rebuild tables out from under their foreign keys, so
	// this handle deliberately leaves enforcement off. The serving pool
	// opened later turns it on.
	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open database %s: %w", dbPath, err)
	}
	defer db.Close()

	if fresh {
		slog.Info("creating initial schema", "path", dbPath)
		if err := applyInitialSchema(db); err != nil {
			return err
		}
	}

	level := readLevel(db)
	for i := level; i < len(steps); i++ {
		slog.Info("applying migration", "level", i+1, "name", steps[i].name)
		if err := steps[i].run(db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, steps[i].name, err)
		}
		if err := setSingleValue(db, levelKey, strconv.Itoa(i+1)); err != nil {
			return fmt.Errorf("record migration level %d: %w", i+1, err)
		}
	}
	slog.Info("database up to date", "level", len(steps))

	if err := auth.PurgeLoginTokens(db, tokenExpiration); err != nil {
		return err
	}
	return nil
}

// readLevel returns the stored migration level. An absent or
// unparseable value reads as 0: forward progress over strict
// validation.
func readLevel(db *sqlx.DB) int {
	v, err := getSingleValue(db, levelKey)
	if err != nil || v == nil {
		return 0
	}
	level, err := strconv.Atoi(*v)
	if err != nil || level < 0 {
		return 0
	}
	return level
}

func getSingleValue(db *sqlx.DB, name string) (*string, error) {
	var v string
	err := db.Get(&v, `SELECT value FROM singlevalue WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func setSingleValue(db *sqlx.DB, name, value string) error {
	_, err := db.Exec(
		`INSERT INTO singlevalue (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = ?`, name, value, value)
	return err
}
