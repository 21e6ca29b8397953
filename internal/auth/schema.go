package auth

import (
	"database/sql"
	"fmt"
)

// The auth subsystem owns the orgauth_* tables. Their shape is part of
// the on-disk contract: column names and unique indexes must not drift,
// or databases written by earlier builds stop loading.

// Execer is the subset of database handles the schema helpers need, so
// they run equally against a plain connection or inside a transaction.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS "orgauth_user" (
  "id" INTEGER PRIMARY KEY NOT NULL,
  "name" TEXT NOT NULL UNIQUE,
  "hashwd" TEXT NOT NULL,
  "salt" TEXT NOT NULL,
  "email" TEXT NOT NULL,
  "registration_key" TEXT,
  "createdate" INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS "orgauth_token" (
  "user" INTEGER REFERENCES orgauth_user(id) NOT NULL,
  "token" TEXT NOT NULL,
  "tokendate" INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS "orgauth_tokenunq" ON "orgauth_token" ("user", "token");
CREATE TABLE IF NOT EXISTS "orgauth_newemail" (
  "user" INTEGER REFERENCES orgauth_user(id) NOT NULL,
  "email" TEXT NOT NULL,
  "token" TEXT NOT NULL,
  "tokendate" INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS "orgauth_newemailunq" ON "orgauth_newemail" ("user", "token");
CREATE TABLE IF NOT EXISTS "orgauth_newpassword" (
  "user" INTEGER REFERENCES orgauth_user(id) NOT NULL,
  "token" TEXT NOT NULL,
  "tokendate" INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS "orgauth_resetpasswordunq" ON "orgauth_newpassword" ("user", "token");
`

// CreateSchema creates the orgauth tables. Invoked by the migration
// engine when the auth subsystem first enters the database.
func CreateSchema(db Execer) error {
	if _, err := db.Exec(createSchemaSQL); err != nil {
		return fmt.Errorf("create auth schema: %w", err)
	}
	return nil
}

// MigrateAccountFlags adds the admin and active account flags plus the
// token regeneration date.
func MigrateAccountFlags(db Execer) error {
	stmts := []string{
		`ALTER TABLE orgauth_user ADD COLUMN "admin" BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE orgauth_user ADD COLUMN "active" BOOLEAN NOT NULL DEFAULT 1`,
		`ALTER TABLE orgauth_token ADD COLUMN "regendate" INTEGER`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate auth account flags: %w", err)
		}
	}
	return nil
}

// MigrateLoginData adds the opaque per-user login data blob.
func MigrateLoginData(db Execer) error {
	if _, err := db.Exec(`ALTER TABLE orgauth_user ADD COLUMN "data" TEXT`); err != nil {
		return fmt.Errorf("migrate auth login data: %w", err)
	}
	return nil
}

// MigrateTokenChain adds the previous-token pointer used when tokens
// are regenerated.
func MigrateTokenChain(db Execer) error {
	if _, err := db.Exec(`ALTER TABLE orgauth_token ADD COLUMN "prevtoken" TEXT`); err != nil {
		return fmt.Errorf("migrate auth token chain: %w", err)
	}
	return nil
}

// MigrateTokenDateIndex indexes token dates so expiry purges stay cheap.
func MigrateTokenDateIndex(db Execer) error {
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS "orgauth_tokendateidx" ON "orgauth_token" ("tokendate")`); err != nil {
		return fmt.Errorf("migrate auth token date index: %w", err)
	}
	return nil
}
