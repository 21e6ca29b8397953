package migrate

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/auth"
)

// Schema history, oldest first. SQLite cannot add a column with
// foreign-key or uniqueness changes through ALTER TABLE, so those steps
// use the same four-part pattern: create a temp table with the new
// shape, copy rows in (supplying defaults for new columns), drop and
// re-create the original under its old name (re-declaring every foreign
// key and unique index, which SQLite does not preserve), and copy back.

func execAll(db *sqlx.DB, stmts ...string) error {
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("%w (in %q)", err, s)
		}
	}
	return nil
}

// applyInitialSchema is level 0: the key/value table that carries the
// migration watermark, and the pre-orgauth account tables.
func applyInitialSchema(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE IF NOT EXISTS "singlevalue" ("name" TEXT NOT NULL UNIQUE, "value" TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS "user" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "name" TEXT NOT NULL UNIQUE,
		   "hashwd" TEXT NOT NULL,
		   "salt" TEXT NOT NULL,
		   "email" TEXT NOT NULL,
		   "registration_key" TEXT,
		   "createdate" INTEGER NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS "token" (
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "token" TEXT NOT NULL,
		   "tokendate" INTEGER NOT NULL)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS "tokenunq" ON "token" ("user", "token")`,
		`CREATE TABLE IF NOT EXISTS "newemail" (
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "email" TEXT NOT NULL,
		   "token" TEXT NOT NULL,
		   "tokendate" INTEGER NOT NULL)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS "newemailunq" ON "newemail" ("user", "token")`,
		`CREATE TABLE IF NOT EXISTS "newpassword" (
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "token" TEXT NOT NULL,
		   "tokendate" INTEGER NOT NULL)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS "resetpasswordunq" ON "newpassword" ("user", "token")`,
	)
}

// Level 1: the time-tracking tables.
func migrateProjectTables(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "project" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "name" TEXT NOT NULL,
		   "description" TEXT NOT NULL,
		   "public" BOOLEAN NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL)`,
		`CREATE TABLE "projectmember" (
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "unq" ON "projectmember" ("project", "user")`,
		`CREATE TABLE "timeentry" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "startdate" INTEGER NOT NULL,
		   "enddate" INTEGER NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "timeentryunq" ON "timeentry" ("user", "startdate")`,
		`CREATE TABLE "payentry" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "duration" INTEGER NOT NULL,
		   "paymentdate" INTEGER NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "payentryunq" ON "payentry" ("user", "paymentdate")`,
	)
}

// Level 2: timeentry gains the ignore flag, defaulting existing rows
// to billable.
func migrateTimeEntryIgnore(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "timeentrytemp" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "startdate" INTEGER NOT NULL,
		   "enddate" INTEGER NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES user(id) NOT NULL)`,
		`INSERT INTO timeentrytemp (id, project, user, description, startdate, enddate, createdate, changeddate, creator)
		 SELECT id, project, user, description, startdate, enddate, createdate, changeddate, creator FROM timeentry`,
		`DROP TABLE "timeentry"`,
		`CREATE TABLE "timeentry" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES user(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "startdate" INTEGER NOT NULL,
		   "enddate" INTEGER NOT NULL,
		   "ignore" BOOLEAN NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "timeentryunq" ON "timeentry" ("user", "startdate")`,
		`INSERT INTO timeentry (id, project, user, description, startdate, enddate, "ignore", createdate, changeddate, creator)
		 SELECT id, project, user, description, startdate, enddate, 0, createdate, changeddate, creator FROM timeentrytemp`,
		`DROP TABLE "timeentrytemp"`,
	)
}

// Level 3: budget allocations.
func migrateAllocations(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "allocation" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "duration" INTEGER NOT NULL,
		   "allocationdate" INTEGER NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "allocationunq" ON "allocation" ("creator", "allocationdate")`,
	)
}

// Level 4: project gains optional billing rate and currency.
func migrateProjectRate(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "projecttemp" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "name" TEXT NOT NULL,
		   "description" TEXT NOT NULL,
		   "public" BOOLEAN NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL)`,
		`INSERT INTO projecttemp (id, name, description, public, createdate, changeddate)
		 SELECT id, name, description, public, createdate, changeddate FROM project`,
		`DROP TABLE "project"`,
		`CREATE TABLE "project" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "name" TEXT NOT NULL,
		   "description" TEXT NOT NULL,
		   "public" BOOLEAN NOT NULL,
		   "rate" REAL,
		   "currency" TEXT,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL)`,
		`INSERT INTO project (id, name, description, public, createdate, changeddate)
		 SELECT id, name, description, public, createdate, changeddate FROM projecttemp`,
		`DROP TABLE "projecttemp"`,
	)
}

// Level 5: re-parent every user foreign key onto the auth subsystem's
// orgauth_user table and retire the local account tables. The single
// highest-risk step in the sequence: it runs inside one transaction so
// a failure leaves the database at level 4, reported and not retried.
func migrateAuthReparent(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("begin reparent: %w", err)
	}
	defer tx.Rollback()

	if err := auth.CreateSchema(tx); err != nil {
		return err
	}

	stmts := []string{
		`INSERT INTO orgauth_user (id, name, hashwd, salt, email, registration_key, createdate)
		 SELECT id, name, hashwd, salt, email, registration_key, createdate FROM user`,
		`INSERT INTO orgauth_token ("user", token, tokendate) SELECT "user", token, tokendate FROM token`,
		`INSERT INTO orgauth_newemail ("user", email, token, tokendate) SELECT "user", email, token, tokendate FROM newemail`,
		`INSERT INTO orgauth_newpassword ("user", token, tokendate) SELECT "user", token, tokendate FROM newpassword`,

		`CREATE TABLE "tempprojectmember" ("project" INTEGER NOT NULL, "user" INTEGER NOT NULL)`,
		`CREATE TABLE "temppayentry" ("id" INTEGER PRIMARY KEY NOT NULL, "project" INTEGER NOT NULL, "user" INTEGER NOT NULL, "description" TEXT NOT NULL, "duration" INTEGER NOT NULL, "paymentdate" INTEGER NOT NULL, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL, "creator" INTEGER NOT NULL)`,
		`CREATE TABLE "temptimeentry" ("id" INTEGER PRIMARY KEY NOT NULL, "project" INTEGER NOT NULL, "user" INTEGER NOT NULL, "description" TEXT NOT NULL, "startdate" INTEGER NOT NULL, "enddate" INTEGER NOT NULL, "ignore" BOOLEAN NOT NULL, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL, "creator" INTEGER NOT NULL)`,
		`CREATE TABLE "tempallocation" ("id" INTEGER PRIMARY KEY NOT NULL, "project" INTEGER NOT NULL, "description" TEXT NOT NULL, "duration" INTEGER NOT NULL, "allocationdate" INTEGER NOT NULL, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL, "creator" INTEGER NOT NULL)`,
		`CREATE TABLE "tempproject" ("id" INTEGER PRIMARY KEY NOT NULL, "name" TEXT NOT NULL, "description" TEXT NOT NULL, "public" BOOLEAN NOT NULL, "rate" REAL, "currency" TEXT, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL)`,

		`INSERT INTO tempprojectmember (project, "user") SELECT project, "user" FROM projectmember`,
		`INSERT INTO temppayentry (id, project, "user", description, duration, paymentdate, createdate, changeddate, creator)
		 SELECT id, project, "user", description, duration, paymentdate, createdate, changeddate, creator FROM payentry`,
		`INSERT INTO temptimeentry (id, project, "user", description, startdate, enddate, "ignore", createdate, changeddate, creator)
		 SELECT id, project, "user", description, startdate, enddate, "ignore", createdate, changeddate, creator FROM timeentry`,
		`INSERT INTO tempallocation (id, project, description, duration, allocationdate, createdate, changeddate, creator)
		 SELECT id, project, description, duration, allocationdate, createdate, changeddate, creator FROM allocation`,
		`INSERT INTO tempproject (id, name, description, public, rate, currency, createdate, changeddate)
		 SELECT id, name, description, public, rate, currency, createdate, changeddate FROM project`,

		`DROP TABLE "projectmember"`,
		`DROP TABLE "payentry"`,
		`DROP TABLE "timeentry"`,
		`DROP TABLE "allocation"`,
		`DROP TABLE "project"`,

		`CREATE TABLE "projectmember" ("project" INTEGER REFERENCES project(id) NOT NULL, "user" INTEGER REFERENCES orgauth_user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "unq" ON "projectmember" ("project", "user")`,
		`CREATE TABLE "payentry" ("id" INTEGER PRIMARY KEY NOT NULL, "project" INTEGER REFERENCES project(id) NOT NULL, "user" INTEGER REFERENCES orgauth_user(id) NOT NULL, "description" TEXT NOT NULL, "duration" INTEGER NOT NULL, "paymentdate" INTEGER NOT NULL, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL, "creator" INTEGER REFERENCES orgauth_user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "payentryunq" ON "payentry" ("user", "paymentdate")`,
		`CREATE TABLE "timeentry" ("id" INTEGER PRIMARY KEY NOT NULL, "project" INTEGER REFERENCES project(id) NOT NULL, "user" INTEGER REFERENCES orgauth_user(id) NOT NULL, "description" TEXT NOT NULL, "startdate" INTEGER NOT NULL, "enddate" INTEGER NOT NULL, "ignore" BOOLEAN NOT NULL, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL, "creator" INTEGER REFERENCES orgauth_user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "timeentryunq" ON "timeentry" ("user", "startdate")`,
		`CREATE TABLE "allocation" ("id" INTEGER PRIMARY KEY NOT NULL, "project" INTEGER REFERENCES project(id) NOT NULL, "description" TEXT NOT NULL, "duration" INTEGER NOT NULL, "allocationdate" INTEGER NOT NULL, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL, "creator" INTEGER REFERENCES orgauth_user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "allocationunq" ON "allocation" ("creator", "allocationdate")`,
		`CREATE TABLE "project" ("id" INTEGER PRIMARY KEY NOT NULL, "name" TEXT NOT NULL, "description" TEXT NOT NULL, "public" BOOLEAN NOT NULL, "rate" REAL, "currency" TEXT, "createdate" INTEGER NOT NULL, "changeddate" INTEGER NOT NULL)`,

		`INSERT INTO projectmember (project, "user") SELECT project, "user" FROM tempprojectmember`,
		`INSERT INTO payentry (id, project, "user", description, duration, paymentdate, createdate, changeddate, creator)
		 SELECT id, project, "user", description, duration, paymentdate, createdate, changeddate, creator FROM temppayentry`,
		`INSERT INTO timeentry (id, project, "user", description, startdate, enddate, "ignore", createdate, changeddate, creator)
		 SELECT id, project, "user", description, startdate, enddate, "ignore", createdate, changeddate, creator FROM temptimeentry`,
		`INSERT INTO allocation (id, project, description, duration, allocationdate, createdate, changeddate, creator)
		 SELECT id, project, description, duration, allocationdate, createdate, changeddate, creator FROM tempallocation`,
		`INSERT INTO project (id, name, description, public, rate, currency, createdate, changeddate)
		 SELECT id, name, description, public, rate, currency, createdate, changeddate FROM tempproject`,

		`DROP TABLE "user"`,
		`DROP TABLE "token"`,
		`DROP TABLE "newemail"`,
		`DROP TABLE "newpassword"`,

		`DROP TABLE "tempprojectmember"`,
		`DROP TABLE "temppayentry"`,
		`DROP TABLE "temptimeentry"`,
		`DROP TABLE "tempallocation"`,
		`DROP TABLE "tempproject"`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("%w (in %q)", err, s)
		}
	}
	return tx.Commit()
}

// Level 6: projectmember gains a role column; pre-existing members were
// all de facto admins.
func migrateMemberRoles(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "pmtemp" ("project" INTEGER, "user" INTEGER)`,
		`INSERT INTO pmtemp (project, "user") SELECT project, "user" FROM projectmember`,
		`DROP TABLE "projectmember"`,
		`CREATE TABLE "projectmember" (
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES orgauth_user(id) NOT NULL,
		   "role" TEXT NOT NULL)`,
		`CREATE UNIQUE INDEX "unq" ON "projectmember" ("project", "user")`,
		`INSERT INTO projectmember (project, "user", role) SELECT project, "user", 'Admin' FROM pmtemp`,
		`DROP TABLE "pmtemp"`,
	)
}

// Level 11: payentry gains the type tag (0 = Invoiced, 1 = Paid).
// Existing rows become payments, and a matching invoice row is derived
// for each at paymentdate-1. Deliberately lossy and irreversible: the
// original single record becomes two of different types.
func migratePayEntryType(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "temppayentry" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES orgauth_user(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "duration" INTEGER NOT NULL,
		   "paymentdate" INTEGER NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES orgauth_user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "payentryunqtemp" ON "temppayentry" ("user", "paymentdate")`,
		`INSERT INTO temppayentry (id, project, "user", description, duration, paymentdate, createdate, changeddate, creator)
		 SELECT id, project, "user", description, duration, paymentdate, createdate, changeddate, creator FROM payentry`,
		`DROP TABLE "payentry"`,
		`CREATE TABLE "payentry" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "project" INTEGER REFERENCES project(id) NOT NULL,
		   "user" INTEGER REFERENCES orgauth_user(id) NOT NULL,
		   "description" TEXT NOT NULL,
		   "duration" INTEGER NOT NULL,
		   "type" INTEGER NOT NULL,
		   "paymentdate" INTEGER NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL,
		   "creator" INTEGER REFERENCES orgauth_user(id) NOT NULL)`,
		`CREATE UNIQUE INDEX "payentryunq" ON "payentry" ("user", "paymentdate")`,
		`INSERT INTO payentry (id, project, "user", description, duration, type, paymentdate, createdate, changeddate, creator)
		 SELECT id, project, "user", description, duration, 1, paymentdate, createdate, changeddate, creator FROM temppayentry`,
		`INSERT INTO payentry (project, "user", description, duration, type, paymentdate, createdate, changeddate, creator)
		 SELECT project, "user", description, duration, 0, paymentdate - 1, createdate, changeddate, creator FROM temppayentry`,
		`DROP TABLE "temppayentry"`,
	)
}

// Level 12: project gains the invoicing columns. The work table is
// left in place and removed by the following step, preserving the
// shipped sequence for databases already past this level.
func migrateProjectInvoiceFields(db *sqlx.DB) error {
	return execAll(db,
		`CREATE TABLE "projecttemp" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "name" TEXT NOT NULL,
		   "description" TEXT NOT NULL,
		   "public" BOOLEAN NOT NULL,
		   "rate" REAL,
		   "currency" TEXT,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL)`,
		`INSERT INTO projecttemp (id, name, description, public, rate, currency, createdate, changeddate)
		 SELECT id, name, description, public, rate, currency, createdate, changeddate FROM project`,
		`DROP TABLE "project"`,
		`CREATE TABLE "project" (
		   "id" INTEGER PRIMARY KEY NOT NULL,
		   "name" TEXT NOT NULL,
		   "description" TEXT NOT NULL,
		   "public" BOOLEAN NOT NULL,
		   "rate" REAL,
		   "currency" TEXT,
		   "due_days" INTEGER,
		   "extra_fields" TEXT,
		   "invoice_id_template" TEXT NOT NULL,
		   "invoice_seq" INTEGER NOT NULL,
		   "payer" TEXT NOT NULL,
		   "payee" TEXT NOT NULL,
		   "generic_task" TEXT NOT NULL,
		   "createdate" INTEGER NOT NULL,
		   "changeddate" INTEGER NOT NULL)`,
		`INSERT INTO project (id, name, description, public, rate, currency, invoice_id_template, invoice_seq, payer, payee, generic_task, createdate, changeddate)
		 SELECT id, name, description, public, rate, currency, '', 0, '', '', '', createdate, changeddate FROM projecttemp`,
	)
}

// Level 13: drop the work table level 12 left behind.
func migrateDropProjectTemp(db *sqlx.DB) error {
	return execAll(db, `DROP TABLE "projecttemp"`)
}
